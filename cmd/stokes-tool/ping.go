// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"bytes"
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/stokes-go/pkg/socket"
	"github.com/dtn7/stokes-go/pkg/transport"
	"github.com/dtn7/stokes-go/pkg/transport/udp"
)

// pinger sends a ping every second and shows its replies.
type pinger struct {
	*session

	remote   netip.AddrPort
	lastPing time.Time
	sent     []time.Time
}

func (p *pinger) handle(now time.Time, conns []*socket.Connection) {
	if now.Sub(p.lastPing) >= time.Second {
		p.lastPing = now

		if err := p.registry.Enqueue(p.id, transport.NewReliableUnordered(p.remote, payload)); err != nil {
			log.WithError(err).Error("Cannot enqueue ping")
		} else {
			p.sent = append(p.sent, now)
			log.WithField("remote", p.remote).Info("Sent ping")
		}
	}

	for _, conn := range conns {
		for _, dgram := range conn.Drain() {
			logger := log.WithFields(log.Fields{
				"remote": conn.Addr(),
				"state":  conn.State(),
			})

			if !bytes.Equal(dgram.Payload, payload) || len(p.sent) == 0 {
				logger.WithField("datagram", dgram).Warn("Received unexpected datagram")
				continue
			}

			logger.WithField("rtt", now.Sub(p.sent[0])).Info("Received pong")
			p.sent = p.sent[1:]
		}
	}
}

// ping a remote socket.
func ping(args []string) {
	if len(args) != 2 {
		printUsage()
	}

	remote, err := transport.ParseAddr(args[1])
	if err != nil {
		printFatal(err, "Parsing remote address errored")
	}

	s, err := newSession(args[0], udp.Binder)
	if err != nil {
		printFatal(err, "Binding local address errored")
	}

	p := &pinger{session: s, remote: remote}
	s.run(p.handle)
}
