// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/stokes-go/pkg/socket"
	"github.com/dtn7/stokes-go/pkg/transport"
	"github.com/dtn7/stokes-go/pkg/transport/udp"
)

// ponger answers each received datagram.
type ponger struct {
	*session
}

func (p *ponger) handle(_ time.Time, conns []*socket.Connection) {
	for _, conn := range conns {
		for range conn.Drain() {
			log.WithFields(log.Fields{
				"remote": conn.Addr(),
				"state":  conn.State(),
			}).Info("Received ping")

			if err := p.registry.Enqueue(p.id, transport.NewReliableUnordered(conn.Addr(), payload)); err != nil {
				log.WithError(err).Error("Cannot enqueue pong")
			}
		}
	}
}

// pong to every remote socket.
func pong(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	s, err := newSession(args[0], udp.Binder)
	if err != nil {
		printFatal(err, "Binding local address errored")
	}

	p := &ponger{session: s}
	s.run(p.handle)
}
