// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"os"
	"os/signal"
	"time"

	"github.com/dtn7/stokes-go/pkg/socket"
	"github.com/dtn7/stokes-go/pkg/tick"
	"github.com/dtn7/stokes-go/pkg/transport"
)

// payload is the fixed ping and pong content.
var payload = []byte("DEADBEEF")

// session is a single UDP socket, driven on the caller's goroutine.
type session struct {
	registry *socket.Registry
	driver   *tick.Driver
	id       socket.SocketID

	closeChan chan os.Signal
}

func newSession(local string, binder transport.Binder) (s *session, err error) {
	s = &session{
		registry:  socket.NewRegistry(binder),
		closeChan: make(chan os.Signal, 1),
	}
	s.driver = tick.NewDriver(s.registry)

	cfg := transport.DefaultConfig()
	cfg.HeartbeatInterval = time.Second
	if s.id, err = s.registry.Bind(local, 0, cfg); err != nil {
		return
	}

	signal.Notify(s.closeChan, os.Interrupt)
	return
}

func (s *session) close() {
	signal.Stop(s.closeChan)
	_ = s.registry.CloseAll()
}

// run ticks until an interrupt appears. Each tick's Connections are passed to handle.
func (s *session) run(handle func(now time.Time, conns []*socket.Connection)) {
	defer s.close()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.closeChan:
			return

		case now := <-ticker.C:
			s.driver.Tick(now)
			handle(now, s.registry.Connections(s.id))
		}
	}
}
