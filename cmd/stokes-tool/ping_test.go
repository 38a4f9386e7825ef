// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"net/netip"
	"testing"
	"time"

	"github.com/dtn7/stokes-go/pkg/socket"
	"github.com/dtn7/stokes-go/pkg/transport/memory"
)

func TestPingPong(t *testing.T) {
	network := memory.NewNetwork()

	pingSession, err := newSession("10.0.0.1:9000", network.Binder())
	if err != nil {
		t.Fatal(err)
	}
	defer pingSession.close()

	pongSession, err := newSession("10.0.0.2:9000", network.Binder())
	if err != nil {
		t.Fatal(err)
	}
	defer pongSession.close()

	p := &pinger{session: pingSession, remote: netip.MustParseAddrPort("10.0.0.2:9000")}
	q := &ponger{session: pongSession}

	now := time.Unix(1000, 0)
	step := func(s *session, handle func(time.Time, []*socket.Connection)) {
		s.driver.Tick(now)
		handle(now, s.registry.Connections(s.id))
	}

	for i := 0; i < 10 && !(len(p.sent) == 0 && !p.lastPing.IsZero()); i++ {
		now = now.Add(time.Millisecond)
		step(pingSession, p.handle)
		step(pongSession, q.handle)
	}

	if p.lastPing.IsZero() || len(p.sent) != 0 {
		t.Fatalf("ping was not answered, %d outstanding", len(p.sent))
	}

	conn, ok := pingSession.registry.Find(pingSession.id, netip.MustParseAddrPort("10.0.0.2:9000"))
	if !ok {
		t.Fatal("pinger does not know the ponger")
	}
	if conn.State() != socket.Connected {
		t.Fatalf("ponger is %v", conn.State())
	}
}
