// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package udp

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/dtn7/stokes-go/pkg/transport"
)

func bindLocal(t *testing.T, cfg transport.Config) *Socket {
	s, err := Bind("127.0.0.1:0", cfg)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// pollUntil polls s until at least n events were collected or the attempts are exhausted.
func pollUntil(s *Socket, n int) (events []transport.Event) {
	for i := 0; i < 200 && len(events) < n; i++ {
		s.Poll(time.Now())
		for e, ok := s.NextEvent(); ok; e, ok = s.NextEvent() {
			events = append(events, e)
		}
	}
	return
}

func TestSocketExchange(t *testing.T) {
	ping := bindLocal(t, transport.DefaultConfig())
	defer ping.Close()
	pong := bindLocal(t, transport.DefaultConfig())
	defer pong.Close()

	if err := ping.Send(transport.NewReliableUnordered(pong.LocalAddr(), []byte("DEADBEEF"))); err != nil {
		t.Fatal(err)
	}

	events := pollUntil(pong, 1)
	if len(events) != 1 || events[0].Kind != transport.Packet {
		t.Fatalf("Expected a single packet event, got %v", events)
	}

	pkt := events[0].Packet
	if pkt.Addr != ping.LocalAddr() {
		t.Fatalf("Packet originates from %v, expected %v", pkt.Addr, ping.LocalAddr())
	}
	if !bytes.Equal(pkt.Payload, []byte("DEADBEEF")) || pkt.Delivery != transport.Reliable {
		t.Fatalf("Unexpected packet %v", pkt)
	}

	// Answering establishes the connection on both sides.
	if err := pong.Send(transport.NewUnreliable(pkt.Addr, pkt.Payload)); err != nil {
		t.Fatal(err)
	}

	events = pollUntil(ping, 2)
	if len(events) != 2 || events[0].Kind != transport.Connect || events[1].Kind != transport.Packet {
		t.Fatalf("Expected connect and packet events, got %v", events)
	}
}

func TestSocketHeartbeatAndTimeout(t *testing.T) {
	cfg := transport.DefaultConfig()
	cfg.IdleConnectionTimeout = time.Minute
	cfg.HeartbeatInterval = time.Second

	a := bindLocal(t, cfg)
	defer a.Close()
	b := bindLocal(t, cfg)
	defer b.Close()

	now := time.Now()
	a.Poll(now)
	b.Poll(now)

	if err := a.Send(transport.NewUnreliable(b.LocalAddr(), []byte("a"))); err != nil {
		t.Fatal(err)
	}
	if events := pollUntil(b, 1); len(events) != 1 {
		t.Fatalf("Expected one event, got %v", events)
	}
	if err := b.Send(transport.NewUnreliable(a.LocalAddr(), []byte("b"))); err != nil {
		t.Fatal(err)
	}
	if events := pollUntil(a, 2); len(events) != 2 {
		t.Fatalf("Expected two events, got %v", events)
	}
	if e, ok := b.NextEvent(); !ok || e.Kind != transport.Connect {
		t.Fatalf("Expected b's connect event, got %v", e)
	}

	// A heartbeat to b is neither a packet nor a new connect.
	a.Poll(now.Add(2 * time.Second))
	if events := pollUntil(b, 1); len(events) != 0 {
		t.Fatalf("Heartbeat resulted in events: %v", events)
	}

	// Without any traffic, b times out a.
	b.Poll(now.Add(2 * time.Minute))
	var events []transport.Event
	for e, ok := b.NextEvent(); ok; e, ok = b.NextEvent() {
		events = append(events, e)
	}
	if len(events) != 2 || events[0].Kind != transport.Timeout || events[1].Kind != transport.Disconnect {
		t.Fatalf("Expected timeout and disconnect, got %v", events)
	}
}

func TestSocketSendErrors(t *testing.T) {
	s := bindLocal(t, transport.DefaultConfig())

	big := make([]byte, transport.DefaultConfig().MaxPayloadSize+1)
	if err := s.Send(transport.NewUnreliable(s.LocalAddr(), big)); !errors.Is(err, transport.ErrPayloadTooLarge) {
		t.Fatalf("Expected ErrPayloadTooLarge, got %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Send(transport.NewUnreliable(s.LocalAddr(), nil)); !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("Expected ErrClosed, got %v", err)
	}
}

func TestBindErrors(t *testing.T) {
	s := bindLocal(t, transport.DefaultConfig())
	defer s.Close()

	invalidCfg := transport.DefaultConfig()
	invalidCfg.EventQueueSize = 0

	tests := []struct {
		name    string
		address string
		cfg     transport.Config
	}{
		{"in use", s.LocalAddr().String(), transport.DefaultConfig()},
		{"malformed", "not an address", transport.DefaultConfig()},
		{"bad port", "127.0.0.1:99999", transport.DefaultConfig()},
		{"invalid config", "127.0.0.1:0", invalidCfg},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Bind(test.address, test.cfg)

			var bindErr *transport.BindError
			if !errors.As(err, &bindErr) {
				t.Fatalf("Expected a BindError, got %v", err)
			}
			if bindErr.Address != test.address {
				t.Fatalf("BindError names %q instead of %q", bindErr.Address, test.address)
			}
		})
	}
}

func TestSocketPollBeyondQueueSize(t *testing.T) {
	cfg := transport.DefaultConfig()
	cfg.EventQueueSize = 2

	a := bindLocal(t, cfg)
	defer a.Close()
	b := bindLocal(t, transport.DefaultConfig())
	defer b.Close()

	// Having sent first, b's first datagram establishes a and results in two events.
	if err := a.Send(transport.NewUnreliable(b.LocalAddr(), []byte("hello"))); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := b.Send(transport.NewUnreliable(a.LocalAddr(), []byte{byte(i)})); err != nil {
			t.Fatal(err)
		}
	}

	events := pollUntil(a, 6)
	if len(events) != 6 || events[0].Kind != transport.Connect {
		t.Fatalf("Expected connect and five packets, got %v", events)
	}
	for i, e := range events[1:] {
		if e.Kind != transport.Packet || !bytes.Equal(e.Packet.Payload, []byte{byte(i)}) {
			t.Fatalf("Event %d is %v", i+1, e)
		}
	}
}

func TestSocketSimultaneousTimeouts(t *testing.T) {
	cfg := transport.DefaultConfig()
	cfg.EventQueueSize = 2

	a := bindLocal(t, cfg)
	defer a.Close()

	for i := 0; i < 3; i++ {
		peer := bindLocal(t, transport.DefaultConfig())
		defer peer.Close()

		if err := peer.Send(transport.NewUnreliable(a.LocalAddr(), []byte("hi"))); err != nil {
			t.Fatal(err)
		}
	}
	if events := pollUntil(a, 3); len(events) != 3 {
		t.Fatalf("Expected three packets, got %v", events)
	}

	a.Poll(time.Now().Add(time.Minute))
	timedOut := make(map[string]bool)
	for e, ok := a.NextEvent(); ok; e, ok = a.NextEvent() {
		if e.Kind != transport.Timeout {
			t.Fatalf("Expected a timeout, got %v", e)
		}
		timedOut[e.Addr.String()] = true
	}
	if len(timedOut) != 3 {
		t.Fatalf("Expected three timed out peers, got %v", timedOut)
	}
}
