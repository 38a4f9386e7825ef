// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package memory

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/dtn7/stokes-go/pkg/transport"
)

// inbound is a datagram waiting in a Socket's inbox.
type inbound struct {
	src       netip.AddrPort
	heartbeat bool
	datagram  transport.Datagram
}

// Socket is a transport.Socket within a Network.
type Socket struct {
	network *Network
	local   netip.AddrPort
	cfg     transport.Config

	// inbox is guarded by the Network's mutex.
	inbox []inbound

	tracker  *transport.Tracker
	events   *transport.EventQueue
	lastPoll time.Time
	closed   bool
}

func newSocket(network *Network, local netip.AddrPort, cfg transport.Config) *Socket {
	s := &Socket{
		network: network,
		local:   local,
		cfg:     cfg,
		events:  transport.NewEventQueue(cfg.EventQueueSize),
	}
	s.tracker = transport.NewTracker(cfg, s.events.Push)
	return s
}

// LocalAddr is the address this Socket is bound to.
func (s *Socket) LocalAddr() netip.AddrPort {
	return s.local
}

// Poll surfaces all datagrams delivered since the last Poll, sends due heartbeats and expires idle peers.
func (s *Socket) Poll(now time.Time) {
	if s.closed {
		return
	}
	s.lastPoll = now

	s.network.mutex.Lock()
	inbox := s.inbox
	s.inbox = nil
	s.network.mutex.Unlock()

	for _, in := range inbox {
		if !s.tracker.Received(in.src, now) || in.heartbeat {
			continue
		}
		s.events.Push(transport.NewPacketEvent(in.datagram))
	}

	for _, addr := range s.tracker.HeartbeatsDue(now) {
		s.network.deliver(addr, inbound{src: s.local, heartbeat: true})
		s.tracker.Sent(addr, now)
	}

	s.tracker.Expire(now)
}

// NextEvent pops the oldest queued Event.
func (s *Socket) NextEvent() (transport.Event, bool) {
	return s.events.Pop()
}

// Send a Datagram to another Socket of the Network.
func (s *Socket) Send(d transport.Datagram) error {
	if s.closed {
		return transport.ErrClosed
	}
	if len(d.Payload) > s.cfg.MaxPayloadSize {
		return fmt.Errorf("%w: %d > %d", transport.ErrPayloadTooLarge, len(d.Payload), s.cfg.MaxPayloadSize)
	}

	dst := transport.Normalize(d.Addr)

	payload := make([]byte, len(d.Payload))
	copy(payload, d.Payload)

	received := d
	received.Addr = s.local
	received.Payload = payload

	s.network.deliver(dst, inbound{src: s.local, datagram: received})

	now := s.lastPoll
	if now.IsZero() {
		now = time.Now()
	}
	s.tracker.Sent(dst, now)

	return nil
}

// Close this Socket and release its address.
func (s *Socket) Close() error {
	if s.closed {
		return transport.ErrClosed
	}
	s.closed = true
	s.network.unbind(s)
	return nil
}

func (s *Socket) String() string {
	return fmt.Sprintf("memory://%v", s.local)
}
