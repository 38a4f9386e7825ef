// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"fmt"
	"net/netip"
)

// EventKind indicates the kind of an Event.
type EventKind uint

const (
	_ EventKind = iota

	// Connect shows that a peer is established, both sent to and received from.
	Connect

	// Disconnect shows that an established peer was dropped.
	Disconnect

	// Packet shows the reception of a datagram. The Event's Packet field is set.
	Packet

	// Timeout shows that a peer was idle for too long.
	Timeout
)

func (kind EventKind) String() string {
	switch kind {
	case Connect:
		return "connect"
	case Disconnect:
		return "disconnect"
	case Packet:
		return "packet"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Event is produced by a Socket's Poll and read through NextEvent.
type Event struct {
	Kind EventKind
	Addr netip.AddrPort

	// Packet is only set for the Packet EventKind.
	Packet Datagram
}

// NewConnect creates a Connect Event for the given peer.
func NewConnect(addr netip.AddrPort) Event {
	return Event{Kind: Connect, Addr: addr}
}

// NewDisconnect creates a Disconnect Event for the given peer.
func NewDisconnect(addr netip.AddrPort) Event {
	return Event{Kind: Disconnect, Addr: addr}
}

// NewTimeout creates a Timeout Event for the given peer.
func NewTimeout(addr netip.AddrPort) Event {
	return Event{Kind: Timeout, Addr: addr}
}

// NewPacketEvent creates a Packet Event. The Event's address is taken from the Datagram.
func NewPacketEvent(pkt Datagram) Event {
	return Event{Kind: Packet, Addr: pkt.Addr, Packet: pkt}
}

// IsTerminal reports if this Event ends a peer's lifecycle.
func (e Event) IsTerminal() bool {
	return e.Kind == Disconnect || e.Kind == Timeout
}

func (e Event) String() string {
	if e.Kind == Packet {
		return fmt.Sprintf("%v(%v, %d bytes)", e.Kind, e.Addr, len(e.Packet.Payload))
	}
	return fmt.Sprintf("%v(%v)", e.Kind, e.Addr)
}
