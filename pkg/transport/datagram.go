// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"fmt"
	"net/netip"
)

// Delivery describes if a Datagram should arrive at all.
type Delivery uint

const (
	// Unreliable datagrams might be lost.
	Unreliable Delivery = iota

	// Reliable datagrams are requested to be delivered eventually.
	Reliable
)

func (d Delivery) String() string {
	switch d {
	case Unreliable:
		return "unreliable"
	case Reliable:
		return "reliable"
	default:
		return "unknown"
	}
}

// Ordering describes how Datagrams within a stream relate to each other.
type Ordering uint

const (
	// Unordered datagrams might arrive in any order.
	Unordered Ordering = iota

	// Sequenced datagrams older than the newest received one are discarded.
	Sequenced

	// Ordered datagrams are handed out in their sending order.
	Ordered
)

func (o Ordering) String() string {
	switch o {
	case Unordered:
		return "unordered"
	case Sequenced:
		return "sequenced"
	case Ordered:
		return "ordered"
	default:
		return "unknown"
	}
}

// Datagram is a payload addressed from or to a peer. For outgoing Datagrams Addr is the destination, for received
// ones it is the source.
type Datagram struct {
	Addr    netip.AddrPort
	Payload []byte

	Delivery Delivery
	Ordering Ordering
	Stream   uint8
}

// NewUnreliable creates an unreliable and unordered Datagram.
func NewUnreliable(addr netip.AddrPort, payload []byte) Datagram {
	return Datagram{Addr: addr, Payload: payload, Delivery: Unreliable, Ordering: Unordered}
}

// NewUnreliableSequenced creates an unreliable Datagram, sequenced within the given stream.
func NewUnreliableSequenced(addr netip.AddrPort, payload []byte, stream uint8) Datagram {
	return Datagram{Addr: addr, Payload: payload, Delivery: Unreliable, Ordering: Sequenced, Stream: stream}
}

// NewReliableUnordered creates a reliable but unordered Datagram.
func NewReliableUnordered(addr netip.AddrPort, payload []byte) Datagram {
	return Datagram{Addr: addr, Payload: payload, Delivery: Reliable, Ordering: Unordered}
}

// NewReliableOrdered creates a reliable Datagram, ordered within the given stream.
func NewReliableOrdered(addr netip.AddrPort, payload []byte, stream uint8) Datagram {
	return Datagram{Addr: addr, Payload: payload, Delivery: Reliable, Ordering: Ordered, Stream: stream}
}

// NewReliableSequenced creates a reliable Datagram, sequenced within the given stream.
func NewReliableSequenced(addr netip.AddrPort, payload []byte, stream uint8) Datagram {
	return Datagram{Addr: addr, Payload: payload, Delivery: Reliable, Ordering: Sequenced, Stream: stream}
}

func (d Datagram) String() string {
	return fmt.Sprintf("Datagram(%v, %v/%v/%d, %d bytes)", d.Addr, d.Delivery, d.Ordering, d.Stream, len(d.Payload))
}
