// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"errors"
	"fmt"
	"net/netip"
	"time"
)

var (
	// ErrPayloadTooLarge is returned by Send for payloads exceeding the Config's MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")

	// ErrClosed is returned by operations on a closed Socket.
	ErrClosed = errors.New("socket is closed")
)

// Socket is a bound, manually polled datagram endpoint.
//
// A Socket is not safe for concurrent use. Poll, NextEvent and Send are expected to be called from one goroutine.
type Socket interface {
	// LocalAddr is the address this Socket is bound to.
	LocalAddr() netip.AddrPort

	// Poll receives all pending datagrams, performs connection housekeeping and queues the resulting Events.
	// Poll must not block longer than the configured poll timeout.
	Poll(now time.Time)

	// NextEvent pops the oldest queued Event. The boolean is false if no Event is left.
	NextEvent() (Event, bool)

	// Send transmits a Datagram to its address.
	Send(d Datagram) error

	// Close this Socket. It must not be used afterwards.
	Close() error
}

// Binder creates a Socket bound to an address.
type Binder func(address string, cfg Config) (Socket, error)

// BindError is returned if a Socket could not be bound, e.g., for an unavailable or malformed address or an invalid
// Config.
type BindError struct {
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("binding %q failed: %v", e.Address, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// ParseAddr resolves a literal "host:port" address into a netip.AddrPort. IPv4-mapped IPv6 addresses are unmapped,
// so that both notations of a peer result in the same key.
func ParseAddr(address string) (netip.AddrPort, error) {
	addr, err := netip.ParseAddrPort(address)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return Normalize(addr), nil
}

// Normalize unmaps IPv4-mapped IPv6 addresses.
func Normalize(addr netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
}
