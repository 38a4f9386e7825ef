// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package memory implements an in-process transport.Socket. All Sockets bound to the same Network can exchange
// datagrams, which are delivered without loss and surfaced on the receiver's next Poll.
package memory

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/stokes-go/pkg/transport"
)

// ErrAddressInUse is wrapped in a transport.BindError if an address is already bound within a Network.
var ErrAddressInUse = errors.New("address already in use")

// firstEphemeralPort is assigned for the first Socket bound to port zero.
const firstEphemeralPort = 49152

// Network connects in-process Sockets by their addresses.
type Network struct {
	mutex    sync.Mutex
	sockets  map[netip.AddrPort]*Socket
	nextPort uint16
}

// NewNetwork creates an empty Network.
func NewNetwork() *Network {
	return &Network{
		sockets:  make(map[netip.AddrPort]*Socket),
		nextPort: firstEphemeralPort,
	}
}

// Bind a new Socket to a literal "ip:port" address. Port zero picks a free port.
func (n *Network) Bind(address string, cfg transport.Config) (*Socket, error) {
	if err := cfg.CheckValid(); err != nil {
		return nil, &transport.BindError{Address: address, Err: err}
	}

	addr, err := transport.ParseAddr(address)
	if err != nil {
		return nil, &transport.BindError{Address: address, Err: err}
	}

	n.mutex.Lock()
	defer n.mutex.Unlock()

	if addr.Port() == 0 {
		if addr, err = n.ephemeral(addr.Addr()); err != nil {
			return nil, &transport.BindError{Address: address, Err: err}
		}
	} else if _, inUse := n.sockets[addr]; inUse {
		return nil, &transport.BindError{Address: address, Err: ErrAddressInUse}
	}

	s := newSocket(n, addr, cfg)
	n.sockets[addr] = s

	log.WithField("address", addr).Debug("Bound memory socket")

	return s, nil
}

// ephemeral picks the next free port for an IP address. The mutex must be held.
func (n *Network) ephemeral(ip netip.Addr) (netip.AddrPort, error) {
	for tries := 0; tries < 1<<16; tries++ {
		port := n.nextPort
		if n.nextPort == 0xffff {
			n.nextPort = firstEphemeralPort
		} else {
			n.nextPort++
		}

		addr := netip.AddrPortFrom(ip, port)
		if _, inUse := n.sockets[addr]; !inUse {
			return addr, nil
		}
	}
	return netip.AddrPort{}, fmt.Errorf("no free port left for %v", ip)
}

// Binder is a transport.Binder for Sockets of this Network.
func (n *Network) Binder() transport.Binder {
	return func(address string, cfg transport.Config) (transport.Socket, error) {
		s, err := n.Bind(address, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// deliver a datagram to the Socket bound to dst. Datagrams to unbound addresses are lost, just like UDP.
func (n *Network) deliver(dst netip.AddrPort, in inbound) {
	n.mutex.Lock()
	s, ok := n.sockets[dst]
	if ok {
		s.inbox = append(s.inbox, in)
	}
	n.mutex.Unlock()

	if !ok {
		log.WithFields(log.Fields{
			"from": in.src,
			"to":   dst,
		}).Trace("Memory network dropped datagram to unbound address")
	}
}

// unbind removes a Socket from this Network.
func (n *Network) unbind(s *Socket) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if n.sockets[s.local] == s {
		delete(n.sockets, s.local)
	}
}
