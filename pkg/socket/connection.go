// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package socket

import (
	"fmt"
	"net/netip"

	"github.com/dtn7/stokes-go/pkg/transport"
)

// SocketID identifies a socket within its Registry.
type SocketID uint64

// ConnectionID identifies a Connection within its Registry. An ID is never reused, not even after a peer
// reconnects.
type ConnectionID uint64

// PeerID is the pair of local socket and remote address. At most one Connection exists per PeerID.
type PeerID struct {
	Socket SocketID
	Addr   netip.AddrPort
}

func (p PeerID) String() string {
	return fmt.Sprintf("%d/%v", p.Socket, p.Addr)
}

// Connection is a remote peer of a socket.
type Connection struct {
	id    ConnectionID
	peer  PeerID
	state State

	queue       []transport.Datagram
	attachments map[string]interface{}
}

// ID of this Connection.
func (c *Connection) ID() ConnectionID {
	return c.id
}

// Peer identifies this Connection.
func (c *Connection) Peer() PeerID {
	return c.peer
}

// Addr is the remote peer's address.
func (c *Connection) Addr() netip.AddrPort {
	return c.peer.Addr
}

// State of this Connection's lifecycle.
func (c *Connection) State() State {
	return c.state
}

// Len returns the number of received Datagrams.
func (c *Connection) Len() int {
	return len(c.queue)
}

// IsEmpty is true if no Datagram is queued.
func (c *Connection) IsEmpty() bool {
	return c.Len() == 0
}

// Peek returns a copy of the received Datagrams, oldest first, without removing them.
func (c *Connection) Peek() []transport.Datagram {
	return append([]transport.Datagram(nil), c.queue...)
}

// Drain removes and returns all received Datagrams, oldest first.
func (c *Connection) Drain() (ds []transport.Datagram) {
	ds, c.queue = c.queue, nil
	return
}

// Attach a value under some key to this Connection, overwriting a previous value.
func (c *Connection) Attach(key string, value interface{}) {
	if c.attachments == nil {
		c.attachments = make(map[string]interface{})
	}
	c.attachments[key] = value
}

// Attachment returns the value attached under the key.
func (c *Connection) Attachment(key string) (value interface{}, ok bool) {
	value, ok = c.attachments[key]
	return
}

func (c *Connection) String() string {
	return fmt.Sprintf("Connection(%d, %v, %v)", c.id, c.peer, c.state)
}
