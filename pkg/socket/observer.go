// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package socket

import (
	"github.com/dtn7/stokes-go/pkg/transport"
)

// Observer is informed about a Registry's changes. Observers are called synchronously on the Registry's goroutine.
// Closing the socket from within an Observer skips the rest of the Batch being applied.
type Observer interface {
	// ConnectionCreated is called after a new Connection was added.
	ConnectionCreated(conn *Connection)

	// StateChanged is called after an existing Connection changed its State, but not for its removal.
	StateChanged(conn *Connection, from, to State)

	// ConnectionRemoved is called after a Connection was removed. The Connection is Disconnected, but still holds
	// its received Datagrams, which might be drained here.
	ConnectionRemoved(conn *Connection)

	// SendFailed is called for each outgoing Datagram the transport failed to send. The Datagram is dropped.
	SendFailed(socket SocketID, d transport.Datagram, err error)
}

// ObserverFuncs is an Observer whose non-nil functions are called.
type ObserverFuncs struct {
	OnConnectionCreated func(conn *Connection)
	OnStateChanged      func(conn *Connection, from, to State)
	OnConnectionRemoved func(conn *Connection)
	OnSendFailed        func(socket SocketID, d transport.Datagram, err error)
}

func (o ObserverFuncs) ConnectionCreated(conn *Connection) {
	if o.OnConnectionCreated != nil {
		o.OnConnectionCreated(conn)
	}
}

func (o ObserverFuncs) StateChanged(conn *Connection, from, to State) {
	if o.OnStateChanged != nil {
		o.OnStateChanged(conn, from, to)
	}
}

func (o ObserverFuncs) ConnectionRemoved(conn *Connection) {
	if o.OnConnectionRemoved != nil {
		o.OnConnectionRemoved(conn)
	}
}

func (o ObserverFuncs) SendFailed(socket SocketID, d transport.Datagram, err error) {
	if o.OnSendFailed != nil {
		o.OnSendFailed(socket, d, err)
	}
}
