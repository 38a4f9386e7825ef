// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package inspect

import (
	"time"

	"github.com/dtn7/stokes-go/pkg/socket"
	"github.com/dtn7/stokes-go/pkg/transport"
)

// Event is a lifecycle change, as sent to WebSocket clients.
type Event struct {
	Kind       string `json:"kind"`
	Socket     uint64 `json:"socket"`
	Peer       string `json:"peer"`
	Connection uint64 `json:"connection,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Error      string `json:"error,omitempty"`

	At time.Time `json:"at"`
}

func connectionEvent(kind string, conn *socket.Connection) Event {
	return Event{
		Kind:       kind,
		Socket:     uint64(conn.Peer().Socket),
		Peer:       conn.Addr().String(),
		Connection: uint64(conn.ID()),
		To:         conn.State().String(),
	}
}

// ConnectionCreated broadcasts a "created" Event.
func (s *Server) ConnectionCreated(conn *socket.Connection) {
	s.broadcast(connectionEvent("created", conn))
}

// StateChanged broadcasts a "state-changed" Event.
func (s *Server) StateChanged(conn *socket.Connection, from, to socket.State) {
	e := connectionEvent("state-changed", conn)
	e.From = from.String()
	e.To = to.String()
	s.broadcast(e)
}

// ConnectionRemoved broadcasts a "removed" Event.
func (s *Server) ConnectionRemoved(conn *socket.Connection) {
	s.broadcast(connectionEvent("removed", conn))
}

// SendFailed broadcasts a "send-failed" Event.
func (s *Server) SendFailed(id socket.SocketID, d transport.Datagram, err error) {
	s.broadcast(Event{
		Kind:   "send-failed",
		Socket: uint64(id),
		Peer:   transport.Normalize(d.Addr).String(),
		Error:  err.Error(),
	})
}
