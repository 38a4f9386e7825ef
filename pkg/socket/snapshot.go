// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package socket

import (
	"time"
)

// ConnectionSnapshot is a copy of a Connection's state.
type ConnectionSnapshot struct {
	ID      ConnectionID `json:"id"`
	Addr    string       `json:"addr"`
	State   string       `json:"state"`
	Inbound int          `json:"inbound"`
}

// SocketSnapshot is a copy of a socket's state together with its Connections.
type SocketSnapshot struct {
	ID           SocketID             `json:"id"`
	LocalAddr    string               `json:"local_addr"`
	PollInterval time.Duration        `json:"poll_interval"`
	LastPoll     time.Time            `json:"last_poll,omitempty"`
	Outbound     int                  `json:"outbound"`
	Connections  []ConnectionSnapshot `json:"connections"`
}

// Snapshot is a copy of a Registry, safe to be handed to other goroutines.
type Snapshot struct {
	Taken   time.Time        `json:"taken"`
	Sockets []SocketSnapshot `json:"sockets"`
}

// Socket returns the SocketSnapshot for an ID.
func (s Snapshot) Socket(id SocketID) (SocketSnapshot, bool) {
	for _, sock := range s.Sockets {
		if sock.ID == id {
			return sock, true
		}
	}
	return SocketSnapshot{}, false
}

// Snapshot copies the Registry's current state.
func (r *Registry) Snapshot(now time.Time) (snap Snapshot) {
	snap.Taken = now
	snap.Sockets = make([]SocketSnapshot, 0, len(r.order))

	for _, id := range r.order {
		rec := r.sockets[id]

		sockSnap := SocketSnapshot{
			ID:           id,
			LocalAddr:    rec.sock.LocalAddr().String(),
			PollInterval: rec.interval,
			Outbound:     len(rec.outbound),
			Connections:  []ConnectionSnapshot{},
		}
		if rec.polled {
			sockSnap.LastPoll = rec.lastPoll
		}

		for _, conn := range r.Connections(id) {
			sockSnap.Connections = append(sockSnap.Connections, ConnectionSnapshot{
				ID:      conn.id,
				Addr:    conn.peer.Addr.String(),
				State:   conn.state.String(),
				Inbound: len(conn.queue),
			})
		}

		snap.Sockets = append(snap.Sockets, sockSnap)
	}
	return
}
