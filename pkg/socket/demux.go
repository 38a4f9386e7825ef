// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package socket

import (
	"net/netip"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/stokes-go/pkg/transport"
)

// action is everything one batch wants to happen to a single peer.
type action struct {
	addr netip.AddrPort

	// state is the last requested State, only valid if hasState is set. The later Event wins.
	state    State
	hasState bool

	// connected records any Connect within the batch, even if a later Event overruled it.
	connected bool

	packets []transport.Datagram
}

// Batch is the first phase of demultiplexing: all Events of one poll, grouped by their peer's address. A Batch does
// not touch any Registry until it is applied.
type Batch struct {
	actions []*action
	index   map[netip.AddrPort]*action
	events  int
}

// NewBatch groups the Events of one poll. The order of the peers' first appearance is kept, as is the order of
// each peer's Datagrams.
func NewBatch(events []transport.Event) *Batch {
	b := &Batch{index: make(map[netip.AddrPort]*action)}
	for _, e := range events {
		b.Add(e)
	}
	return b
}

func (b *Batch) lookup(addr netip.AddrPort) *action {
	a, ok := b.index[addr]
	if !ok {
		a = &action{addr: addr}
		b.index[addr] = a
		b.actions = append(b.actions, a)
	}
	return a
}

// Add another Event to this Batch.
func (b *Batch) Add(e transport.Event) {
	b.events++

	addr := transport.Normalize(e.Addr)
	log.WithFields(log.Fields{
		"event":   e.Kind,
		"address": addr,
	}).Trace("Demultiplexing event")

	switch e.Kind {
	case transport.Connect:
		a := b.lookup(addr)
		a.state, a.hasState, a.connected = Connected, true, true

	case transport.Disconnect, transport.Timeout:
		a := b.lookup(addr)
		a.state, a.hasState = Disconnected, true

	case transport.Packet:
		a := b.lookup(addr)
		a.packets = append(a.packets, e.Packet)

	default:
		log.WithField("event", e).Warn("Ignoring event of unknown kind")
	}
}

// Peers is the amount of distinct addresses within this Batch.
func (b *Batch) Peers() int {
	return len(b.actions)
}

// Events is the amount of Events added to this Batch.
func (b *Batch) Events() int {
	return b.events
}

// DemuxResult summarizes the application of a Batch.
type DemuxResult struct {
	Events  int
	Created int
	Updated int
	Removed int
}

func (res *DemuxResult) add(other DemuxResult) {
	res.Events += other.Events
	res.Created += other.Created
	res.Updated += other.Updated
	res.Removed += other.Removed
}

// Apply a Batch to a socket's Connections. This is the second phase of demultiplexing, performing exactly one
// creation, update or removal per peer.
//
// Datagrams are always queued, even if the same Batch removes the peer. The removed Connection is handed to the
// Observers with its queue intact. A removal for an unknown peer without any Datagrams is a no-op.
//
// If a ConnectionBuilder or an Observer closes the socket, the Batch's remaining peers are skipped.
func (r *Registry) Apply(id SocketID, b *Batch) (res DemuxResult, err error) {
	rec, err := r.record(id)
	if err != nil {
		return
	}

	res.Events = b.events

	for i, a := range b.actions {
		// A Builder or an Observer might have closed this socket.
		if r.sockets[id] != rec {
			log.WithFields(log.Fields{
				"socket":  id,
				"skipped": len(b.actions) - i,
			}).Debug("Socket was closed while demultiplexing, skipping remaining peers")
			break
		}

		conn, exists := rec.conns[a.addr]
		terminal := a.hasState && a.state == Disconnected

		switch {
		case exists:
			conn.queue = append(conn.queue, a.packets...)
			if terminal {
				r.remove(rec, conn)
				res.Removed++
			} else {
				if a.hasState {
					r.setState(conn, a.state)
				}
				res.Updated++
			}

		case terminal && len(a.packets) == 0:
			log.WithFields(log.Fields{
				"socket":  id,
				"address": a.addr,
			}).Debug("Ignoring disconnect or timeout for unknown peer")

		case terminal:
			state := Pending
			if a.connected {
				state = Connected
			}

			conn = r.create(rec, a.addr, state, a.packets)
			res.Created++
			if r.remove(rec, conn) {
				res.Removed++
			}

		default:
			state := Pending
			if a.hasState {
				state = a.state
			}

			r.create(rec, a.addr, state, a.packets)
			res.Created++
		}
	}

	return
}

// Demux drains all Events a socket's last poll produced and applies them as one Batch.
func (r *Registry) Demux(id SocketID) (res DemuxResult, err error) {
	rec, err := r.record(id)
	if err != nil {
		return
	}

	var events []transport.Event
	for e, ok := rec.sock.NextEvent(); ok; e, ok = rec.sock.NextEvent() {
		events = append(events, e)
	}
	if len(events) == 0 {
		return
	}

	return r.Apply(id, NewBatch(events))
}

// DemuxAll demultiplexes every socket, in the order of their addition.
func (r *Registry) DemuxAll() (res DemuxResult) {
	for _, id := range r.Sockets() {
		single, _ := r.Demux(id)
		res.add(single)
	}
	return
}
