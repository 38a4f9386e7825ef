// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package socket

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hashicorp/go-multierror"

	"github.com/dtn7/stokes-go/pkg/transport"
)

// ErrUnknownSocket is returned for SocketIDs not known to the Registry.
var ErrUnknownSocket = errors.New("unknown socket")

// socketRecord is the Registry's state of a bound socket.
type socketRecord struct {
	id       SocketID
	sock     transport.Socket
	interval time.Duration

	// lastPoll is only valid if polled is set.
	lastPoll time.Time
	polled   bool

	// outbound is addressed by the sealed prefix, see Registry.Seal.
	outbound []transport.Datagram
	sealed   int

	builders Builders
	conns    map[netip.AddrPort]*Connection
}

// Registry of sockets and their Connections.
type Registry struct {
	binder transport.Binder

	sockets map[SocketID]*socketRecord
	order   []SocketID

	observers []Observer

	nextSocket     SocketID
	nextConnection ConnectionID
}

// NewRegistry creates an empty Registry whose Bind uses the given Binder.
func NewRegistry(binder transport.Binder) *Registry {
	return &Registry{
		binder:         binder,
		sockets:        make(map[SocketID]*socketRecord),
		nextSocket:     1,
		nextConnection: 1,
	}
}

// AddObserver registers an Observer for all further changes.
func (r *Registry) AddObserver(o Observer) {
	r.observers = append(r.observers, o)
}

// Bind a new socket through the Registry's Binder. It will be polled at most once per pollInterval.
func (r *Registry) Bind(address string, pollInterval time.Duration, cfg transport.Config) (SocketID, error) {
	if r.binder == nil {
		return 0, &transport.BindError{Address: address, Err: fmt.Errorf("registry has no binder")}
	}

	sock, err := r.binder(address, cfg)
	if err != nil {
		return 0, err
	}

	return r.Add(sock, pollInterval), nil
}

// Add an already bound transport.Socket. The Registry takes ownership and closes it on Close.
func (r *Registry) Add(sock transport.Socket, pollInterval time.Duration) SocketID {
	if pollInterval < 0 {
		pollInterval = 0
	}

	id := r.nextSocket
	r.nextSocket++

	r.sockets[id] = &socketRecord{
		id:       id,
		sock:     sock,
		interval: pollInterval,
		conns:    make(map[netip.AddrPort]*Connection),
	}
	r.order = append(r.order, id)

	log.WithFields(log.Fields{
		"socket":        id,
		"address":       sock.LocalAddr(),
		"poll-interval": pollInterval,
	}).Info("Registry added socket")

	return id
}

func (r *Registry) record(id SocketID) (*socketRecord, error) {
	if rec, ok := r.sockets[id]; ok {
		return rec, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownSocket, id)
}

// Sockets lists all SocketIDs in the order of their addition.
func (r *Registry) Sockets() []SocketID {
	return append([]SocketID(nil), r.order...)
}

// LocalAddr of a socket.
func (r *Registry) LocalAddr(id SocketID) (netip.AddrPort, error) {
	rec, err := r.record(id)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return rec.sock.LocalAddr(), nil
}

// AddBuilder registers a ConnectionBuilder for a socket's new Connections. Multiple builders are invoked in their
// registration order.
func (r *Registry) AddBuilder(id SocketID, b ConnectionBuilder) error {
	rec, err := r.record(id)
	if err != nil {
		return err
	}
	if b != nil {
		rec.builders = append(rec.builders, b)
	}
	return nil
}

// ShouldPoll reports if a socket is due for its next poll. This is the case if it was never polled or if now is
// after the last poll plus the poll interval. If true, now is stored as the last poll.
func (r *Registry) ShouldPoll(id SocketID, now time.Time) bool {
	rec, ok := r.sockets[id]
	if !ok {
		return false
	}

	if rec.polled && !now.After(rec.lastPoll.Add(rec.interval)) {
		return false
	}

	rec.polled = true
	rec.lastPoll = now
	return true
}

// Poll the socket's transport, if ShouldPoll allows so. The boolean reports if a poll happened.
func (r *Registry) Poll(id SocketID, now time.Time) bool {
	if !r.ShouldPoll(id, now) {
		return false
	}

	r.sockets[id].sock.Poll(now)
	return true
}

// Enqueue a Datagram to be sent by the socket on its next flush. The queue is unbounded.
func (r *Registry) Enqueue(id SocketID, d transport.Datagram) error {
	rec, err := r.record(id)
	if err != nil {
		return err
	}

	rec.outbound = append(rec.outbound, d)
	return nil
}

// QueueLen is the amount of Datagrams waiting in a socket's outbound queue.
func (r *Registry) QueueLen(id SocketID) int {
	if rec, ok := r.sockets[id]; ok {
		return len(rec.outbound)
	}
	return 0
}

// Seal marks all currently enqueued Datagrams of a socket to be sent by the next FlushSealed. Datagrams enqueued
// afterwards wait for a later seal.
func (r *Registry) Seal(id SocketID) {
	if rec, ok := r.sockets[id]; ok {
		rec.sealed = len(rec.outbound)
	}
}

// Flush sends all enqueued Datagrams of a socket in FIFO order. A failed Datagram is logged, reported to the
// Observers and dropped; the remaining ones are still attempted.
func (r *Registry) Flush(id SocketID) (sent, failed int) {
	if rec, ok := r.sockets[id]; ok {
		sent, failed = r.flush(rec, len(rec.outbound))
	}
	return
}

// FlushSealed sends the Datagrams marked by the last Seal, just like Flush does.
func (r *Registry) FlushSealed(id SocketID) (sent, failed int) {
	if rec, ok := r.sockets[id]; ok {
		sent, failed = r.flush(rec, rec.sealed)
	}
	return
}

func (r *Registry) flush(rec *socketRecord, n int) (sent, failed int) {
	if n > len(rec.outbound) {
		n = len(rec.outbound)
	}

	batch := rec.outbound[:n]
	rec.outbound = append([]transport.Datagram(nil), rec.outbound[n:]...)
	rec.sealed = 0

	for _, d := range batch {
		if err := rec.sock.Send(d); err != nil {
			failed++

			log.WithError(err).WithFields(log.Fields{
				"socket":   rec.id,
				"datagram": d,
			}).Warn("Failed to send")

			for _, o := range r.observers {
				o.SendFailed(rec.id, d, err)
			}
		} else {
			sent++
		}
	}

	return
}

// Find the Connection of a peer.
func (r *Registry) Find(id SocketID, addr netip.AddrPort) (*Connection, bool) {
	rec, ok := r.sockets[id]
	if !ok {
		return nil, false
	}

	conn, ok := rec.conns[transport.Normalize(addr)]
	return conn, ok
}

// Connections of a socket, ordered by their creation.
func (r *Registry) Connections(id SocketID) (conns []*Connection) {
	rec, ok := r.sockets[id]
	if !ok {
		return
	}

	for _, conn := range rec.conns {
		conns = append(conns, conn)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].id < conns[j].id })
	return
}

// create a Connection and run the socket's builders before it becomes visible.
func (r *Registry) create(rec *socketRecord, addr netip.AddrPort, state State, queue []transport.Datagram) *Connection {
	conn := &Connection{
		id:    r.nextConnection,
		peer:  PeerID{Socket: rec.id, Addr: addr},
		state: state,
		queue: queue,
	}
	r.nextConnection++

	rec.builders.OnCreate(addr, conn)
	rec.conns[addr] = conn

	log.WithFields(log.Fields{
		"socket":     rec.id,
		"peer":       addr,
		"connection": conn.id,
		"state":      state,
		"queued":     len(queue),
	}).Debug("Registry created connection")

	for _, o := range r.observers {
		o.ConnectionCreated(conn)
	}
	return conn
}

// setState of an existing Connection to a non-terminal State.
func (r *Registry) setState(conn *Connection, state State) {
	from := conn.state
	if from == state {
		return
	}
	conn.state = state

	log.WithFields(log.Fields{
		"peer": conn.peer,
		"from": from,
		"to":   state,
	}).Debug("Registry changed connection state")

	for _, o := range r.observers {
		o.StateChanged(conn, from, state)
	}
}

// remove a Connection from its socket, leaving its queue untouched. False is returned if it was already removed.
func (r *Registry) remove(rec *socketRecord, conn *Connection) bool {
	if rec.conns[conn.peer.Addr] != conn {
		return false
	}
	delete(rec.conns, conn.peer.Addr)
	conn.state = Disconnected

	log.WithFields(log.Fields{
		"peer":       conn.peer,
		"connection": conn.id,
		"queued":     len(conn.queue),
	}).Debug("Registry removed connection")

	for _, o := range r.observers {
		o.ConnectionRemoved(conn)
	}
	return true
}

// Destroy a peer's Connection on the caller's behalf. False is returned for an unknown peer.
func (r *Registry) Destroy(peer PeerID) bool {
	rec, ok := r.sockets[peer.Socket]
	if !ok {
		return false
	}

	conn, ok := rec.conns[transport.Normalize(peer.Addr)]
	if !ok {
		return false
	}

	return r.remove(rec, conn)
}

// Close a socket: all its Connections are removed, pending outbound Datagrams are discarded and its transport is
// closed.
func (r *Registry) Close(id SocketID) error {
	rec, err := r.record(id)
	if err != nil {
		return err
	}

	for _, conn := range r.Connections(id) {
		r.remove(rec, conn)
	}

	delete(r.sockets, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	log.WithFields(log.Fields{
		"socket":   id,
		"address":  rec.sock.LocalAddr(),
		"outbound": len(rec.outbound),
	}).Info("Registry closes socket")

	return rec.sock.Close()
}

// CloseAll sockets, collecting every error.
func (r *Registry) CloseAll() (errs error) {
	for _, id := range r.Sockets() {
		if err := r.Close(id); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("closing socket %d: %w", id, err))
		}
	}
	return
}
