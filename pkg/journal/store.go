// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package journal

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/timshannon/badgerhold"

	"github.com/dtn7/stokes-go/pkg/socket"
	"github.com/dtn7/stokes-go/pkg/transport"
)

// Store of journal Entries, backed by badgerhold.
type Store struct {
	bh *badgerhold.Store

	// now is replaceable for testing.
	now func() time.Time

	mutex  sync.Mutex
	lastId uint64
}

// NewStore creates a new Store or opens an existing Store from the given directory.
func NewStore(dir string) (s *Store, err error) {
	opts := badgerhold.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	opts.Logger = log.StandardLogger()
	opts.Options.ValueLogFileSize = 1<<28 - 1

	if dirErr := os.MkdirAll(dir, 0700); dirErr != nil {
		err = dirErr
		return
	}

	if bh, bhErr := badgerhold.Open(opts); bhErr != nil {
		err = bhErr
	} else {
		s = &Store{
			bh:  bh,
			now: time.Now,
		}
	}
	return
}

// Close the Store. It must not be used afterwards.
func (s *Store) Close() error {
	return s.bh.Close()
}

// nextId is derived from the current time, but strictly increasing.
func (s *Store) nextId(at time.Time) uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id := uint64(at.UnixNano())
	if id <= s.lastId {
		id = s.lastId + 1
	}
	s.lastId = id
	return id
}

// Insert an Entry, whose Id and time are assigned by the Store.
func (s *Store) Insert(e Entry) (Entry, error) {
	e.At = s.now()
	e.Id = s.nextId(e.At)

	return e, s.bh.Insert(e.Id, e)
}

func (s *Store) insertLogged(e Entry) {
	if e, err := s.Insert(e); err != nil {
		log.WithError(err).WithField("entry", e).Warn("Journal failed to insert entry")
	} else {
		log.WithField("entry", e).Trace("Journal inserted entry")
	}
}

func entryFor(conn *socket.Connection, to socket.State) Entry {
	return Entry{
		Socket:     uint64(conn.Peer().Socket),
		Peer:       conn.Peer().String(),
		Connection: uint64(conn.ID()),
		To:         to.String(),
		Detail:     fmt.Sprintf("%d queued", conn.Len()),
	}
}

// ConnectionCreated journals a Created Entry.
func (s *Store) ConnectionCreated(conn *socket.Connection) {
	e := entryFor(conn, conn.State())
	e.Kind = Created
	s.insertLogged(e)
}

// StateChanged journals a StateChanged Entry.
func (s *Store) StateChanged(conn *socket.Connection, from, to socket.State) {
	e := entryFor(conn, to)
	e.Kind = StateChanged
	e.From = from.String()
	s.insertLogged(e)
}

// ConnectionRemoved journals a Removed Entry.
func (s *Store) ConnectionRemoved(conn *socket.Connection) {
	e := entryFor(conn, conn.State())
	e.Kind = Removed
	s.insertLogged(e)
}

// SendFailed journals a SendFailed Entry.
func (s *Store) SendFailed(id socket.SocketID, d transport.Datagram, err error) {
	s.insertLogged(Entry{
		Socket: uint64(id),
		Peer:   socket.PeerID{Socket: id, Addr: transport.Normalize(d.Addr)}.String(),
		Kind:   SendFailed,
		Detail: err.Error(),
	})
}

func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool { return es[i].Id < es[j].Id })
}

// QueryPeer fetches all Entries of a peer, oldest first.
func (s *Store) QueryPeer(peer socket.PeerID) (es []Entry, err error) {
	err = s.bh.Find(&es, badgerhold.Where("Peer").Eq(peer.String()))
	sortEntries(es)
	return
}

// QuerySince fetches all Entries since some point in time, oldest first.
func (s *Store) QuerySince(t time.Time) (es []Entry, err error) {
	err = s.bh.Find(&es, badgerhold.Where("At").Ge(t))
	sortEntries(es)
	return
}

// DeleteBefore removes all Entries older than some point in time and returns their amount.
func (s *Store) DeleteBefore(t time.Time) (n int, err error) {
	var es []Entry
	if err = s.bh.Find(&es, badgerhold.Where("At").Lt(t)); err != nil {
		return
	}

	for _, e := range es {
		if err = s.bh.Delete(e.Id, Entry{}); err != nil {
			return
		}
		n++
	}

	if n > 0 {
		log.WithFields(log.Fields{
			"before":  t,
			"deleted": n,
		}).Info("Journal deleted old entries")
	}
	return
}
