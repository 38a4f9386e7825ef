// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"net/netip"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

// trackedPeer is the transport level view of a remote address.
type trackedPeer struct {
	lastHeard time.Time
	lastSent  time.Time

	heard       bool
	sent        bool
	established bool
}

// Tracker derives Connect, Timeout and Disconnect Events from the datagrams a Socket sends and receives.
//
// A peer is established as soon as datagrams were both sent to and received from it, resulting in a Connect. Peers
// being silent for longer than the IdleConnectionTimeout are dropped with a Timeout, followed by a Disconnect if
// they were established.
type Tracker struct {
	cfg   Config
	emit  func(Event)
	peers map[netip.AddrPort]*trackedPeer

	unestablished int
}

// NewTracker based on the Config's timeouts and limits. Every derived Event is passed to emit.
func NewTracker(cfg Config, emit func(Event)) *Tracker {
	return &Tracker{
		cfg:   cfg,
		emit:  emit,
		peers: make(map[netip.AddrPort]*trackedPeer),
	}
}

func (t *Tracker) lookup(addr netip.AddrPort, now time.Time) *trackedPeer {
	p, ok := t.peers[addr]
	if !ok {
		p = &trackedPeer{lastHeard: now, lastSent: now}
		t.peers[addr] = p
		t.unestablished++
	}
	return p
}

func (t *Tracker) checkEstablished(addr netip.AddrPort, p *trackedPeer) {
	if p.established || !p.heard || !p.sent {
		return
	}

	p.established = true
	t.unestablished--

	log.WithField("peer", addr).Debug("Tracker established peer")
	t.emit(NewConnect(addr))
}

// Received must be called for each inbound datagram. False is returned if the datagram should be dropped because
// too many peers are still unestablished.
func (t *Tracker) Received(addr netip.AddrPort, now time.Time) bool {
	if _, known := t.peers[addr]; !known && t.unestablished >= t.cfg.MaxUnestablishedConnections {
		log.WithFields(log.Fields{
			"peer":  addr,
			"limit": t.cfg.MaxUnestablishedConnections,
		}).Warn("Tracker refuses peer, too many unestablished connections")

		return false
	}

	p := t.lookup(addr, now)
	p.heard = true
	p.lastHeard = now

	t.checkEstablished(addr, p)
	return true
}

// Sent must be called for each outbound datagram.
func (t *Tracker) Sent(addr netip.AddrPort, now time.Time) {
	p := t.lookup(addr, now)
	p.sent = true
	p.lastSent = now

	t.checkEstablished(addr, p)
}

// sortedAddrs of all tracked peers, for a deterministic Event order.
func (t *Tracker) sortedAddrs() []netip.AddrPort {
	addrs := make([]netip.AddrPort, 0, len(t.peers))
	for addr := range t.peers {
		addrs = append(addrs, addr)
	}

	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].Addr() != addrs[j].Addr() {
			return addrs[i].Addr().Less(addrs[j].Addr())
		}
		return addrs[i].Port() < addrs[j].Port()
	})
	return addrs
}

// HeartbeatsDue lists the established peers nothing was sent to within the HeartbeatInterval.
func (t *Tracker) HeartbeatsDue(now time.Time) (addrs []netip.AddrPort) {
	if t.cfg.HeartbeatInterval <= 0 {
		return
	}

	for _, addr := range t.sortedAddrs() {
		p := t.peers[addr]
		if p.established && !now.Before(p.lastSent.Add(t.cfg.HeartbeatInterval)) {
			addrs = append(addrs, addr)
		}
	}
	return
}

// Expire drops all peers being idle for longer than the IdleConnectionTimeout.
func (t *Tracker) Expire(now time.Time) {
	for _, addr := range t.sortedAddrs() {
		p := t.peers[addr]
		if !now.After(p.lastHeard.Add(t.cfg.IdleConnectionTimeout)) {
			continue
		}

		log.WithFields(log.Fields{
			"peer":        addr,
			"established": p.established,
			"last-heard":  p.lastHeard,
		}).Debug("Tracker drops idle peer")

		t.forget(addr, p)

		t.emit(NewTimeout(addr))
		if p.established {
			t.emit(NewDisconnect(addr))
		}
	}
}

func (t *Tracker) forget(addr netip.AddrPort, p *trackedPeer) {
	if !p.established {
		t.unestablished--
	}
	delete(t.peers, addr)
}

// Forget a peer without emitting any Event.
func (t *Tracker) Forget(addr netip.AddrPort) {
	if p, ok := t.peers[addr]; ok {
		t.forget(addr, p)
	}
}

// Established reports if the peer is known and established.
func (t *Tracker) Established(addr netip.AddrPort) bool {
	p, ok := t.peers[addr]
	return ok && p.established
}

// Len is the amount of tracked peers.
func (t *Tracker) Len() int {
	return len(t.peers)
}
