// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package socket

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/dtn7/stokes-go/pkg/transport"
)

// mockSocket mocks a transport.Socket where all fields are directly editable.
type mockSocket struct {
	local netip.AddrPort

	// script holds the Events to be released on each Poll, one slice per call.
	script [][]transport.Event
	events []transport.Event
	polls  []time.Time

	// sent records all sent Datagrams, failOn holds the send indices to fail.
	sent   []transport.Datagram
	sends  int
	failOn map[int]bool

	closed bool
}

func newMockSocket(local string) *mockSocket {
	return &mockSocket{
		local:  netip.MustParseAddrPort(local),
		failOn: make(map[int]bool),
	}
}

// push Events for the next Poll.
func (m *mockSocket) push(events ...transport.Event) {
	m.script = append(m.script, events)
}

func (m *mockSocket) LocalAddr() netip.AddrPort { return m.local }

func (m *mockSocket) Poll(now time.Time) {
	m.polls = append(m.polls, now)
	if len(m.script) == 0 {
		return
	}
	m.events = append(m.events, m.script[0]...)
	m.script = m.script[1:]
}

func (m *mockSocket) NextEvent() (e transport.Event, ok bool) {
	if len(m.events) == 0 {
		return
	}
	e, m.events, ok = m.events[0], m.events[1:], true
	return
}

func (m *mockSocket) Send(d transport.Datagram) error {
	idx := m.sends
	m.sends++

	if m.failOn[idx] {
		return fmt.Errorf("failOn[%d] := true", idx)
	}
	m.sent = append(m.sent, d)
	return nil
}

func (m *mockSocket) Close() error {
	if m.closed {
		return transport.ErrClosed
	}
	m.closed = true
	return nil
}

// mockBinder returns a Binder handing out mockSockets, which are collected in the map.
func mockBinder(sockets map[string]*mockSocket) transport.Binder {
	return func(address string, _ transport.Config) (transport.Socket, error) {
		if _, ok := sockets[address]; ok {
			return nil, &transport.BindError{Address: address, Err: fmt.Errorf("address in use")}
		}
		if _, err := netip.ParseAddrPort(address); err != nil {
			return nil, &transport.BindError{Address: address, Err: err}
		}

		sock := newMockSocket(address)
		sockets[address] = sock
		return sock, nil
	}
}

// recordingObserver logs all Observer calls as strings.
type recordingObserver struct {
	calls []string
}

func (o *recordingObserver) ConnectionCreated(conn *Connection) {
	o.calls = append(o.calls, fmt.Sprintf("created %v %v %d", conn.Addr(), conn.State(), conn.Len()))
}

func (o *recordingObserver) StateChanged(conn *Connection, from, to State) {
	o.calls = append(o.calls, fmt.Sprintf("changed %v %v %v", conn.Addr(), from, to))
}

func (o *recordingObserver) ConnectionRemoved(conn *Connection) {
	o.calls = append(o.calls, fmt.Sprintf("removed %v %v %d", conn.Addr(), conn.State(), conn.Len()))
}

func (o *recordingObserver) SendFailed(socket SocketID, d transport.Datagram, _ error) {
	o.calls = append(o.calls, fmt.Sprintf("failed %d %v %s", socket, d.Addr, d.Payload))
}

func addr(s string) netip.AddrPort {
	return netip.MustParseAddrPort(s)
}

func packet(from, payload string) transport.Event {
	return transport.NewPacketEvent(transport.NewUnreliable(addr(from), []byte(payload)))
}

func payloads(ds []transport.Datagram) (ps []string) {
	for _, d := range ds {
		ps = append(ps, string(d.Payload))
	}
	return
}
