// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package journal

import (
	"fmt"
	"time"
)

// Kind of an Entry.
type Kind uint

const (
	// Created Connection.
	Created Kind = iota

	// StateChanged of a Connection.
	StateChanged

	// Removed Connection.
	Removed

	// SendFailed for a Datagram. Connection and states are unset.
	SendFailed
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case StateChanged:
		return "state-changed"
	case Removed:
		return "removed"
	case SendFailed:
		return "send-failed"
	default:
		return "unknown"
	}
}

// Entry is a single journaled lifecycle change.
type Entry struct {
	Id uint64 `badgerhold:"key"`

	Socket     uint64
	Peer       string `badgerholdIndex:"Peer"`
	Connection uint64

	Kind Kind
	From string
	To   string

	// Detail holds the error of a SendFailed or the amount of queued Datagrams otherwise.
	Detail string

	At time.Time `badgerholdIndex:"At"`
}

func (e Entry) String() string {
	return fmt.Sprintf("Entry(%d, %s, %v, %s->%s, %s)", e.Id, e.Peer, e.Kind, e.From, e.To, e.Detail)
}
