// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package socket keeps track of bound sockets and their peers' connections.
//
// The Registry holds one record per local Socket and, keyed by the pair of socket and remote address, one Connection
// per peer. Connections are never created by the caller. They appear as soon as a socket's poll produced an Event
// for an unseen peer and disappear on a Disconnect or Timeout. Each Connection owns a FIFO of received Datagrams,
// which is drained by the caller between ticks.
//
// All Events of one poll are demultiplexed as a batch: they are first grouped by their peer's address and only
// afterwards applied, resulting in at most one creation and at most one removal per peer and batch.
//
// The Registry performs no locking. It must only be used from one goroutine, usually the one driving the ticks.
package socket
