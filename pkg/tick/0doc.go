// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package tick drives a socket.Registry.
//
// Each tick consists of three steps, always performed in this order: all due sockets are polled, the resulting
// Events are demultiplexed into Connections and finally the outbound queues are flushed. Datagrams enqueued while or
// after demultiplexing are sent on the following tick.
//
// A Driver performs these steps on the caller's goroutine. A Loop runs a Driver on its own goroutine, together with
// a Cron for interval based jobs. Other goroutines must access the Registry through Loop.Do.
package tick
