// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package inspect exposes a Registry over HTTP.
//
// The Server answers REST requests from the last published socket.Snapshot and streams each lifecycle change as a
// JSON Event to all WebSocket clients. The Server never accesses a Registry itself:
//
//	GET /sockets                     the complete Snapshot
//	GET /sockets/{id}/connections    the Connections of a single socket
//	GET /ws                          WebSocket stream of Events
package inspect
