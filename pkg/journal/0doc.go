// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package journal persists the lifecycle of a Registry's Connections.
//
// A Store is registered as a socket.Observer and writes one Entry for each creation, state change, removal and
// failed send into a badgerhold database. Entries can be queried by their peer or by their time and pruned.
package journal
