// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package discovery announces local sockets to neighbors through UDP multicast and reports the sockets announced by
// others.
package discovery

const (
	// address4 is the default multicast IPv4 address used for discovery.
	address4 = "224.23.23.24"

	// address6 is the default multicast IPv6 address used for discovery.
	address6 = "ff02::24"

	// port is the default multicast UDP port used for discovery.
	port = 35040
)
