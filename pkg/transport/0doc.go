// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package transport describes the datagram sockets the rest of this module is built upon.
//
// A Socket is polled manually. Each Poll classifies the received datagrams into Events, which are afterwards taken
// one by one through NextEvent. Outgoing Packets are handed to Send. Two implementations exist: package udp for real
// networks and package memory for in-process networks, both sharing the connection tracking of the Tracker.
//
// Packets carry a delivery and an ordering guarantee. Both are transmitted to the peer, but retransmission, reorder
// buffers and congestion control are not part of this module.
package transport
