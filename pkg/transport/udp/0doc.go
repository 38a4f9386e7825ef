// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package udp implements a transport.Socket over a bound UDP socket.
//
// Every datagram carries one frame: a CBOR array of a protocol identifier, the frame's kind, the Datagram's delivery
// and ordering guarantee, its stream and the payload, followed by a big-endian CRC-16 CCITT over the CBOR bytes.
// Heartbeat frames keep established peers alive and are never surfaced as Packet Events.
package udp
