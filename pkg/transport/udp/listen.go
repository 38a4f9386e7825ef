// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux
// +build !linux

package udp

import (
	"net"

	"github.com/dtn7/stokes-go/pkg/transport"
)

// This file implements listening for operating systems next to Linux. The buffer sizes are set through the
// portable net.UDPConn methods.

// listen on a new UDP socket with the configured buffer sizes.
func listen(address string, cfg transport.Config) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}

	if cfg.SocketReadBuffer > 0 {
		if err := conn.SetReadBuffer(cfg.SocketReadBuffer); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	if cfg.SocketWriteBuffer > 0 {
		if err := conn.SetWriteBuffer(cfg.SocketWriteBuffer); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	return conn, nil
}
