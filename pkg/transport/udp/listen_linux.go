// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux
// +build linux

package udp

import (
	"context"
	"net"
	"syscall"

	log "github.com/sirupsen/logrus"

	"golang.org/x/sys/unix"

	"github.com/dtn7/stokes-go/pkg/transport"
)

// Within this file, the socket's buffer sizes are configured through Linux-specific socket options. The kernel
// doubles the requested values, which are therefore read back and logged.
//
// See socket(7) for SO_RCVBUF and SO_SNDBUF.
// <https://man7.org/linux/man-pages/man7/socket.7.html>

// listenControl creates a net.ListenConfig's Control function for the Config's buffer sizes.
func listenControl(cfg transport.Config) func(string, string, syscall.RawConn) error {
	opts := map[int]int{}
	if cfg.SocketReadBuffer > 0 {
		opts[unix.SO_RCVBUF] = cfg.SocketReadBuffer
	}
	if cfg.SocketWriteBuffer > 0 {
		opts[unix.SO_SNDBUF] = cfg.SocketWriteBuffer
	}

	return func(_, address string, rawConn syscall.RawConn) (err error) {
		ctrlErr := rawConn.Control(func(fd uintptr) {
			for opt, value := range opts {
				if err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, opt, value); err != nil {
					return
				}

				if effective, getErr := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, opt); getErr == nil {
					log.WithFields(log.Fields{
						"address":   address,
						"option":    opt,
						"requested": value,
						"effective": effective,
					}).Debug("Configured UDP socket buffer")
				}
			}
		})
		if ctrlErr != nil {
			err = ctrlErr
		}
		return
	}
}

// listen on a new UDP socket with socket options set.
func listen(address string, cfg transport.Config) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: listenControl(cfg)}
	pc, err := lc.ListenPacket(context.Background(), "udp", address)
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}
