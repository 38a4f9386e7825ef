// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// stokes-tool exchanges datagrams with other sockets for testing purposes.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// printUsage of stokes-tool and exit with an error code afterwards.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s ping|pong:\n\n", os.Args[0])

	_, _ = fmt.Fprintf(os.Stderr, "%s ping local-address remote-address\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Binds the local address and sends a ping to the remote address every second.\n")
	_, _ = fmt.Fprintf(os.Stderr, "  Each reply is printed together with its round-trip time.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s pong local-address\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Binds the local address and answers every received datagram.\n\n")

	os.Exit(1)
}

// printFatal of an error and exit with an error code afterwards.
func printFatal(err error, msg string) {
	log.WithError(err).Error(msg)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
	}

	switch os.Args[1] {
	case "ping":
		ping(os.Args[2:])

	case "pong":
		pong(os.Args[2:])

	default:
		printUsage()
	}
}
