// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// stokesd binds UDP sockets and keeps track of their peers' connections.
package main

import (
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/stokes-go/pkg/transport/udp"
)

// waitSigint blocks the current thread until a SIGINT appears.
func waitSigint() {
	signalSyn := make(chan os.Signal, 1)
	signalAck := make(chan struct{})

	signal.Notify(signalSyn, os.Interrupt)

	go func() {
		<-signalSyn
		close(signalAck)
	}()

	<-signalAck
}

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("Usage: %s configuration.toml", os.Args[0])
	}

	s, err := parseConfig(os.Args[1])
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Fatal("Failed to parse config")
	}
	applyLogging(s.logging)

	d, err := newDaemon(s, udp.Binder)
	if err != nil {
		log.WithError(err).Fatal("Failed to start daemon")
	}

	if err := d.watchConfig(os.Args[1]); err != nil {
		log.WithError(err).Warn("Failed to watch configuration, changes require a restart")
	}

	waitSigint()
	log.Info("Shutting down..")

	if err := d.close(); err != nil {
		log.WithError(err).Warn("Shutdown errored")
	}
}
