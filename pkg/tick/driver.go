// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tick

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/stokes-go/pkg/socket"
)

// Driver performs the steps of a tick on a Registry.
type Driver struct {
	registry *socket.Registry
}

// NewDriver for a Registry. The Driver does not own the Registry.
func NewDriver(registry *socket.Registry) *Driver {
	return &Driver{registry: registry}
}

// Registry being driven.
func (d *Driver) Registry() *socket.Registry {
	return d.registry
}

// Poll is the first step: every socket's outbound queue is sealed and each due socket is polled.
func (d *Driver) Poll(now time.Time) (polled int) {
	for _, id := range d.registry.Sockets() {
		d.registry.Seal(id)

		if d.registry.Poll(id, now) {
			polled++
		}
	}
	return
}

// Demux is the second step, demultiplexing all Events of the previous Poll.
func (d *Driver) Demux() socket.DemuxResult {
	return d.registry.DemuxAll()
}

// Flush is the third step, sending each socket's Datagrams sealed by the previous Poll.
func (d *Driver) Flush() (sent, failed int) {
	for _, id := range d.registry.Sockets() {
		s, f := d.registry.FlushSealed(id)
		sent += s
		failed += f
	}
	return
}

// Tick performs all three steps in their order.
func (d *Driver) Tick(now time.Time) (stats Stats) {
	stats.Polled = d.Poll(now)
	stats.DemuxResult = d.Demux()
	stats.Sent, stats.Failed = d.Flush()

	if !stats.IsIdle() {
		log.WithFields(stats.fields()).Trace("Driver finished tick")
	}
	return
}
