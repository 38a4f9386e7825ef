// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tick

import (
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/stokes-go/pkg/socket"
)

// Stats of a single tick.
type Stats struct {
	// Polled is the amount of sockets being due and polled.
	Polled int

	socket.DemuxResult

	// Sent and Failed count outbound Datagrams.
	Sent   int
	Failed int

	// Jobs is the amount of executed Cron jobs.
	Jobs int
}

// IsIdle is true if nothing happened within this tick.
func (s Stats) IsIdle() bool {
	return s.Events == 0 && s.Sent == 0 && s.Failed == 0 && s.Jobs == 0
}

func (s Stats) fields() log.Fields {
	return log.Fields{
		"polled":  s.Polled,
		"events":  s.Events,
		"created": s.Created,
		"updated": s.Updated,
		"removed": s.Removed,
		"sent":    s.Sent,
		"failed":  s.Failed,
		"jobs":    s.Jobs,
	}
}
