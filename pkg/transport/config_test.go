// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
)

func TestConfigCheckValid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errs   int
	}{
		{"default", func(*Config) {}, 0},
		{"heartbeat", func(c *Config) { c.HeartbeatInterval = time.Second }, 0},
		{"heartbeat too slow", func(c *Config) { c.HeartbeatInterval = c.IdleConnectionTimeout }, 1},
		{"no timeout", func(c *Config) { c.IdleConnectionTimeout = 0 }, 1},
		{"small buffer", func(c *Config) { c.ReceiveBufferSize = 10 }, 1},
		{"everything", func(c *Config) {
			c.IdleConnectionTimeout = -1
			c.MaxPayloadSize = 0
			c.EventQueueSize = 0
			c.MaxUnestablishedConnections = 0
			c.PollTimeout = 0
			c.SocketReadBuffer = -1
		}, 6},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			test.modify(&cfg)

			err := cfg.CheckValid()
			if test.errs == 0 {
				if err != nil {
					t.Fatalf("Valid config errored: %v", err)
				}
				return
			}

			merr, ok := err.(*multierror.Error)
			if !ok {
				t.Fatalf("Expected a multierror, got %T: %v", err, err)
			}
			if l := len(merr.Errors); l != test.errs {
				t.Fatalf("Expected %d errors, got %d: %v", test.errs, l, merr)
			}
		})
	}
}
