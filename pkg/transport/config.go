// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Config of a Socket. Start with DefaultConfig and overwrite the fields of interest.
type Config struct {
	// IdleConnectionTimeout after which a silent peer emits a Timeout.
	IdleConnectionTimeout time.Duration

	// HeartbeatInterval after which an otherwise quiet established peer receives a heartbeat. Zero disables
	// heartbeats.
	HeartbeatInterval time.Duration

	// MaxPayloadSize is the largest payload a single Datagram might carry.
	MaxPayloadSize int

	// ReceiveBufferSize is the size of the buffer a single datagram is read into. Larger datagrams are truncated
	// and will be dropped as malformed.
	ReceiveBufferSize int

	// EventQueueSize is the initial capacity of a Socket's Event queue, which grows if necessary. A UDP Socket reads
	// at most half as many datagrams within a single Poll, as each datagram might result in two Events.
	EventQueueSize int

	// MaxUnestablishedConnections limits the amount of tracked peers which have not been established yet.
	MaxUnestablishedConnections int

	// PollTimeout is the time a Poll waits for further datagrams before returning.
	PollTimeout time.Duration

	// SocketReadBuffer and SocketWriteBuffer are the operating system's buffer sizes. Zero keeps the system's
	// default.
	SocketReadBuffer  int
	SocketWriteBuffer int
}

// DefaultConfig returns a Config with sensible defaults for local networks.
func DefaultConfig() Config {
	return Config{
		IdleConnectionTimeout:       5 * time.Second,
		HeartbeatInterval:           0,
		MaxPayloadSize:              1400,
		ReceiveBufferSize:           1452,
		EventQueueSize:              1024,
		MaxUnestablishedConnections: 50,
		PollTimeout:                 time.Millisecond,
	}
}

// CheckValid returns an array of errors for incorrect values.
func (cfg Config) CheckValid() (errs error) {
	if cfg.IdleConnectionTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("idle connection timeout must be positive, not %v", cfg.IdleConnectionTimeout))
	}

	if cfg.HeartbeatInterval < 0 {
		errs = multierror.Append(errs, fmt.Errorf("heartbeat interval must not be negative, not %v", cfg.HeartbeatInterval))
	} else if cfg.HeartbeatInterval > 0 && cfg.HeartbeatInterval >= cfg.IdleConnectionTimeout {
		errs = multierror.Append(errs, fmt.Errorf("heartbeat interval %v would not prevent idle timeout %v",
			cfg.HeartbeatInterval, cfg.IdleConnectionTimeout))
	}

	if cfg.MaxPayloadSize <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("max payload size must be positive, not %d", cfg.MaxPayloadSize))
	}
	if cfg.ReceiveBufferSize < cfg.MaxPayloadSize {
		errs = multierror.Append(errs, fmt.Errorf("receive buffer size %d is smaller than max payload size %d",
			cfg.ReceiveBufferSize, cfg.MaxPayloadSize))
	}

	if cfg.EventQueueSize <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("event queue size must be positive, not %d", cfg.EventQueueSize))
	}
	if cfg.MaxUnestablishedConnections <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("max unestablished connections must be positive, not %d",
			cfg.MaxUnestablishedConnections))
	}

	if cfg.PollTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("poll timeout must be positive, not %v", cfg.PollTimeout))
	}

	if cfg.SocketReadBuffer < 0 || cfg.SocketWriteBuffer < 0 {
		errs = multierror.Append(errs, fmt.Errorf("socket buffer sizes must not be negative"))
	}

	return
}
