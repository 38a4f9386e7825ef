// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/dtn7/stokes-go/pkg/transport"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Core      coreConf
	Logging   logConf
	Socket    []socketConf
	Discovery discoveryConf
	Inspect   inspectConf
	Journal   journalConf
}

// coreConf describes the Core-configuration block.
type coreConf struct {
	Name         string
	TickInterval string `toml:"tick-interval"`
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// socketConf describes a Socket-configuration block.
type socketConf struct {
	Address      string
	PollInterval string `toml:"poll-interval"`
	Echo         bool

	IdleTimeout       string `toml:"idle-timeout"`
	HeartbeatInterval string `toml:"heartbeat-interval"`
	MaxUnestablished  int    `toml:"max-unestablished"`
	MaxPayloadSize    int    `toml:"max-payload-size"`
}

// discoveryConf describes the Discovery-configuration block.
type discoveryConf struct {
	IPv4     bool
	IPv6     bool
	Interval uint
}

// inspectConf describes the Inspect-configuration block.
type inspectConf struct {
	Listen          string
	PublishInterval string `toml:"publish-interval"`
}

// journalConf describes the Journal-configuration block.
type journalConf struct {
	Dir       string
	Retention string
}

// socketSetup is a validated socketConf.
type socketSetup struct {
	address      string
	pollInterval time.Duration
	echo         bool
	cfg          transport.Config
}

// setup is a validated tomlConfig.
type setup struct {
	name         string
	tickInterval time.Duration
	logging      logConf
	sockets      []socketSetup

	discovery discoveryConf

	inspectListen   string
	inspectInterval time.Duration

	journalDir       string
	journalRetention time.Duration
}

// parseDuration of an optional field. The fallback is returned for an empty or invalid value.
func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", field, err)
	} else if d < 0 {
		return fallback, fmt.Errorf("%s: negative duration %v", field, d)
	}
	return d, nil
}

// parseSocket validates a socketConf.
func parseSocket(i int, conf socketConf) (s socketSetup, errs error) {
	prefix := fmt.Sprintf("socket[%d]", i)

	s.address = conf.Address
	s.echo = conf.Echo
	s.cfg = transport.DefaultConfig()

	if conf.Address == "" {
		errs = multierror.Append(errs, fmt.Errorf("%s.address is empty", prefix))
	}

	var err error
	if s.pollInterval, err = parseDuration(prefix+".poll-interval", conf.PollInterval, 0); err != nil {
		errs = multierror.Append(errs, err)
	}
	if s.cfg.IdleConnectionTimeout, err = parseDuration(
		prefix+".idle-timeout", conf.IdleTimeout, s.cfg.IdleConnectionTimeout); err != nil {
		errs = multierror.Append(errs, err)
	}
	if s.cfg.HeartbeatInterval, err = parseDuration(
		prefix+".heartbeat-interval", conf.HeartbeatInterval, s.cfg.HeartbeatInterval); err != nil {
		errs = multierror.Append(errs, err)
	}

	if conf.MaxUnestablished != 0 {
		s.cfg.MaxUnestablishedConnections = conf.MaxUnestablished
	}
	if conf.MaxPayloadSize != 0 {
		s.cfg.ReceiveBufferSize += conf.MaxPayloadSize - s.cfg.MaxPayloadSize
		s.cfg.MaxPayloadSize = conf.MaxPayloadSize
	}

	if cfgErr := s.cfg.CheckValid(); cfgErr != nil {
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", prefix, cfgErr))
	}
	return
}

// parseSetup validates a tomlConfig, reporting all errors at once.
func parseSetup(conf tomlConfig) (s setup, errs error) {
	var err error

	s.name = conf.Core.Name
	if s.name == "" {
		if s.name, err = os.Hostname(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("core.name is empty and no hostname is available: %w", err))
		}
	}

	if s.tickInterval, err = parseDuration("core.tick-interval", conf.Core.TickInterval, time.Millisecond); err != nil {
		errs = multierror.Append(errs, err)
	} else if s.tickInterval == 0 {
		errs = multierror.Append(errs, fmt.Errorf("core.tick-interval must be positive"))
	}

	s.logging = conf.Logging

	if len(conf.Socket) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("no socket is configured"))
	}
	for i, sockConf := range conf.Socket {
		sock, sockErr := parseSocket(i, sockConf)
		if sockErr != nil {
			errs = multierror.Append(errs, sockErr)
		}
		s.sockets = append(s.sockets, sock)
	}

	s.discovery = conf.Discovery
	if s.discovery.Interval == 0 {
		s.discovery.Interval = 10
	}

	s.inspectListen = conf.Inspect.Listen
	if s.inspectInterval, err = parseDuration(
		"inspect.publish-interval", conf.Inspect.PublishInterval, 500*time.Millisecond); err != nil {
		errs = multierror.Append(errs, err)
	} else if s.inspectInterval == 0 {
		errs = multierror.Append(errs, fmt.Errorf("inspect.publish-interval must be positive"))
	}

	s.journalDir = conf.Journal.Dir
	if s.journalRetention, err = parseDuration("journal.retention", conf.Journal.Retention, 24*time.Hour); err != nil {
		errs = multierror.Append(errs, err)
	}

	return
}

// parseConfig reads and validates a TOML configuration file.
func parseConfig(filename string) (s setup, err error) {
	var conf tomlConfig
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	return parseSetup(conf)
}

// applyLogging configures logrus' standard logger.
func applyLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.WithField("format", conf.Format).Warn("Unknown logging format")
	}
}
