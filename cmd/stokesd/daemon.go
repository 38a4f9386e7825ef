// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"

	"github.com/dtn7/stokes-go/pkg/discovery"
	"github.com/dtn7/stokes-go/pkg/inspect"
	"github.com/dtn7/stokes-go/pkg/journal"
	"github.com/dtn7/stokes-go/pkg/socket"
	"github.com/dtn7/stokes-go/pkg/tick"
	"github.com/dtn7/stokes-go/pkg/transport"
)

// daemon wires a Registry and its tick Loop together with the optional services.
type daemon struct {
	setup setup

	registry *socket.Registry
	loop     *tick.Loop
	sockets  []socket.SocketID
	echo     map[socket.SocketID]bool

	journal    *journal.Store
	inspect    *inspect.Server
	httpServer *http.Server
	discovery  *discovery.Manager
	watcher    *fsnotify.Watcher

	running bool
	stopSyn chan struct{}
}

// newDaemon binds all configured sockets through the binder and starts the tick Loop.
func newDaemon(s setup, binder transport.Binder) (d *daemon, err error) {
	d = &daemon{
		setup:    s,
		registry: socket.NewRegistry(binder),
		echo:     make(map[socket.SocketID]bool),
		stopSyn:  make(chan struct{}),
	}
	d.loop = tick.NewLoop(tick.NewDriver(d.registry), s.tickInterval)

	defer func() {
		if err != nil {
			_ = d.close()
			d = nil
		}
	}()

	d.registry.AddObserver(socket.ObserverFuncs{OnConnectionRemoved: d.handleRemoved})

	if s.journalDir != "" {
		if err = d.startJournal(); err != nil {
			return
		}
	}

	if s.inspectListen != "" {
		d.startInspect()
	}

	var announcements []discovery.Announcement
	for _, sockSetup := range s.sockets {
		id, bindErr := d.registry.Bind(sockSetup.address, sockSetup.pollInterval, sockSetup.cfg)
		if bindErr != nil {
			err = bindErr
			return
		}

		d.sockets = append(d.sockets, id)
		d.echo[id] = sockSetup.echo

		local, _ := d.registry.LocalAddr(id)
		announcements = append(announcements, discovery.Announcement{Name: s.name, Port: uint(local.Port())})
	}

	d.loop.OnTick(d.handleInbound)

	if s.discovery.IPv4 || s.discovery.IPv6 {
		d.discovery, err = discovery.NewManager(
			s.name, announcements, time.Duration(s.discovery.Interval)*time.Second,
			s.discovery.IPv4, s.discovery.IPv6)
		if err != nil {
			return
		}

		go d.handleDiscoveries()
	}

	d.loop.Start()
	d.running = true
	return
}

func (d *daemon) startJournal() (err error) {
	if d.journal, err = journal.NewStore(d.setup.journalDir); err != nil {
		return
	}
	d.registry.AddObserver(d.journal)

	if d.setup.journalRetention > 0 {
		err = d.loop.Cron().Register("journal-prune", func(now time.Time) {
			if _, pruneErr := d.journal.DeleteBefore(now.Add(-d.setup.journalRetention)); pruneErr != nil {
				log.WithError(pruneErr).Warn("Pruning the journal errored")
			}
		}, time.Minute)
	}
	return
}

func (d *daemon) startInspect() {
	router := mux.NewRouter()
	d.inspect = inspect.NewServer(router)
	d.registry.AddObserver(d.inspect)

	d.httpServer = &http.Server{
		Addr:    d.setup.inspectListen,
		Handler: router,
	}

	go func() {
		if err := d.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).WithField("listen", d.setup.inspectListen).Error("Inspect server errored")
		}
	}()

	_ = d.loop.Cron().Register("inspect-publish", func(now time.Time) {
		d.inspect.Publish(d.registry.Snapshot(now))
	}, d.setup.inspectInterval)
}

// handleInbound drains all Connections after each tick. Echo sockets send each Datagram back to its peer.
func (d *daemon) handleInbound(_ time.Time, _ tick.Stats) {
	for _, id := range d.sockets {
		for _, conn := range d.registry.Connections(id) {
			for _, dgram := range conn.Drain() {
				log.WithFields(log.Fields{
					"peer":     conn.Peer(),
					"datagram": dgram,
				}).Debug("Received datagram")

				if !d.echo[id] {
					continue
				}

				reply := dgram
				reply.Addr = conn.Addr()
				if err := d.registry.Enqueue(id, reply); err != nil {
					log.WithError(err).WithField("peer", conn.Peer()).Warn("Enqueuing echo errored")
				}
			}
		}
	}
}

func (d *daemon) handleRemoved(conn *socket.Connection) {
	log.WithFields(log.Fields{
		"peer":   conn.Peer(),
		"unread": conn.Len(),
	}).Debug("Connection was removed")

	if d.echo[conn.Peer().Socket] {
		for _, dgram := range conn.Drain() {
			reply := dgram
			reply.Addr = conn.Addr()
			if err := d.registry.Enqueue(conn.Peer().Socket, reply); err != nil {
				log.WithError(err).WithField("peer", conn.Peer()).Warn("Enqueuing echo errored")
			}
		}
	}
}

// greet a discovered socket from the first local socket of the same address family.
func (d *daemon) greet(disc discovery.Discovered) {
	for _, id := range d.sockets {
		local, _ := d.registry.LocalAddr(id)
		if local.Addr().Is4() != disc.Addr.Addr().Is4() {
			continue
		}

		if _, known := d.registry.Find(id, disc.Addr); known {
			return
		}

		log.WithFields(log.Fields{
			"socket":     id,
			"discovered": disc,
		}).Info("Greeting discovered socket")

		hello := transport.NewReliableUnordered(disc.Addr, []byte(fmt.Sprintf("hello from %s", d.setup.name)))
		_ = d.registry.Enqueue(id, hello)
		return
	}
}

func (d *daemon) handleDiscoveries() {
	for {
		select {
		case <-d.stopSyn:
			return

		case disc := <-d.discovery.Channel():
			if err := d.loop.Do(func() { d.greet(disc) }); err != nil {
				return
			}
		}
	}
}

// watchConfig reapplies the logging configuration whenever the file changes.
func (d *daemon) watchConfig(filename string) (err error) {
	if d.watcher, err = fsnotify.NewWatcher(); err != nil {
		return
	}
	if err = d.watcher.Add(filename); err != nil {
		return
	}

	go func() {
		for {
			select {
			case <-d.stopSyn:
				return

			case e, ok := <-d.watcher.Events:
				if !ok {
					return
				}
				if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				if s, err := parseConfig(filename); err != nil {
					log.WithError(err).WithField("file", filename).Warn("Reloading configuration errored")
				} else {
					log.WithField("file", filename).Info("Reloading logging configuration")
					applyLogging(s.logging)
				}

			case err, ok := <-d.watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("Configuration watcher errored")
			}
		}
	}()
	return
}

// close everything in the reverse order of its creation.
func (d *daemon) close() (errs error) {
	close(d.stopSyn)

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if d.discovery != nil {
		d.discovery.Close()
	}

	if d.running {
		d.loop.Stop()
	}

	if err := d.registry.CloseAll(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if d.httpServer != nil {
		d.inspect.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.httpServer.Shutdown(ctx); err != nil {
			errs = multierror.Append(errs, err)
		}
		cancel()
	}

	if d.journal != nil {
		if err := d.journal.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return
}
