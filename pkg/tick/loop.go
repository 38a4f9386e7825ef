// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tick

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrStopped is returned by Loop.Do after the Loop was stopped.
var ErrStopped = errors.New("loop was stopped")

// Loop runs a Driver's ticks and a Cron's jobs on its own goroutine.
type Loop struct {
	driver   *Driver
	cron     *Cron
	interval time.Duration

	hooks []func(now time.Time, stats Stats)
	tasks chan func()

	stopSyn chan struct{}
	stopAck chan struct{}
}

// NewLoop for a Driver, ticking every interval. The Loop must be started by Start.
func NewLoop(driver *Driver, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = time.Millisecond
	}

	return &Loop{
		driver:   driver,
		cron:     NewCron(),
		interval: interval,
		tasks:    make(chan func()),
		stopSyn:  make(chan struct{}),
		stopAck:  make(chan struct{}),
	}
}

// Driver of this Loop.
func (l *Loop) Driver() *Driver {
	return l.driver
}

// Cron whose jobs are fired after each tick.
func (l *Loop) Cron() *Cron {
	return l.cron
}

// OnTick registers a hook called after each tick and its Cron jobs. Hooks must be registered before Start.
func (l *Loop) OnTick(hook func(now time.Time, stats Stats)) {
	l.hooks = append(l.hooks, hook)
}

// Start the Loop's goroutine.
func (l *Loop) Start() {
	log.WithField("interval", l.interval).Info("Starting tick loop")
	go l.loop()
}

func (l *Loop) loop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopSyn:
			close(l.stopAck)
			return

		case task := <-l.tasks:
			task()

		case now := <-ticker.C:
			l.tick(now)
		}
	}
}

func (l *Loop) tick(now time.Time) {
	stats := l.driver.Tick(now)
	stats.Jobs = l.cron.Fire(now)

	for _, hook := range l.hooks {
		hook(now, stats)
	}
}

// Do executes a task on the Loop's goroutine between two ticks and waits for its completion. Do must not be called
// from within the Loop, e.g., by a hook or a Cron job.
func (l *Loop) Do(task func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		task()
	}

	select {
	case <-l.stopSyn:
		return ErrStopped

	case l.tasks <- wrapped:
		<-done
		return nil
	}
}

// Stop this Loop. This method is only allowed to be called once.
func (l *Loop) Stop() {
	close(l.stopSyn)
	<-l.stopAck

	log.Info("Stopped tick loop")
}
