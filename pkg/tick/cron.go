// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tick

import (
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type cronjob struct {
	task      func(now time.Time)
	interval  time.Duration
	nextEvent time.Time
}

// Cron manages different jobs which require interval based execution. Unlike a time.Ticker, a Cron does not run on
// its own; its jobs are executed synchronously by Fire.
type Cron struct {
	jobs  map[string]*cronjob
	mutex sync.Mutex
}

// NewCron creates an empty Cron.
func NewCron() *Cron {
	return &Cron{jobs: make(map[string]*cronjob)}
}

// Register a new task by its name, function and interval. The task is first executed by the first Fire after one
// interval has passed, counting from its first Fire.
func (cron *Cron) Register(name string, task func(now time.Time), interval time.Duration) error {
	cron.mutex.Lock()
	defer cron.mutex.Unlock()

	if _, exists := cron.jobs[name]; exists {
		return fmt.Errorf("a job named %s is already registered", name)
	}

	if interval <= 0 {
		return fmt.Errorf("given interval %v is not positive", interval)
	}

	cron.jobs[name] = &cronjob{
		task:     task,
		interval: interval,
	}
	return nil
}

// Unregister a task by its name.
func (cron *Cron) Unregister(name string) {
	cron.mutex.Lock()
	defer cron.mutex.Unlock()

	delete(cron.jobs, name)
}

// Fire executes all due jobs, ordered by their name, and returns their amount.
func (cron *Cron) Fire(now time.Time) int {
	type due struct {
		name string
		job  *cronjob
	}
	var dues []due

	cron.mutex.Lock()
	for name, job := range cron.jobs {
		if job.nextEvent.IsZero() {
			job.nextEvent = now.Add(job.interval)
			continue
		}
		if job.nextEvent.After(now) {
			continue
		}

		for !job.nextEvent.After(now) {
			job.nextEvent = job.nextEvent.Add(job.interval)
		}
		dues = append(dues, due{name, job})
	}
	cron.mutex.Unlock()

	sort.Slice(dues, func(i, j int) bool { return dues[i].name < dues[j].name })

	for _, d := range dues {
		d.job.task(now)

		log.WithFields(log.Fields{
			"job":        d.name,
			"interval":   d.job.interval,
			"next_event": d.job.nextEvent,
		}).Debug("Cron executed job")
	}

	return len(dues)
}
