// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	log "github.com/sirupsen/logrus"
)

// EventQueue is a FIFO of Events. Its capacity doubles if full, no Event is ever dropped.
type EventQueue struct {
	events []Event
	head   int
	size   int
}

// NewEventQueue with an initial capacity.
func NewEventQueue(capacity int) *EventQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &EventQueue{events: make([]Event, capacity)}
}

func (q *EventQueue) grow() {
	events := make([]Event, 2*len(q.events))
	for i := 0; i < q.size; i++ {
		events[i] = q.events[(q.head+i)%len(q.events)]
	}

	log.WithFields(log.Fields{
		"queued":   q.size,
		"capacity": len(events),
	}).Debug("Event queue is full, growing")

	q.events = events
	q.head = 0
}

// Push an Event to the queue's tail.
func (q *EventQueue) Push(e Event) {
	if q.size == len(q.events) {
		q.grow()
	}

	q.events[(q.head+q.size)%len(q.events)] = e
	q.size++
}

// Pop the Event at the queue's head.
func (q *EventQueue) Pop() (e Event, ok bool) {
	if q.size == 0 {
		return
	}

	e, ok = q.events[q.head], true
	q.events[q.head] = Event{}
	q.head = (q.head + 1) % len(q.events)
	q.size--
	return
}

// Len of the queue.
func (q *EventQueue) Len() int {
	return q.size
}

// Cap is the current capacity before the queue grows.
func (q *EventQueue) Cap() int {
	return len(q.events)
}
