// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package udp

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/stokes-go/pkg/transport"
)

// Socket is a transport.Socket on top of a UDP socket.
type Socket struct {
	conn  *net.UDPConn
	local netip.AddrPort
	cfg   transport.Config

	tracker *transport.Tracker
	events  *transport.EventQueue
	buff    []byte

	// lastPoll is the time of the latest Poll, used as the clock for sent datagrams.
	lastPoll time.Time
	closed   bool
}

// Bind a new Socket to the given "host:port" address.
func Bind(address string, cfg transport.Config) (*Socket, error) {
	if err := cfg.CheckValid(); err != nil {
		return nil, &transport.BindError{Address: address, Err: err}
	}
	if cfg.ReceiveBufferSize < cfg.MaxPayloadSize+frameOverhead {
		return nil, &transport.BindError{
			Address: address,
			Err: fmt.Errorf("receive buffer size %d cannot hold a payload of %d bytes and its frame",
				cfg.ReceiveBufferSize, cfg.MaxPayloadSize),
		}
	}

	if _, err := net.ResolveUDPAddr("udp", address); err != nil {
		return nil, &transport.BindError{Address: address, Err: err}
	}

	conn, err := listen(address, cfg)
	if err != nil {
		return nil, &transport.BindError{Address: address, Err: err}
	}

	s := &Socket{
		conn:   conn,
		local:  transport.Normalize(conn.LocalAddr().(*net.UDPAddr).AddrPort()),
		cfg:    cfg,
		events: transport.NewEventQueue(cfg.EventQueueSize),
		buff:   make([]byte, cfg.ReceiveBufferSize),
	}
	s.tracker = transport.NewTracker(cfg, s.events.Push)

	log.WithFields(log.Fields{
		"address": s.local,
	}).Info("Bound UDP socket")

	return s, nil
}

// Binder is a transport.Binder for UDP Sockets.
func Binder(address string, cfg transport.Config) (transport.Socket, error) {
	s, err := Bind(address, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LocalAddr is the address this Socket is bound to.
func (s *Socket) LocalAddr() netip.AddrPort {
	return s.local
}

// now is the clock for outgoing datagrams, following the latest Poll.
func (s *Socket) now() time.Time {
	if s.lastPoll.IsZero() {
		return time.Now()
	}
	return s.lastPoll
}

// Poll reads all datagrams arriving within the poll timeout, sends due heartbeats and expires idle peers.
func (s *Socket) Poll(now time.Time) {
	if s.closed {
		return
	}
	s.lastPoll = now

	if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.PollTimeout)); err != nil {
		log.WithError(err).WithField("socket", s).Warn("Failed to set UDP read deadline")
		return
	}

	// Bound the reads of a single Poll, such that a flooding peer cannot stall it.
	for i := 0; i < s.maxReads(); i++ {
		n, addr, err := s.conn.ReadFromUDPAddrPort(s.buff)
		if err != nil {
			if !errors.Is(err, os.ErrDeadlineExceeded) {
				log.WithError(err).WithField("socket", s).Warn("Reading from UDP socket errored")
			}
			break
		}

		s.receive(transport.Normalize(addr), s.buff[:n], now)
	}

	for _, addr := range s.tracker.HeartbeatsDue(now) {
		if err := s.write(addr, newHeartbeatFrame()); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"socket": s,
				"peer":   addr,
			}).Debug("Sending heartbeat failed")
		}
	}

	s.tracker.Expire(now)
}

// maxReads within a single Poll, such that their Connect and Packet Events fit the initial queue.
func (s *Socket) maxReads() int {
	if n := s.cfg.EventQueueSize / 2; n > 0 {
		return n
	}
	return 1
}

func (s *Socket) receive(addr netip.AddrPort, data []byte, now time.Time) {
	f, err := decodeFrame(data)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"socket": s,
			"peer":   addr,
			"size":   len(data),
		}).Debug("Dropping malformed datagram")
		return
	}

	if !s.tracker.Received(addr, now) {
		return
	}

	log.WithFields(log.Fields{
		"socket": s,
		"peer":   addr,
		"kind":   f.kind,
	}).Trace("Received frame")

	if f.kind != frameData {
		return
	}

	payload := make([]byte, len(f.payload))
	copy(payload, f.payload)

	s.events.Push(transport.NewPacketEvent(transport.Datagram{
		Addr:     addr,
		Payload:  payload,
		Delivery: f.delivery,
		Ordering: f.ordering,
		Stream:   f.stream,
	}))
}

// NextEvent pops the oldest queued Event.
func (s *Socket) NextEvent() (transport.Event, bool) {
	return s.events.Pop()
}

// Send a Datagram as a single UDP datagram.
func (s *Socket) Send(d transport.Datagram) error {
	if s.closed {
		return transport.ErrClosed
	}
	if len(d.Payload) > s.cfg.MaxPayloadSize {
		return fmt.Errorf("%w: %d > %d", transport.ErrPayloadTooLarge, len(d.Payload), s.cfg.MaxPayloadSize)
	}

	return s.write(transport.Normalize(d.Addr), newDataFrame(d))
}

func (s *Socket) write(addr netip.AddrPort, f frame) error {
	data, err := encodeFrame(f)
	if err != nil {
		return err
	}

	if _, err := s.conn.WriteToUDPAddrPort(data, addr); err != nil {
		return err
	}

	s.tracker.Sent(addr, s.now())
	return nil
}

// Close the underlying UDP socket.
func (s *Socket) Close() error {
	if s.closed {
		return transport.ErrClosed
	}
	s.closed = true

	log.WithField("address", s.local).Info("Closing UDP socket")
	return s.conn.Close()
}

func (s *Socket) String() string {
	return fmt.Sprintf("udp://%v", s.local)
}
