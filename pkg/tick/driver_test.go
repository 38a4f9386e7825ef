// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tick

import (
	"bytes"
	"net/netip"
	"testing"
	"time"

	"github.com/dtn7/stokes-go/pkg/socket"
	"github.com/dtn7/stokes-go/pkg/transport"
	"github.com/dtn7/stokes-go/pkg/transport/memory"
)

func newMemoryDriver(t *testing.T) (d *Driver, a, b socket.SocketID) {
	network := memory.NewNetwork()
	r := socket.NewRegistry(network.Binder())

	var err error
	if a, err = r.Bind("10.0.0.1:9000", 0, transport.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if b, err = r.Bind("10.0.0.2:5000", 0, transport.DefaultConfig()); err != nil {
		t.Fatal(err)
	}

	d = NewDriver(r)
	return
}

func TestDriverNextTickSend(t *testing.T) {
	d, a, b := newMemoryDriver(t)
	r := d.Registry()

	addrA := netip.MustParseAddrPort("10.0.0.1:9000")
	addrB := netip.MustParseAddrPort("10.0.0.2:5000")

	// b answers each new peer from within demultiplexing.
	_ = r.AddBuilder(b, socket.BuilderFunc(func(peer netip.AddrPort, _ *socket.Connection) {
		_ = r.Enqueue(b, transport.NewReliableUnordered(peer, []byte("reply")))
	}))

	now := time.Unix(1000, 0)
	step := func() Stats {
		now = now.Add(time.Millisecond)
		return d.Tick(now)
	}

	_ = r.Enqueue(a, transport.NewReliableUnordered(addrB, []byte("hi")))

	if stats := step(); stats.Polled != 2 || stats.Sent != 1 || stats.Events != 0 {
		t.Fatalf("first tick: %+v", stats)
	}

	if stats := step(); stats.Created != 1 || stats.Sent != 0 {
		t.Fatalf("second tick: %+v", stats)
	}
	if conn, ok := r.Find(b, addrA); !ok {
		t.Fatal("b does not know a")
	} else if conn.State() != socket.Pending {
		t.Fatalf("a is %v for b", conn.State())
	} else if ds := conn.Drain(); len(ds) != 1 || !bytes.Equal(ds[0].Payload, []byte("hi")) {
		t.Fatalf("b received %v", ds)
	}
	if n := r.QueueLen(b); n != 1 {
		t.Fatalf("reply was not held back, queue holds %d", n)
	}

	if stats := step(); stats.Sent != 1 {
		t.Fatalf("third tick: %+v", stats)
	}

	step()
	if conn, ok := r.Find(a, addrB); !ok {
		t.Fatal("a does not know b")
	} else if conn.State() != socket.Connected {
		t.Fatalf("b is %v for a", conn.State())
	} else if ds := conn.Drain(); len(ds) != 1 || !bytes.Equal(ds[0].Payload, []byte("reply")) {
		t.Fatalf("a received %v", ds)
	}
	if conn, _ := r.Find(b, addrA); conn.State() != socket.Connected {
		t.Fatalf("a is %v for b", conn.State())
	}
}

func TestDriverFlushIsolation(t *testing.T) {
	d, a, _ := newMemoryDriver(t)
	r := d.Registry()
	addrB := netip.MustParseAddrPort("10.0.0.2:5000")

	_ = r.Enqueue(a, transport.NewUnreliable(addrB, []byte("m1")))
	_ = r.Enqueue(a, transport.NewUnreliable(addrB, make([]byte, 2*transport.DefaultConfig().MaxPayloadSize)))
	_ = r.Enqueue(a, transport.NewUnreliable(addrB, []byte("m3")))

	stats := d.Tick(time.Unix(1000, 0))
	if stats.Sent != 2 || stats.Failed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if n := r.QueueLen(a); n != 0 {
		t.Fatalf("queue holds %d", n)
	}

	d.Tick(time.Unix(1001, 0))
	conn, ok := r.Find(d.Registry().Sockets()[1], netip.MustParseAddrPort("10.0.0.1:9000"))
	if !ok {
		t.Fatal("b does not know a")
	}
	if ds := conn.Drain(); len(ds) != 2 || string(ds[0].Payload) != "m1" || string(ds[1].Payload) != "m3" {
		t.Fatalf("b received %v", ds)
	}
}

func TestDriverPollRateLimit(t *testing.T) {
	network := memory.NewNetwork()
	r := socket.NewRegistry(network.Binder())
	fast, _ := r.Bind("10.0.0.1:9000", 0, transport.DefaultConfig())
	_, _ = r.Bind("10.0.0.1:9001", time.Second, transport.DefaultConfig())
	d := NewDriver(r)

	now := time.Unix(1000, 0)
	if polled := d.Poll(now); polled != 2 {
		t.Fatalf("polled %d sockets", polled)
	}
	if polled := d.Poll(now.Add(time.Millisecond)); polled != 1 {
		t.Fatalf("polled %d sockets", polled)
	}
	if polled := d.Poll(now.Add(2 * time.Second)); polled != 2 {
		t.Fatalf("polled %d sockets", polled)
	}

	if !r.ShouldPoll(fast, now.Add(3*time.Second)) {
		t.Fatal("fast socket is not due")
	}
}
