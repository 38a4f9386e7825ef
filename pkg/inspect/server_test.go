// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package inspect

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/dtn7/stokes-go/pkg/socket"
	"github.com/dtn7/stokes-go/pkg/transport"
	"github.com/dtn7/stokes-go/pkg/transport/memory"
)

func setupServer(t *testing.T) (s *Server, httpServer *httptest.Server, r *socket.Registry, id socket.SocketID) {
	router := mux.NewRouter()
	s = NewServer(router)
	httpServer = httptest.NewServer(router)

	r = socket.NewRegistry(memory.NewNetwork().Binder())
	r.AddObserver(s)

	var err error
	if id, err = r.Bind("10.0.0.1:9000", time.Second, transport.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	return
}

func TestServerRest(t *testing.T) {
	s, httpServer, r, id := setupServer(t)
	defer httpServer.Close()

	peer := netip.MustParseAddrPort("10.0.0.2:5000")
	_, _ = r.Apply(id, socket.NewBatch([]transport.Event{
		transport.NewPacketEvent(transport.NewUnreliable(peer, []byte("hi"))),
	}))
	s.Publish(r.Snapshot(time.Unix(1000, 0)))

	resp, err := http.Get(httpServer.URL + "/sockets")
	if err != nil {
		t.Fatal(err)
	}
	var snap socket.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if len(snap.Sockets) != 1 || snap.Sockets[0].LocalAddr != "10.0.0.1:9000" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	resp, err = http.Get(httpServer.URL + "/sockets/1/connections")
	if err != nil {
		t.Fatal(err)
	}
	var conns []socket.ConnectionSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&conns); err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if len(conns) != 1 || conns[0].Addr != "10.0.0.2:5000" || conns[0].State != "pending" || conns[0].Inbound != 1 {
		t.Fatalf("unexpected connections %+v", conns)
	}

	for path, code := range map[string]int{
		"/sockets/23/connections":  http.StatusNotFound,
		"/sockets/foo/connections": http.StatusNotFound,
	} {
		if resp, err := http.Get(httpServer.URL + path); err != nil {
			t.Fatal(err)
		} else if resp.StatusCode != code {
			t.Fatalf("%s resulted in %d, expected %d", path, resp.StatusCode, code)
		} else {
			_ = resp.Body.Close()
		}
	}
}

func TestServerWebSocket(t *testing.T) {
	s, httpServer, r, id := setupServer(t)
	defer httpServer.Close()

	wsUrl := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
	wsClient, _, err := websocket.DefaultDialer.Dial(wsUrl, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer wsClient.Close()

	for i := 0; s.Clients() != 1; i++ {
		if i == 100 {
			t.Fatal("client was not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	peer := netip.MustParseAddrPort("10.0.0.2:5000")
	_, _ = r.Apply(id, socket.NewBatch([]transport.Event{transport.NewConnect(peer)}))
	_, _ = r.Apply(id, socket.NewBatch([]transport.Event{transport.NewTimeout(peer)}))

	expected := []Event{
		{Kind: "created", Socket: uint64(id), Peer: "10.0.0.2:5000", Connection: 1, To: "connected"},
		{Kind: "removed", Socket: uint64(id), Peer: "10.0.0.2:5000", Connection: 1, To: "disconnected"},
	}

	_ = wsClient.SetReadDeadline(time.Now().Add(5 * time.Second))
	for _, exp := range expected {
		var e Event
		if err := wsClient.ReadJSON(&e); err != nil {
			t.Fatal(err)
		}
		e.At = time.Time{}

		if e != exp {
			t.Fatalf("received %+v, expected %+v", e, exp)
		}
	}

	s.Close()
	for i := 0; s.Clients() != 0; i++ {
		if i == 100 {
			t.Fatal("client was not unregistered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
