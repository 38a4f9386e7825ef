// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package inspect

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/dtn7/stokes-go/pkg/socket"
)

// Server serves Snapshots and Events. Its Observer methods must be registered at the Registry, while Publish must
// be called with fresh Snapshots.
type Server struct {
	router   *mux.Router
	upgrader websocket.Upgrader

	// now is replaceable for testing.
	now func() time.Time

	snapshotMutex sync.RWMutex
	snapshot      socket.Snapshot

	clientsMutex sync.Mutex
	clients      map[*wsClient]struct{}
}

// NewServer registers its handlers at the router.
func NewServer(router *mux.Router) (s *Server) {
	s = &Server{
		router:  router,
		now:     time.Now,
		clients: make(map[*wsClient]struct{}),
	}

	s.router.HandleFunc("/sockets", s.handleSockets).Methods(http.MethodGet)
	s.router.HandleFunc("/sockets/{id:[0-9]+}/connections", s.handleConnections).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebSocket)

	return
}

// Publish a new Snapshot to be served.
func (s *Server) Publish(snapshot socket.Snapshot) {
	s.snapshotMutex.Lock()
	defer s.snapshotMutex.Unlock()

	s.snapshot = snapshot
}

func (s *Server) currentSnapshot() socket.Snapshot {
	s.snapshotMutex.RLock()
	defer s.snapshotMutex.RUnlock()

	return s.snapshot
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Inspect server failed to write response")
	}
}

func (s *Server) handleSockets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.currentSnapshot())
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sock, ok := s.currentSnapshot().Socket(socket.SocketID(id))
	if !ok {
		http.Error(w, "unknown socket", http.StatusNotFound)
		return
	}

	writeJSON(w, sock.Connections)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, connErr := s.upgrader.Upgrade(w, r, nil)
	if connErr != nil {
		log.WithError(connErr).Warn("Upgrading HTTP request to WebSocket errored")
		return
	}

	client := newWsClient(conn, s)
	s.register(client)

	client.start()
}

func (s *Server) register(client *wsClient) {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()

	s.clients[client] = struct{}{}
	log.WithField("inspect client", client.conn.RemoteAddr().String()).Info("Inspect server registered client")
}

func (s *Server) unregister(client *wsClient) {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()

	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.sender)
	}
}

// Clients is the amount of connected WebSocket clients.
func (s *Server) Clients() int {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()

	return len(s.clients)
}

func (s *Server) broadcast(e Event) {
	e.At = s.now()

	s.clientsMutex.Lock()
	var lagging []*wsClient
	for client := range s.clients {
		if !client.offer(e) {
			lagging = append(lagging, client)
		}
	}
	s.clientsMutex.Unlock()

	for _, client := range lagging {
		log.WithField("inspect client", client.conn.RemoteAddr().String()).Warn("Dropping lagging inspect client")
		client.shutdown()
	}
}

// Close all WebSocket connections.
func (s *Server) Close() {
	s.clientsMutex.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.clientsMutex.Unlock()

	for _, client := range clients {
		client.shutdown()
	}
}
