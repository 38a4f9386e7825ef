// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package inspect

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"
)

// clientBuffer is the amount of Events a slow client might lag behind before being dropped.
const clientBuffer = 64

type wsClient struct {
	conn   *websocket.Conn
	server *Server
	sender chan Event

	shutdownOnce sync.Once
}

func newWsClient(conn *websocket.Conn, server *Server) *wsClient {
	return &wsClient{
		conn:   conn,
		server: server,
		sender: make(chan Event, clientBuffer),
	}
}

func (client *wsClient) start() {
	go client.handleSender()
	client.handleConn()
}

func (client *wsClient) shutdown() {
	client.shutdownOnce.Do(func() {
		log.WithField("inspect client", client.conn.RemoteAddr().String()).Debug("Reached shutdown")

		client.server.unregister(client)
		_ = client.conn.Close()
	})
}

// offer an Event without blocking. False is returned if the client's buffer is full.
func (client *wsClient) offer(e Event) bool {
	select {
	case client.sender <- e:
		return true
	default:
		return false
	}
}

func (client *wsClient) handleSender() {
	defer client.shutdown()

	var logger = log.WithField("inspect client", client.conn.RemoteAddr().String())

	for e := range client.sender {
		_ = client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := client.conn.WriteJSON(e); err != nil {
			logger.WithError(err).Debug("Sending event errored")
			return
		}
	}
}

// handleConn reads until the client closes its connection. Incoming messages are ignored.
func (client *wsClient) handleConn() {
	defer client.shutdown()

	for {
		if _, _, err := client.conn.NextReader(); err != nil {
			log.WithError(err).WithField("inspect client", client.conn.RemoteAddr().String()).
				Debug("Closing client after read error")
			return
		}
	}
}
