package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oddsmith/arbiter/job"
	"github.com/oddsmith/arbiter/version"
)

// WebSocket timeout constants following Gorilla best practices
// See: https://github.com/gorilla/websocket/blob/master/examples/chat/client.go
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// client is one websocket subscriber to the job update feed. The hub
// alone sends on and closes the send channel; any other goroutine that
// raced a rejection or a fast disconnect would panic on the closed
// channel.
type client struct {
	server    *Server
	conn      *websocket.Conn
	send      chan *job.Record
	backlog   []*job.Record
	id        string
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return s.originAllowed(origin)
		},
	}
}

// handleJobSocket upgrades /ws/jobs and streams job records as they
// transition. Each current live record is sent on connect so a fresh
// client renders without waiting for the next change.
func (s *Server) handleJobSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{
		server: s,
		conn:   conn,
		send:   make(chan *job.Record, 64),
		id:     fmt.Sprintf("%s_%d", r.RemoteAddr, time.Now().UnixNano()),
	}

	// Write the hello before the pumps start to avoid concurrent writes.
	versionInfo := version.Get()
	hello := map[string]interface{}{
		"type":    "hello",
		"version": versionInfo.Version,
		"commit":  versionInfo.Short(),
	}
	if err := conn.WriteJSON(hello); err != nil {
		s.logger.Debugw("Failed to send hello", "client_id", c.id, "error", err)
	}

	// Gather the current live records before handing the client to the
	// hub; the hub queues them on registration so nothing outside the
	// hub ever touches the send channel.
	c.backlog = s.activeRecords()
	s.register <- c

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		c.readPump()
	}()
	go func() {
		defer s.wg.Done()
		c.writePump()
	}()
}

// activeRecords collects the current live record of every kind for the
// connect-time catch-up.
func (s *Server) activeRecords() []*job.Record {
	var recs []*job.Record
	for _, kind := range job.Kinds() {
		rec, err := s.controller.Active(kind)
		if err != nil || rec == nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs
}

// readPump drains the connection so pings and close frames are
// processed. Inbound payloads are ignored, the feed is one-way.
func (c *client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.ctx.Done():
			// Hub is gone; drop the connection but leave the send
			// channel alone, the hub is its only closer.
			c.conn.Close()
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.server.logger.Warnw("WebSocket read error", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

// writePump writes job updates and pings to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.server.ctx.Done():
			return
		case rec, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			msg := map[string]interface{}{
				"type": "job_update",
				"job":  rec,
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.logger.Debugw("WebSocket write failed", "client_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
