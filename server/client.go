package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/teranos/snpm/errors"
	"github.com/teranos/snpm/logger"
	"github.com/teranos/snpm/publish"
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
	maxMessageSize = 64 * 1024
)

// Client is one WebSocket publish session. ctx is cancelled when the
// session ends and is the parent of its publish.
type Client struct {
	server     *Server
	conn       *websocket.Conn
	send       chan outbound
	id         string
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once
	publishing atomic.Bool
}

// HandleWebSocket upgrades the connection and serves a publish session
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.getState() != ServerStateRunning {
		writeText(w, http.StatusServiceUnavailable, ErrDraining.Error())
		return
	}

	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		s.logger.Warnw("WebSocket upgrade failed", logger.FieldError, err)
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	client := &Client{
		server: s,
		conn:   conn,
		send:   make(chan outbound, MaxClientMessageQueueSize),
		id:     uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// registerClient counts both pumps in s.wg
	if err := s.registerClient(client); err != nil {
		code := websocket.CloseTryAgainLater
		if errors.Is(err, ErrDraining) {
			code = websocket.CloseGoingAway
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, err.Error()),
			time.Now().Add(writeWait))
		client.close()
		return
	}

	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
	go func() {
		defer s.wg.Done()
		client.readPump()
	}()
}

// close ends the session: its publish is cancelled and both pumps exit
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		c.conn.Close()
	})
}

// enqueue hands a frame to writePump. Frames for a closed session are dropped.
func (c *Client) enqueue(msg outbound) {
	select {
	case c.send <- msg:
	case <-c.done:
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.server.unregisterClient(c)
		c.close()
	}()

	// Configure connection limits and timeouts per Gorilla best practices
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.server.logger.Warnw("JSON unmarshal error",
				logger.FieldError, err.Error(),
				logger.FieldClientID, shortID(c.id),
			)
			continue
		}
		c.routeMessage(&env)
	}
}

// handleReadError logs unexpected WebSocket read errors.
// Expected closure codes (normal, going away, abnormal, no status) are ignored.
func (c *Client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		c.server.logger.Warnw("WebSocket read error",
			logger.FieldClientID, shortID(c.id),
			logger.FieldError, err,
		)
	}
}

// routeMessage dispatches incoming session events
func (c *Client) routeMessage(env *Envelope) {
	switch env.Event {
	case EventPublish:
		c.handlePublish(env.Data)
	case EventPing:
		// Keepalive only
	default:
		c.server.logger.Debugw("Unknown session event",
			"event", env.Event,
			logger.FieldClientID, shortID(c.id),
		)
	}
}

// handlePublish starts a publish unless one is already running on this session
func (c *Client) handlePublish(data json.RawMessage) {
	var req publish.Request
	if err := json.Unmarshal(data, &req); err != nil {
		c.enqueue(outbound{event: EventError, text: messageBadBody})
		return
	}

	if !c.publishing.CompareAndSwap(false, true) {
		c.enqueue(outbound{event: EventError, text: ErrBusy.Error()})
		return
	}
	if err := c.server.admitPublish(); err != nil {
		c.publishing.Store(false)
		c.enqueue(outbound{event: EventError, text: err.Error()})
		return
	}

	c.server.logger.Infow("Session publish requested",
		logger.FieldClientID, shortID(c.id),
		logger.FieldURL, req.URL,
		logger.FieldVersion, req.Version,
	)

	c.server.wg.Add(1)
	go func() {
		defer c.server.wg.Done()
		defer c.publishing.Store(false)
		c.server.runPublish(c.ctx, req, &sessionReporter{client: c})
	}()
}

// writePump writes queued frames and keepalive pings to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(newEnvelope(msg)); err != nil {
				c.server.logger.Debugw("Session write error",
					logger.FieldError, err.Error(),
					logger.FieldClientID, shortID(c.id),
				)
				return
			}
			if msg.close {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				// Give the peer a moment to answer the close before tearing down
				c.awaitPeerClose()
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

// awaitPeerClose waits briefly for readPump to observe the peer's close reply
func (c *Client) awaitPeerClose() {
	select {
	case <-c.done:
	case <-time.After(writeWait):
	}
}

func newEnvelope(msg outbound) Envelope {
	data, _ := json.Marshal(msg.text)
	return Envelope{Event: msg.event, Data: data}
}

// sessionReporter streams a run's progress to its session. The terminal
// event is followed by a close frame.
type sessionReporter struct {
	client *Client
}

func (r *sessionReporter) ReportProgress(stage publish.Stage, message string) {
	r.client.enqueue(outbound{event: EventMessage, text: message})
}

func (r *sessionReporter) ReportResult(outcome publish.Outcome) {
	event := EventMessage
	if !outcome.Succeeded() {
		event = EventError
	}
	r.client.enqueue(outbound{event: event, text: outcome.Message, close: true})
}
