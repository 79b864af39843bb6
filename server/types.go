package server

import (
	"encoding/json"
	"time"
)

const (
	// MaxClients is the maximum number of concurrent WebSocket sessions
	MaxClients = 100
	// MaxClientMessageQueueSize is the size of per-session outbound queues
	MaxClientMessageQueueSize = 64
	// ShutdownTimeout is how long Stop waits for sessions and running publishes.
	// A publish mid-build is cancelled, so this mostly covers tool teardown.
	ShutdownTimeout = 30 * time.Second
	// maxRequestBody bounds POST /publish bodies
	maxRequestBody = 64 * 1024
)

// ServerState represents the server lifecycle state
type ServerState int

const (
	ServerStateRunning  ServerState = iota // Normal operation
	ServerStateDraining                    // Graceful shutdown in progress
	ServerStateStopped                     // Shutdown complete
)

// Session events
const (
	EventPublish = "publish" // client → server, data: publish.Request
	EventMessage = "message" // server → client, data: progress or final success text
	EventError   = "error"   // server → client, data: failure text
	EventPing    = "ping"    // client → server keepalive, ignored
)

// Envelope is the JSON frame exchanged on a session
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outbound is a queued server → client frame. A frame with close set
// ends the session after data is written.
type outbound struct {
	event string
	text  string
	close bool
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	Sessions   int    `json:"sessions"`
	ActiveRuns int64  `json:"active_runs"`
}
