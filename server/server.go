// Package server exposes the publish pipeline over HTTP (POST /publish)
// and over persistent WebSocket sessions (GET /ws) that stream progress.
package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/teranos/snpm/am"
	"github.com/teranos/snpm/logger"
	"github.com/teranos/snpm/publish"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Runner executes one publish. *publish.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, req publish.Request, reporter publish.Reporter) publish.Outcome
}

// Server is the registry server
type Server struct {
	runner  Runner
	logger  *zap.SugaredLogger
	limiter *rate.Limiter

	mu             sync.RWMutex
	clients        map[*Client]bool
	allowedOrigins []string

	configWatcher *am.ConfigWatcher
	timeoutSetter func(seconds int)

	// HTTP server with timeouts
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context    // cancelled on shutdown; parent of every run
	cancel     context.CancelFunc // cancels all goroutines and running publishes
	wg         sync.WaitGroup     // session pumps and running publishes
	activeRuns atomic.Int64
	state      atomic.Int32
}

// New creates a Server running publishes through runner
func New(cfg *am.Config, runner Runner, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = logger.ComponentLogger("server")
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		runner:         runner,
		logger:         log,
		limiter:        newLimiter(cfg.Publish.RatePerMinute, cfg.Publish.Burst),
		clients:        make(map[*Client]bool),
		allowedOrigins: cfg.Server.AllowedOrigins,
		ctx:            ctx,
		cancel:         cancel,
	}
	if p, ok := runner.(*publish.Pipeline); ok {
		s.timeoutSetter = func(seconds int) { p.SetTimeout(secondsToDuration(seconds)) }
	}
	s.state.Store(int32(ServerStateRunning))
	return s
}

// registerClient adds a session and counts its two pumps in s.wg. It is
// refused once Stop has begun draining or when MaxClients are connected.
// The state check and wg.Add share s.mu with Stop's transition to draining.
func (s *Server) registerClient(client *Client) error {
	s.mu.Lock()
	if s.getState() != ServerStateRunning {
		s.mu.Unlock()
		return ErrDraining
	}
	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection",
			logger.FieldClientID, shortID(client.id),
			"max_clients", MaxClients,
		)
		return ErrTooManySessions
	}
	s.clients[client] = true
	s.wg.Add(2)
	total := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected",
		logger.FieldClientID, shortID(client.id),
		"total_clients", total,
	)
	return nil
}

// unregisterClient removes a session
func (s *Server) unregisterClient(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, client)
	total := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client disconnected",
		logger.FieldClientID, shortID(client.id),
		"total_clients", total,
	)
}

// sessionCount returns the number of connected sessions
func (s *Server) sessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// runPublish runs req under the server's lifetime and ctx, counting it as
// active so shutdown can wait for it
func (s *Server) runPublish(ctx context.Context, req publish.Request, reporter publish.Reporter) publish.Outcome {
	s.wg.Add(1)
	defer s.wg.Done()
	s.activeRuns.Add(1)
	defer s.activeRuns.Add(-1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	return s.runner.Run(ctx, req, reporter)
}
