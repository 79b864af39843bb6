package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/teranos/snpm/am"
	"github.com/teranos/snpm/errors"
	"github.com/teranos/snpm/logger"
)

// getState returns the current server state
func (s *Server) getState() ServerState {
	return ServerState(s.state.Load())
}

// setState atomically updates the server state
func (s *Server) setState(newState ServerState) {
	s.state.Store(int32(newState))
	s.logger.Infow("Server state changed", "new_state", stateString(newState))
}

// stateString returns human-readable state name
func stateString(state ServerState) string {
	switch state {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Start listens on port and serves until Stop is called
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WithHintf(
			errors.Wrapf(err, "failed to listen on %s", addr),
			"another registry may be running; pick a port with --port or REGISTRY_PORT",
		)
	}
	return s.Serve(listener)
}

// Serve serves on an existing listener until Stop is called
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: POST /publish answers only after the build
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Infow("Registry listening",
		logger.FieldAddress, listener.Addr().String(),
	)

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "registry server failed")
	}
	return nil
}

// WatchConfig applies reloaded configuration to the running server: the
// publish rate, the run deadline and the allowed origins
func (s *Server) WatchConfig(watcher *am.ConfigWatcher) {
	s.configWatcher = watcher
	watcher.OnReload(func(cfg *am.Config) error {
		s.applyConfig(cfg)
		return nil
	})
	watcher.Start()
}

func (s *Server) applyConfig(cfg *am.Config) {
	s.setRate(cfg.Publish.RatePerMinute, cfg.Publish.Burst)
	if s.timeoutSetter != nil {
		s.timeoutSetter(cfg.Publish.TimeoutSeconds)
	}

	s.mu.Lock()
	s.allowedOrigins = cfg.Server.AllowedOrigins
	s.mu.Unlock()

	s.logger.Infow("Applied reloaded configuration",
		"rate_per_minute", cfg.Publish.RatePerMinute,
		"burst", cfg.Publish.Burst,
		"timeout_seconds", cfg.Publish.TimeoutSeconds,
	)
}

// Stop gracefully shuts down the server. Running publishes are cancelled
// and their callers receive the failing stage's message.
func (s *Server) Stop() error {
	s.logger.Infow("Initiating server shutdown")
	// Sessions registering concurrently either land in the snapshot below or are refused
	s.mu.Lock()
	s.setState(ServerStateDraining)
	s.mu.Unlock()

	// Cancel running publishes and session pumps
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	s.mu.RLock()
	srv := s.httpServer
	s.mu.RUnlock()

	var shutdownErr error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			shutdownErr = errors.Wrap(err, "http shutdown")
		}
	}

	// Hijacked WebSocket connections are not tracked by http.Server
	s.mu.Lock()
	clientsToClose := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clientsToClose = append(clientsToClose, client)
	}
	s.mu.Unlock()
	if len(clientsToClose) > 0 {
		s.logger.Infow("Closing client connections", "count", len(clientsToClose))
		for _, client := range clientsToClose {
			client.close()
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infow("All sessions and publishes stopped cleanly")
	case <-ctx.Done():
		s.logger.Warnw("Shutdown timed out, forcing exit",
			"timeout", ShutdownTimeout,
			"active_runs", s.activeRuns.Load(),
		)
	}

	if s.configWatcher != nil {
		if err := s.configWatcher.Stop(); err != nil {
			s.logger.Warnw("Failed to stop config watcher", logger.FieldError, err)
		}
	}

	s.setState(ServerStateStopped)
	s.logger.Infow("Server shutdown complete")
	return shutdownErr
}
