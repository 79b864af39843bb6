package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/teranos/snpm/errors"
	"github.com/teranos/snpm/logger"
	"github.com/teranos/snpm/publish"
	"github.com/teranos/snpm/version"
)

// HandlePublish runs one publish synchronously.
//
//	200 empty body      published
//	400 text            invalid url/version/checksum, or checksum mismatch
//	429 text            publish rate exceeded
//	500 text            any other stage failure
func (s *Server) HandlePublish(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if s.getState() != ServerStateRunning {
		writeText(w, http.StatusServiceUnavailable, ErrDraining.Error())
		return
	}

	var req publish.Request
	if err := readJSON(w, r, &req); err != nil {
		s.logger.Debugw("Rejected publish body", logger.FieldError, err)
		writeText(w, http.StatusBadRequest, messageBadBody)
		return
	}
	if err := req.Validate(true); err != nil {
		s.logger.Infow("Rejected publish request",
			logger.FieldURL, req.URL,
			logger.FieldVersion, req.Version,
			logger.FieldError, err,
			"details", errors.FlattenDetails(err),
		)
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.admitPublish(); err != nil {
		w.Header().Set("Retry-After", strconv.Itoa(int(s.retryAfter().Seconds())))
		writeText(w, http.StatusTooManyRequests, err.Error())
		return
	}

	outcome := s.runPublish(r.Context(), req, publish.Discard)
	if outcome.Succeeded() {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeText(w, statusFor(outcome), outcome.Message)
}

// retryAfter estimates when the limiter will next admit a request
func (s *Server) retryAfter() time.Duration {
	d := time.Duration(float64(time.Second) / float64(s.limiter.Limit())).Round(time.Second)
	if d < time.Second {
		return time.Second
	}
	return d
}

// HandleHealth reports liveness and build information
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	info := version.Get()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     healthStatus(s.getState()),
		Version:    info.Version,
		Commit:     info.Short(),
		Sessions:   s.sessionCount(),
		ActiveRuns: s.activeRuns.Load(),
	})
}

func healthStatus(state ServerState) string {
	if state == ServerStateRunning {
		return "ok"
	}
	return stateString(state)
}
