package server

import (
	"time"

	"golang.org/x/time/rate"
)

// newLimiter converts a per-minute rate into a token bucket. 0 disables limiting.
func newLimiter(perMinute, burst int) *rate.Limiter {
	limit, b := limitFor(perMinute, burst)
	return rate.NewLimiter(limit, b)
}

func limitFor(perMinute, burst int) (rate.Limit, int) {
	if perMinute <= 0 {
		return rate.Inf, 0
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.Every(time.Minute / time.Duration(perMinute)), burst
}

// admitPublish takes one token from the publish limiter, or returns ErrRateLimited
func (s *Server) admitPublish() error {
	if !s.limiter.Allow() {
		return ErrRateLimited
	}
	return nil
}

// setRate retunes the limiter in place; tokens already accrued are kept
func (s *Server) setRate(perMinute, burst int) {
	limit, b := limitFor(perMinute, burst)
	s.limiter.SetLimit(limit)
	s.limiter.SetBurst(b)
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
