package server

import (
	"net/http"

	"github.com/teranos/snpm/errors"
	"github.com/teranos/snpm/publish"
)

// Transport-level failures, independent of any pipeline stage
var (
	// ErrRateLimited indicates the publish rate limiter rejected a request
	ErrRateLimited = errors.New("Too many publish requests, retry later")

	// ErrDraining indicates the server is shutting down
	ErrDraining = errors.New("Registry is shutting down")

	// ErrTooManySessions indicates MaxClients sessions are already connected
	ErrTooManySessions = errors.New("too many sessions")

	// ErrBusy indicates a session already has a publish running
	ErrBusy = errors.New(publish.MessageInProgress)
)

// messageBadBody answers a publish body that is not a JSON request
const messageBadBody = "Invalid request body"

// statusFor maps a failed outcome to an HTTP status. Failures caused by the
// caller's input are 400; every other stage failure is the server's.
func statusFor(outcome publish.Outcome) int {
	switch {
	case outcome.Succeeded():
		return http.StatusOK
	case errors.IsClientError(outcome.Err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
