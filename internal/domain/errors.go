package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidState        = errors.New("invalid state object in request body")
	ErrPlayerIDRequired    = errors.New("a player ID is required")
	ErrPlayerNotFound      = errors.New("player not found in leaderboard")
	ErrUpstreamUnreachable = errors.New("leaderboard upstream unreachable")
	ErrUpstreamFormat      = errors.New("leaderboard upstream returned an unreadable payload")
	ErrStoreUnavailable    = errors.New("state store unavailable")
	ErrServerUnreachable   = errors.New("cannot reach the overlay server")
	ErrActionInFlight      = errors.New("action already in progress")
	ErrActionNotAllowed    = errors.New("action not allowed in current state")
	ErrControllerClosed    = errors.New("controller closed")
	ErrHistoryDisabled     = errors.New("overlay history is not enabled")
	ErrInternalError       = errors.New("internal server error")
)

// UpstreamStatusError is returned when the leaderboard upstream answers with a
// non-success HTTP status.
type UpstreamStatusError struct {
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("leaderboard upstream returned status %d", e.StatusCode)
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound)
}

// IsUpstreamError reports whether err came from the leaderboard upstream
// (transport, status or format failure). Not-found is not an upstream error.
func IsUpstreamError(err error) bool {
	var statusErr *UpstreamStatusError
	return errors.Is(err, ErrUpstreamUnreachable) ||
		errors.Is(err, ErrUpstreamFormat) ||
		errors.As(err, &statusErr)
}
