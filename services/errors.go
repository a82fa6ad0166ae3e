package services

import "errors"

var (
	// ErrNotMember means the caller is not an active member of the session
	ErrNotMember = errors.New("not a session member")
	// ErrNotFound means a referenced session, venue or deck item does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict means the swipe was already recorded
	ErrConflict = errors.New("swipe already recorded")
	// ErrForbidden means the caller may not perform a host-only action
	ErrForbidden = errors.New("only the host can do this")
	// ErrUpstreamUnavailable means the places provider failed or timed out; retryable
	ErrUpstreamUnavailable = errors.New("places provider unavailable")
	// ErrCodeTaken means a generated join code collided with an existing one
	ErrCodeTaken = errors.New("join code already in use")
)
