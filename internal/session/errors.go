package session

import "errors"

// Failure taxonomy shared by the store and service layers. Callers match
// with errors.Is; the HTTP layer maps these to status codes.
var (
	// ErrNotFound means the referenced session or event does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means the action is illegal for the session's
	// current lifecycle status, e.g. stopping twice or logging an event
	// after close.
	ErrInvalidState = errors.New("invalid session state")

	// ErrInvalidArgument means a required field is missing or malformed.
	ErrInvalidArgument = errors.New("invalid argument")
)
