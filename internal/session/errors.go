// File: internal/session/errors.go
package session

import "errors"

var (
	// ErrNotConfigured is returned when an action that needs a running
	// browser is attempted before Configure succeeded. Navigation recovers
	// automatically by configuring lazily; other actions do not.
	ErrNotConfigured = errors.New("session is not configured")

	// ErrElementNotFound is returned when a selector has no displayed match.
	// Matches that exist but are hidden still count as not found.
	ErrElementNotFound = errors.New("no displayed element matches selector")

	// ErrTimeout is returned when an await-selector wait exceeds the
	// configured session timeout.
	ErrTimeout = errors.New("timed out waiting for selector")
)
