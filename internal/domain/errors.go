package domain

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Domain Errors
// Error kinds shared by the scheduler, the progress engine and the
// conversation layer. Wrap them with %w and match with errors.Is.
// -----------------------------------------------------------------------------

// General errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrRemoteUnavailable = errors.New("remote service unavailable")
	ErrNoSpeechDetected  = errors.New("no speech detected")
	ErrConflict          = errors.New("conflict")
)

// Lookup errors
var (
	ErrTopicNotFound   = fmt.Errorf("topic %w", ErrNotFound)
	ErrItemNotFound    = fmt.Errorf("review item %w", ErrNotFound)
	ErrSessionNotFound = fmt.Errorf("session %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
)

// Invalidf returns an ErrInvalidInput wrapped with a formatted reason.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
