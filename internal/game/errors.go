package game

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPayload marks a malformed event body. The sender is told, state is unchanged.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrStaleEvent marks an event that lost a race or arrived for a past round. It is dropped.
	ErrStaleEvent = errors.New("stale or duplicate event")
)

func invalidPayload(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

func staleEvent(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrStaleEvent, fmt.Sprintf(format, args...))
}
