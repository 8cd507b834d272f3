// internal/pkg/session/errors.go
package session

import (
	"errors"
	"fmt"
)

// Session error taxonomy. Every failure here is fatal to the session: the
// orchestrator must force a local logout and surface the message.
var (
	ErrInvalidSession = errors.New("session not found or no longer valid")
	ErrSessionExpired = errors.New("session expired, please sign in again")
	ErrDeviceLimit    = errors.New("device limit exceeded")
)

// DeviceLimitError is returned when admission is refused because the account
// already has the maximum number of active devices. It carries the competing
// sessions so the caller can render an eviction choice.
type DeviceLimitError struct {
	Limit  int
	Active []*DeviceSession
}

func (e *DeviceLimitError) Error() string {
	return fmt.Sprintf("maximum of %d active devices reached (%d currently signed in)", e.Limit, len(e.Active))
}

func (e *DeviceLimitError) Unwrap() error { return ErrDeviceLimit }

// AsDeviceLimit extracts a DeviceLimitError from an error chain.
func AsDeviceLimit(err error) (*DeviceLimitError, bool) {
	var dle *DeviceLimitError
	if errors.As(err, &dle) {
		return dle, true
	}
	return nil, false
}
