package statecache

import (
	"context"
	"time"

	"saot-service/internal/domain/account"
	"saot-service/internal/pkg/fingerprint"
)

// DeviceState is the per-device snapshot persisted between requests so a
// device can restore its identity without re-authenticating.
type DeviceState struct {
	DeviceID  fingerprint.ID   `json:"device_id"`
	Account   *account.Account `json:"account"`
	SavedAt   time.Time        `json:"saved_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Cache stores device login state keyed by device fingerprint.
type Cache interface {
	Put(ctx context.Context, state *DeviceState) error
	Get(ctx context.Context, deviceID fingerprint.ID) (*DeviceState, error)
	Clear(ctx context.Context, deviceID fingerprint.ID) error
}
