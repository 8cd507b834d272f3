// internal/pkg/session/types.go
package session

import (
	"time"

	"saot-service/internal/pkg/fingerprint"
)

// Defaults for the device cap and inactivity window. Overridable through
// Config for tests and deployment tuning.
const (
	DefaultMaxDevicesPerUser = 2
	DefaultSessionTimeout    = 30 * time.Minute
)

// Config carries the session policy knobs shared by the store, validator
// and admission controller.
type Config struct {
	MaxDevicesPerUser int
	SessionTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxDevicesPerUser: DefaultMaxDevicesPerUser,
		SessionTimeout:    DefaultSessionTimeout,
	}
}

// DeviceInfo is descriptive metadata about the client device. Informational
// only; never consulted for admission or validation decisions.
type DeviceInfo struct {
	UserAgent string `json:"user_agent"`
	Platform  string `json:"platform"`
	Browser   string `json:"browser"`
	IPAddress string `json:"ip_address,omitempty"`
}

// DeviceSession represents one authenticated device for one account.
// Sessions are never deleted, only marked inactive, so the store doubles as
// a login history.
type DeviceSession struct {
	ID           string         `json:"id"`
	AccountID    string         `json:"account_id"`
	DeviceID     fingerprint.ID `json:"device_id"`
	DeviceInfo   DeviceInfo     `json:"device_info"`
	LoginTime    time.Time      `json:"login_time"`
	LastActivity time.Time      `json:"last_activity"`
	IsActive     bool           `json:"is_active"`
}

// Stats summarizes store contents for the ops surface.
type Stats struct {
	TotalActiveSessions    int     `json:"total_active_sessions"`
	AccountCount           int     `json:"account_count"`
	AverageSessionsPerUser float64 `json:"average_sessions_per_user"`
}
