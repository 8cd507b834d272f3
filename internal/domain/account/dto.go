// internal/domain/account/dto.go
package account

import "saot-service/internal/pkg/session"

type RegisterRequest struct {
	Name             string `json:"name" binding:"required"`
	TelegramUsername string `json:"telegram_username" binding:"required"`
	Password         string `json:"password" binding:"required,min=6"`

	// Set by the handler, not the client body.
	UserAgent string `json:"-"`
	Platform  string `json:"-"`
	IPAddress string `json:"-"`
}

type LoginRequest struct {
	TelegramUsername string `json:"telegram_username" binding:"required"`
	Password         string `json:"password" binding:"required"`

	UserAgent string `json:"-"`
	Platform  string `json:"-"`
	IPAddress string `json:"-"`
}

// LoginResponse is returned on successful admission. When the device cap is
// hit the handler instead returns the active-device list so the client can
// offer eviction and call the resolve-limit endpoint.
type LoginResponse struct {
	AccessToken string                   `json:"access_token"`
	TokenType   string                   `json:"token_type"`
	ExpiresIn   int                      `json:"expires_in"`
	DeviceID    string                   `json:"device_id"`
	Account     *Account                 `json:"account"`
	Session     *session.DeviceSession   `json:"session"`
	Active      []*session.DeviceSession `json:"active_sessions,omitempty"`
}

type UpdateProfileRequest struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Phone     string `json:"phone"`
	Bio       string `json:"bio"`
	Location  string `json:"location"`
}
