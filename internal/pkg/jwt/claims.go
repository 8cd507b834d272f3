package jwt

import (
	"github.com/golang-jwt/jwt/v5"

	"saot-service/internal/pkg/fingerprint"
)

// Claims carried by access tokens. DeviceID binds a token to the device
// session it was issued for, so the session layer can validate liveness
// on every request.
type Claims struct {
	AccountID string         `json:"account_id"`
	DeviceID  fingerprint.ID `json:"device_id"`
	Role      string         `json:"role"`
	jwt.RegisteredClaims
}
