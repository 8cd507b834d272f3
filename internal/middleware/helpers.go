// internal/middleware/helpers.go
package middleware

import (
	"github.com/gin-gonic/gin"

	"saot-service/internal/domain/account"
	"saot-service/internal/pkg/fingerprint"
)

// GetAccountID gets the authenticated account id from context
func GetAccountID(c *gin.Context) (string, bool) {
	v, exists := c.Get("account_id")
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// MustGetAccountID gets the account id from context or panics
func MustGetAccountID(c *gin.Context) string {
	id, exists := GetAccountID(c)
	if !exists {
		panic("account_id not found in context")
	}
	return id
}

// GetDeviceID gets the device fingerprint from context
func GetDeviceID(c *gin.Context) (fingerprint.ID, bool) {
	v, exists := c.Get("device_id")
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return fingerprint.ID(id), ok
}

// MustGetDeviceID gets the device fingerprint from context or panics
func MustGetDeviceID(c *gin.Context) fingerprint.ID {
	id, exists := GetDeviceID(c)
	if !exists {
		panic("device_id not found in context")
	}
	return id
}

// GetRole gets the account role from context
func GetRole(c *gin.Context) string {
	v, exists := c.Get("role")
	if !exists {
		return ""
	}
	role, _ := v.(string)
	return role
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get("account_id")
	return exists
}

// IsAdmin checks if the authenticated account is an admin
func IsAdmin(c *gin.Context) bool {
	return GetRole(c) == account.RoleAdmin
}
