// internal/domain/account/entity.go
package account

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Roles assignable to an account.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Account represents a platform user. Owned by the account store; the
// session core reads it and only ever writes profile and entitlement fields.
type Account struct {
	ID               string         `json:"id" db:"id"`
	Name             string         `json:"name" db:"name"`
	Email            string         `json:"email" db:"email"`
	TelegramUsername string         `json:"telegram_username" db:"telegram_username"`
	PasswordHash     string         `json:"-" db:"password_hash"`
	AvatarURL        sql.NullString `json:"avatar_url" db:"avatar_url"`
	Role             string         `json:"role" db:"role"`
	EnrolledCourses  pq.StringArray `json:"enrolled_courses" db:"enrolled_courses"`
	PaidCourses      pq.StringArray `json:"paid_courses" db:"paid_courses"`
	Progress         map[string]int `json:"progress" db:"progress"`
	Phone            sql.NullString `json:"phone" db:"phone"`
	Bio              sql.NullString `json:"bio" db:"bio"`
	Location         sql.NullString `json:"location" db:"location"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// HasPaidCourse reports whether the account owns an entitlement for courseID.
func (a *Account) HasPaidCourse(courseID string) bool {
	for _, id := range a.PaidCourses {
		if id == courseID {
			return true
		}
	}
	return false
}

// SameEntitlements compares paid-course sets, order-insensitive. Used by the
// background reconciler to decide whether the cached snapshot is stale.
func (a *Account) SameEntitlements(other *Account) bool {
	if other == nil || len(a.PaidCourses) != len(other.PaidCourses) {
		return false
	}
	seen := make(map[string]bool, len(a.PaidCourses))
	for _, id := range a.PaidCourses {
		seen[id] = true
	}
	for _, id := range other.PaidCourses {
		if !seen[id] {
			return false
		}
	}
	return true
}
