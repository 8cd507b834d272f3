// internal/pkg/session/validator.go
package session

import (
	"saot-service/internal/pkg/clock"
	"saot-service/internal/pkg/fingerprint"
)

// Validator answers whether an (account, device) pair is currently a
// legitimate, non-expired session, expiring it on timeout. Check is the
// passive form used by the liveness timer; Validate additionally counts as
// client activity and refreshes the session.
type Validator struct {
	store *Store
	cfg   Config
	clock clock.Clock
}

func NewValidator(store *Store, cfg Config, clk clock.Clock) *Validator {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Validator{store: store, cfg: cfg, clock: clk}
}

// Check reports whether the session is live without refreshing it. The
// liveness timer fires whether or not the client is still there, so a refresh
// here would keep an abandoned session alive past the inactivity timeout.
// Failures are fatal to the session: the caller must force a full logout and
// surface the error message.
func (v *Validator) Check(accountID string, deviceID fingerprint.ID) error {
	sess, ok := v.store.find(accountID, deviceID)
	if !ok {
		return ErrInvalidSession
	}

	if v.clock.Now().Sub(sess.LastActivity) > v.cfg.SessionTimeout {
		v.store.Deactivate(accountID, deviceID)
		return ErrSessionExpired
	}

	return nil
}

// Validate is Check plus a LastActivity refresh. Call it only on real client
// activity: an authenticated request or a session restore.
func (v *Validator) Validate(accountID string, deviceID fingerprint.ID) error {
	if err := v.Check(accountID, deviceID); err != nil {
		return err
	}
	v.store.Touch(accountID, deviceID)
	return nil
}
