// internal/pkg/session/admission.go
package session

import (
	"sync"

	"github.com/oklog/ulid/v2"

	"saot-service/internal/pkg/clock"
	"saot-service/internal/pkg/fingerprint"
)

// Admission gates session creation by the per-account device cap.
//
// "Count active, then insert" is a check-then-act sequence, so admissions
// for the same account are serialized here; store operations alone cannot
// keep the cap invariant under concurrent logins.
type Admission struct {
	store *Store
	cfg   Config
	clock clock.Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex // accountID -> admission lock
}

func NewAdmission(store *Store, cfg Config, clk clock.Clock) *Admission {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Admission{
		store: store,
		cfg:   cfg,
		clock: clk,
		locks: make(map[string]*sync.Mutex),
	}
}

func (a *Admission) lockFor(accountID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[accountID] = l
	}
	return l
}

// Admit creates and inserts a new session for the device, unless the account
// already has MaxDevicesPerUser active sessions, in which case it returns a
// *DeviceLimitError carrying the competing sessions and creates nothing.
//
// Eviction and retry are the orchestrator's business, not admission's.
func (a *Admission) Admit(accountID string, deviceID fingerprint.ID, info DeviceInfo) (*DeviceSession, error) {
	l := a.lockFor(accountID)
	l.Lock()
	defer l.Unlock()

	// A device that is already signed in reuses its session rather than
	// spending a second slot.
	if _, ok := a.store.find(accountID, deviceID); ok {
		a.store.Touch(accountID, deviceID)
		sess, _ := a.store.find(accountID, deviceID)
		return &sess, nil
	}

	active := a.store.ListActive(accountID)
	if len(active) >= a.cfg.MaxDevicesPerUser {
		return nil, &DeviceLimitError{Limit: a.cfg.MaxDevicesPerUser, Active: active}
	}

	now := a.clock.Now()
	sess := &DeviceSession{
		ID:           ulid.Make().String(),
		AccountID:    accountID,
		DeviceID:     deviceID,
		DeviceInfo:   info,
		LoginTime:    now,
		LastActivity: now,
		IsActive:     true,
	}
	a.store.Insert(sess)

	return sess, nil
}
