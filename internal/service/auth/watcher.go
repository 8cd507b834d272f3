// internal/service/auth/watcher.go
package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	xerrors "saot-service/internal/pkg/errors"
	"saot-service/internal/pkg/fingerprint"
	"saot-service/internal/pkg/session"
)

// watcherSet tracks the cancel handle of each device's background watcher.
type watcherSet struct {
	mu      sync.Mutex
	entries map[fingerprint.ID]watcherEntry
}

type watcherEntry struct {
	accountID string
	cancel    context.CancelFunc
}

func newWatcherSet() *watcherSet {
	return &watcherSet{entries: make(map[fingerprint.ID]watcherEntry)}
}

// add registers a watcher, cancelling any previous one for the device.
func (w *watcherSet) add(accountID string, deviceID fingerprint.ID, cancel context.CancelFunc) {
	w.mu.Lock()
	prev, ok := w.entries[deviceID]
	w.entries[deviceID] = watcherEntry{accountID: accountID, cancel: cancel}
	w.mu.Unlock()
	if ok {
		prev.cancel()
	}
}

func (w *watcherSet) cancel(deviceID fingerprint.ID) {
	w.mu.Lock()
	entry, ok := w.entries[deviceID]
	if ok {
		delete(w.entries, deviceID)
	}
	w.mu.Unlock()
	if ok {
		entry.cancel()
	}
}

func (w *watcherSet) cancelAll() {
	w.mu.Lock()
	entries := w.entries
	w.entries = make(map[fingerprint.ID]watcherEntry)
	w.mu.Unlock()
	for _, entry := range entries {
		entry.cancel()
	}
}

func (w *watcherSet) activeFor(accountID string) []fingerprint.ID {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ids []fingerprint.ID
	for deviceID, entry := range w.entries {
		if entry.accountID == accountID {
			ids = append(ids, deviceID)
		}
	}
	return ids
}

func (w *watcherSet) watching(deviceID fingerprint.ID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.entries[deviceID]
	return ok
}

// startWatchers spawns the per-device background loop: a liveness tick that
// passively checks the session and forces logout on failure, and a slower
// sync tick that reconciles the cached account snapshot with the store.
// The tick is not client activity and must never refresh the session.
func (s *AuthService) startWatchers(accountID string, deviceID fingerprint.ID) {
	ctx, cancel := context.WithCancel(context.Background())
	s.watchers.add(accountID, deviceID, cancel)
	go s.watchDevice(ctx, accountID, deviceID)
}

func (s *AuthService) watchDevice(ctx context.Context, accountID string, deviceID fingerprint.ID) {
	validate := time.NewTicker(s.cfg.ValidateInterval)
	defer validate.Stop()
	reconcile := time.NewTicker(s.cfg.SyncInterval)
	defer reconcile.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-validate.C:
			if err := s.validator.Check(accountID, deviceID); err != nil {
				s.forceLogout(context.Background(), accountID, deviceID, logoutReason(err))
				return
			}

		case <-reconcile.C:
			s.reconcileDevice(ctx, accountID, deviceID)
		}
	}
}

// reconcileDevice refreshes the cached account snapshot when entitlements
// changed out of band (a bot purchase, an admin grant). Failures are logged
// and swallowed; reconciliation must never log a user out.
func (s *AuthService) reconcileDevice(ctx context.Context, accountID string, deviceID fingerprint.ID) {
	fresh, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		s.logger.Warn("reconcile: account fetch failed",
			zap.String("account_id", accountID), zap.Error(err))
		return
	}

	state, err := s.states.Get(ctx, deviceID)
	if err != nil {
		if !xerrors.Is(err, xerrors.ErrNotFound) {
			s.logger.Warn("reconcile: device state fetch failed",
				zap.String("device_id", string(deviceID)), zap.Error(err))
		}
		return
	}

	if state.Account != nil && state.Account.SameEntitlements(fresh) {
		return
	}

	state.Account = fresh
	state.UpdatedAt = s.clock.Now()
	if err := s.states.Put(ctx, state); err != nil {
		s.logger.Warn("reconcile: device state update failed",
			zap.String("device_id", string(deviceID)), zap.Error(err))
		return
	}

	s.logger.Info("reconciled device entitlements",
		zap.String("account_id", accountID),
		zap.String("device_id", string(deviceID)),
		zap.Int("paid_courses", len(fresh.PaidCourses)),
	)
}

func logoutReason(err error) string {
	if xerrors.Is(err, session.ErrSessionExpired) {
		return "session expired after 30 minutes of inactivity"
	}
	return "session is no longer active"
}
