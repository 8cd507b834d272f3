// internal/pkg/session/store.go
package session

import (
	"sync"

	"saot-service/internal/pkg/clock"
	"saot-service/internal/pkg/fingerprint"
)

// Store is the sole owner of per-account device sessions. All mutation goes
// through Insert, Deactivate, DeactivateAllExcept and Touch; UI-facing code
// must never reach into it directly.
//
// Sessions are append-only: deactivation flips IsActive, nothing is removed,
// so inactive entries remain available for stats and audit.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]*DeviceSession // accountID -> ordered sessions
	cfg      Config
	clock    clock.Clock
}

func NewStore(cfg Config, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Store{
		sessions: make(map[string][]*DeviceSession),
		cfg:      cfg,
		clock:    clk,
	}
}

// ListActive returns copies of the sessions that are active and within the
// inactivity window for the account, in insertion order.
func (s *Store) ListActive(accountID string) []*DeviceSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	var active []*DeviceSession
	for _, sess := range s.sessions[accountID] {
		if sess.IsActive && now.Sub(sess.LastActivity) < s.cfg.SessionTimeout {
			cp := *sess
			active = append(active, &cp)
		}
	}
	return active
}

// Insert appends a session. It never overwrites an existing entry.
func (s *Store) Insert(sess *DeviceSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	s.sessions[sess.AccountID] = append(s.sessions[sess.AccountID], &cp)
	sessionsCreated.Inc()
	activeSessions.Inc()
}

// Deactivate marks a single session inactive. Missing sessions are a no-op,
// not an error, so logout stays idempotent.
func (s *Store) Deactivate(accountID string, deviceID fingerprint.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions[accountID] {
		if sess.DeviceID == deviceID && sess.IsActive {
			sess.IsActive = false
			activeSessions.Dec()
		}
	}
}

// DeactivateAllExcept marks every other session for the account inactive.
// Pass an empty deviceID to evict all of them (a device that has not been
// admitted yet holds no session to spare).
func (s *Store) DeactivateAllExcept(accountID string, deviceID fingerprint.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions[accountID] {
		if sess.DeviceID != deviceID && sess.IsActive {
			sess.IsActive = false
			activeSessions.Dec()
			sessionsEvicted.Inc()
		}
	}
}

// Touch refreshes LastActivity on an active matching session and reports
// whether one existed.
func (s *Store) Touch(accountID string, deviceID fingerprint.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions[accountID] {
		if sess.DeviceID == deviceID && sess.IsActive {
			sess.LastActivity = s.clock.Now()
			return true
		}
	}
	return false
}

// find returns a copy of the active session for the pair, if any. Used by
// the validator and admission, which need the stored timestamps rather than
// the recency-filtered view.
func (s *Store) find(accountID string, deviceID fingerprint.ID) (DeviceSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions[accountID] {
		if sess.DeviceID == deviceID && sess.IsActive {
			return *sess, true
		}
	}
	return DeviceSession{}, false
}

// CleanupExpired flips sessions past the inactivity window to inactive.
// Run periodically; admission does not depend on it (ListActive filters by
// recency on its own), it only keeps the history tidy and the metrics honest.
func (s *Store) CleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for _, sessions := range s.sessions {
		for _, sess := range sessions {
			if sess.IsActive && now.Sub(sess.LastActivity) >= s.cfg.SessionTimeout {
				sess.IsActive = false
				activeSessions.Dec()
				sessionsExpired.Inc()
			}
		}
	}
}

// Stats reports aggregate session counts across all accounts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, sessions := range s.sessions {
		for _, sess := range sessions {
			if sess.IsActive {
				total++
			}
		}
	}

	st := Stats{
		TotalActiveSessions: total,
		AccountCount:        len(s.sessions),
	}
	if st.AccountCount > 0 {
		st.AverageSessionsPerUser = float64(total) / float64(st.AccountCount)
	}
	return st
}
