package session

import (
	"errors"
	"testing"
	"time"
)

func TestValidator_UnknownSession(t *testing.T) {
	clk := newFakeClock()
	store := NewStore(DefaultConfig(), clk)
	v := NewValidator(store, DefaultConfig(), clk)

	if err := v.Validate("acc1", "devA"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("err = %v, want ErrInvalidSession", err)
	}
}

func TestValidator_DeactivatedSession(t *testing.T) {
	clk := newFakeClock()
	store := NewStore(DefaultConfig(), clk)
	v := NewValidator(store, DefaultConfig(), clk)

	store.Insert(newTestSession("acc1", "devA", clk.Now()))
	store.Deactivate("acc1", "devA")

	if err := v.Validate("acc1", "devA"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("err = %v, want ErrInvalidSession", err)
	}
}

// Sliding expiry: each successful validation refreshes the window.
func TestValidator_SlidingExpiry(t *testing.T) {
	clk := newFakeClock()
	store := NewStore(DefaultConfig(), clk)
	v := NewValidator(store, DefaultConfig(), clk)

	store.Insert(newTestSession("acc1", "devA", clk.Now()))

	clk.Advance(29 * time.Minute)
	if err := v.Validate("acc1", "devA"); err != nil {
		t.Fatalf("validate at +29m: %v", err)
	}

	// 29 minutes after the refresh is still within the window.
	clk.Advance(29 * time.Minute)
	if err := v.Validate("acc1", "devA"); err != nil {
		t.Fatalf("validate at +29m+29m: %v", err)
	}

	clk.Advance(31 * time.Minute)
	if err := v.Validate("acc1", "devA"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}

	// Expiry deactivates the session for good.
	if got := len(store.ListActive("acc1")); got != 0 {
		t.Fatalf("active after expiry = %d, want 0", got)
	}
	if err := v.Validate("acc1", "devA"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("revalidation after expiry = %v, want ErrInvalidSession", err)
	}
}

// Check is passive: repeated checks never reset the inactivity window, so a
// session with no real client activity expires no matter how often the
// background timer looks at it.
func TestValidator_CheckDoesNotRefresh(t *testing.T) {
	clk := newFakeClock()
	store := NewStore(DefaultConfig(), clk)
	v := NewValidator(store, DefaultConfig(), clk)

	store.Insert(newTestSession("acc1", "devA", clk.Now()))

	clk.Advance(15 * time.Minute)
	if err := v.Check("acc1", "devA"); err != nil {
		t.Fatalf("check at +15m: %v", err)
	}
	clk.Advance(15 * time.Minute)
	if err := v.Check("acc1", "devA"); err != nil {
		t.Fatalf("check at +30m: %v", err)
	}

	// Had either check refreshed the session, one more minute would still be
	// well inside the window.
	clk.Advance(time.Minute)
	if err := v.Check("acc1", "devA"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("check at +31m = %v, want ErrSessionExpired", err)
	}

	if got := len(store.ListActive("acc1")); got != 0 {
		t.Fatalf("active after idle expiry = %d, want 0", got)
	}
}

func TestValidator_SuccessRefreshesActivity(t *testing.T) {
	clk := newFakeClock()
	store := NewStore(DefaultConfig(), clk)
	v := NewValidator(store, DefaultConfig(), clk)

	store.Insert(newTestSession("acc1", "devA", clk.Now()))
	clk.Advance(10 * time.Minute)

	if err := v.Validate("acc1", "devA"); err != nil {
		t.Fatalf("validate: %v", err)
	}

	sess, ok := store.find("acc1", "devA")
	if !ok {
		t.Fatal("session disappeared")
	}
	if !sess.LastActivity.Equal(clk.Now()) {
		t.Fatalf("last activity = %v, want %v", sess.LastActivity, clk.Now())
	}
}
