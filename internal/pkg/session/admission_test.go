package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"saot-service/internal/pkg/fingerprint"
)

func TestAdmission_UnderCap(t *testing.T) {
	clk := newFakeClock()
	store := NewStore(DefaultConfig(), clk)
	adm := NewAdmission(store, DefaultConfig(), clk)

	sess, err := adm.Admit("acc1", "devA", DeviceInfo{Browser: "Chrome"})
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if sess.ID == "" || !sess.IsActive {
		t.Fatalf("bad session: %+v", sess)
	}

	if _, err := adm.Admit("acc1", "devB", DeviceInfo{}); err != nil {
		t.Fatalf("second admit: %v", err)
	}

	if got := len(store.ListActive("acc1")); got != 2 {
		t.Fatalf("active = %d, want 2", got)
	}
}

func TestAdmission_CapExceededCarriesActiveList(t *testing.T) {
	clk := newFakeClock()
	store := NewStore(DefaultConfig(), clk)
	adm := NewAdmission(store, DefaultConfig(), clk)

	mustAdmit(t, adm, "acc1", "devA")
	mustAdmit(t, adm, "acc1", "devB")

	_, err := adm.Admit("acc1", "devC", DeviceInfo{})
	if !errors.Is(err, ErrDeviceLimit) {
		t.Fatalf("err = %v, want ErrDeviceLimit", err)
	}

	dle, ok := AsDeviceLimit(err)
	if !ok {
		t.Fatalf("error is not a DeviceLimitError: %v", err)
	}
	if len(dle.Active) != 2 {
		t.Fatalf("competing sessions = %d, want 2", len(dle.Active))
	}
	devices := map[string]bool{}
	for _, s := range dle.Active {
		devices[string(s.DeviceID)] = true
	}
	if !devices["devA"] || !devices["devB"] {
		t.Fatalf("competing devices = %v, want devA and devB", devices)
	}

	// Refusal must not create a session.
	if got := len(store.ListActive("acc1")); got != 2 {
		t.Fatalf("active = %d, refused admission must not insert", got)
	}
}

func TestAdmission_SameDeviceReusesSession(t *testing.T) {
	clk := newFakeClock()
	store := NewStore(DefaultConfig(), clk)
	adm := NewAdmission(store, DefaultConfig(), clk)

	first, err := adm.Admit("acc1", "devA", DeviceInfo{})
	if err != nil {
		t.Fatalf("admit: %v", err)
	}

	clk.Advance(5 * time.Minute)
	again, err := adm.Admit("acc1", "devA", DeviceInfo{})
	if err != nil {
		t.Fatalf("re-admit: %v", err)
	}

	if again.ID != first.ID {
		t.Fatalf("re-admission created a new session: %s != %s", again.ID, first.ID)
	}
	if !again.LastActivity.After(first.LastActivity) {
		t.Fatal("re-admission did not refresh activity")
	}
	if got := len(store.ListActive("acc1")); got != 1 {
		t.Fatalf("active = %d, want 1", got)
	}
}

func TestAdmission_StaleSessionFreesCapacity(t *testing.T) {
	clk := newFakeClock()
	store := NewStore(DefaultConfig(), clk)
	adm := NewAdmission(store, DefaultConfig(), clk)

	mustAdmit(t, adm, "acc1", "devA")
	mustAdmit(t, adm, "acc1", "devB")

	// Once devA falls out of the recency window a third device fits.
	clk.Advance(20 * time.Minute)
	store.Touch("acc1", "devB")
	clk.Advance(15 * time.Minute)

	if _, err := adm.Admit("acc1", "devC", DeviceInfo{}); err != nil {
		t.Fatalf("admit after expiry: %v", err)
	}
}

// Concurrent logins for one account must never exceed the cap.
func TestAdmission_ConcurrentLoginsRespectCap(t *testing.T) {
	clk := newFakeClock()
	store := NewStore(DefaultConfig(), clk)
	adm := NewAdmission(store, DefaultConfig(), clk)

	const attempts = 16
	var wg sync.WaitGroup
	admitted := make(chan struct{}, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			dev := []string{"d0", "d1", "d2", "d3"}[n%4]
			if _, err := adm.Admit("acc1", fingerprint.ID(dev), DeviceInfo{}); err == nil {
				admitted <- struct{}{}
			}
		}(i)
	}
	wg.Wait()
	close(admitted)

	if got := len(store.ListActive("acc1")); got > DefaultMaxDevicesPerUser {
		t.Fatalf("active = %d, cap %d violated", got, DefaultMaxDevicesPerUser)
	}
}

func mustAdmit(t *testing.T, adm *Admission, accountID, deviceID string) {
	t.Helper()
	if _, err := adm.Admit(accountID, fingerprint.ID(deviceID), DeviceInfo{}); err != nil {
		t.Fatalf("admit %s/%s: %v", accountID, deviceID, err)
	}
}
