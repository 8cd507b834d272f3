package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"saot-service/internal/domain/account"
	xerrors "saot-service/internal/pkg/errors"
	"saot-service/internal/pkg/fingerprint"
	"saot-service/internal/pkg/jwt"
	"saot-service/internal/pkg/session"
	"saot-service/internal/pkg/statecache"
	"saot-service/internal/repository/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *fakeNotifier) ForceLogout(accountID string, deviceID fingerprint.ID, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, string(deviceID)+": "+reason)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type testEnv struct {
	svc      *AuthService
	store    *session.Store
	accounts *memory.AccountRepository
	states   *statecache.MemoryCache
	notifier *fakeNotifier
	clock    *fakeClock
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	clk := newFakeClock()
	sessCfg := session.DefaultConfig()
	store := session.NewStore(sessCfg, clk)
	accounts := memory.NewAccountRepository()
	states := statecache.NewMemoryCache()
	notifier := &fakeNotifier{}

	tokens, err := jwt.NewManager([]byte("test-secret"), "test", time.Hour)
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}

	svc := NewAuthService(
		accounts,
		store,
		session.NewAdmission(store, sessCfg, clk),
		session.NewValidator(store, sessCfg, clk),
		tokens,
		states,
		nil,
		notifier,
		clk,
		cfg,
		zap.NewNop(),
	)
	t.Cleanup(svc.Shutdown)

	return &testEnv{svc: svc, store: store, accounts: accounts, states: states, notifier: notifier, clock: clk}
}

// quietConfig keeps the background tickers out of the way for tests that
// only exercise the synchronous paths.
func quietConfig() Config {
	return Config{ValidateInterval: time.Hour, SyncInterval: time.Hour}
}

func registerDevice(t *testing.T, env *testEnv, username, userAgent string) *account.LoginResponse {
	t.Helper()
	resp, err := env.svc.Register(context.Background(), &account.RegisterRequest{
		Name:             "Test User",
		TelegramUsername: username,
		Password:         "secret123",
		UserAgent:        userAgent,
		Platform:         "Linux x86_64",
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return resp
}

func loginDevice(env *testEnv, username, userAgent string) (*account.LoginResponse, error) {
	return env.svc.Login(context.Background(), &account.LoginRequest{
		TelegramUsername: username,
		Password:         "secret123",
		UserAgent:        userAgent,
		Platform:         "Linux x86_64",
	})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

const (
	uaChrome  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"
	uaFirefox = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"
	uaSafari  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 Version/17.0 Safari/605.1.15"
)

func TestRegister_DuplicateCreatesNothing(t *testing.T) {
	env := newTestEnv(t, quietConfig())

	first := registerDevice(t, env, "alice", uaChrome)

	_, err := env.svc.Register(context.Background(), &account.RegisterRequest{
		Name:             "Imposter",
		TelegramUsername: "ALICE",
		Password:         "hunter22",
		UserAgent:        uaFirefox,
		Platform:         "Linux x86_64",
	})
	if !xerrors.Is(err, xerrors.ErrDuplicateAccount) {
		t.Fatalf("err = %v, want ErrDuplicateAccount", err)
	}

	// Only the original registration holds a session.
	if got := len(env.store.ListActive(first.Account.ID)); got != 1 {
		t.Fatalf("active sessions = %d, want 1", got)
	}
}

func TestLogin_InvalidCredential(t *testing.T) {
	env := newTestEnv(t, quietConfig())
	registerDevice(t, env, "alice", uaChrome)

	_, err := env.svc.Login(context.Background(), &account.LoginRequest{
		TelegramUsername: "alice",
		Password:         "wrong",
		UserAgent:        uaFirefox,
		Platform:         "Linux x86_64",
	})
	if !xerrors.Is(err, xerrors.ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}

	_, err = env.svc.Login(context.Background(), &account.LoginRequest{
		TelegramUsername: "nobody",
		Password:         "secret123",
		UserAgent:        uaFirefox,
		Platform:         "Linux x86_64",
	})
	if !xerrors.Is(err, xerrors.ErrInvalidCredential) {
		t.Fatalf("unknown account err = %v, want ErrInvalidCredential", err)
	}
}

func TestLogin_DeviceLimitThenEviction(t *testing.T) {
	env := newTestEnv(t, quietConfig())

	first := registerDevice(t, env, "alice", uaChrome)
	accID := first.Account.ID

	if _, err := loginDevice(env, "alice", uaFirefox); err != nil {
		t.Fatalf("second device: %v", err)
	}

	// Third device hits the cap and gets the competing sessions back.
	_, err := loginDevice(env, "alice", uaSafari)
	limitErr, ok := session.AsDeviceLimit(err)
	if !ok {
		t.Fatalf("err = %v, want DeviceLimitError", err)
	}
	if len(limitErr.Active) != 2 {
		t.Fatalf("limit error carries %d sessions, want 2", len(limitErr.Active))
	}
	if got := len(env.store.ListActive(accID)); got != 2 {
		t.Fatalf("active after refused login = %d, want 2", got)
	}

	// User confirms eviction: everything else goes, the new device gets in.
	resp, err := env.svc.ResolveLimit(context.Background(), &account.LoginRequest{
		TelegramUsername: "alice",
		Password:         "secret123",
		UserAgent:        uaSafari,
		Platform:         "Linux x86_64",
	}, true)
	if err != nil {
		t.Fatalf("resolve limit: %v", err)
	}

	active := env.store.ListActive(accID)
	if len(active) != 1 {
		t.Fatalf("active after eviction = %d, want 1", len(active))
	}
	if string(active[0].DeviceID) != resp.DeviceID {
		t.Fatalf("surviving device = %s, want %s", active[0].DeviceID, resp.DeviceID)
	}
	if env.notifier.count() != 2 {
		t.Fatalf("force-logout pushes = %d, want 2", env.notifier.count())
	}
}

func TestResolveLimit_DeclinedIsTerminal(t *testing.T) {
	env := newTestEnv(t, quietConfig())
	registerDevice(t, env, "alice", uaChrome)

	_, err := env.svc.ResolveLimit(context.Background(), &account.LoginRequest{
		TelegramUsername: "alice",
		Password:         "secret123",
		UserAgent:        uaSafari,
		Platform:         "Linux x86_64",
	}, false)
	if !xerrors.Is(err, xerrors.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestLogout_Idempotent(t *testing.T) {
	env := newTestEnv(t, quietConfig())

	resp := registerDevice(t, env, "alice", uaChrome)
	accID := resp.Account.ID
	deviceID := fingerprint.ID(resp.DeviceID)

	if err := env.svc.Logout(context.Background(), accID, deviceID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if got := len(env.store.ListActive(accID)); got != 0 {
		t.Fatalf("active after logout = %d, want 0", got)
	}
	if env.svc.watchers.watching(deviceID) {
		t.Fatal("watcher still running after logout")
	}
	if _, err := env.states.Get(context.Background(), deviceID); !xerrors.Is(err, xerrors.ErrNotFound) {
		t.Fatalf("device state after logout: %v, want ErrNotFound", err)
	}

	// Second logout of the same device is a quiet no-op.
	if err := env.svc.Logout(context.Background(), accID, deviceID); err != nil {
		t.Fatalf("repeat logout: %v", err)
	}
}

func TestWatcher_ForcesLogoutOnExpiry(t *testing.T) {
	env := newTestEnv(t, Config{ValidateInterval: 10 * time.Millisecond, SyncInterval: time.Hour})

	resp := registerDevice(t, env, "alice", uaChrome)
	accID := resp.Account.ID
	deviceID := fingerprint.ID(resp.DeviceID)

	// Push the session past the inactivity window; the liveness tick should
	// pick it up and force the device out.
	env.clock.Advance(31 * time.Minute)

	waitFor(t, 2*time.Second, func() bool {
		return len(env.store.ListActive(accID)) == 0 && !env.svc.watchers.watching(deviceID)
	})

	if env.notifier.count() != 1 {
		t.Fatalf("force-logout pushes = %d, want 1", env.notifier.count())
	}
	if _, err := env.states.Get(context.Background(), deviceID); !xerrors.Is(err, xerrors.ErrNotFound) {
		t.Fatalf("device state after forced logout: %v, want ErrNotFound", err)
	}
}

func TestWatcher_TickIsNotClientActivity(t *testing.T) {
	env := newTestEnv(t, Config{ValidateInterval: 10 * time.Millisecond, SyncInterval: time.Hour})

	resp := registerDevice(t, env, "alice", uaChrome)
	accID := resp.Account.ID
	deviceID := fingerprint.ID(resp.DeviceID)

	// Cross the inactivity window in sub-timeout steps, letting liveness ticks
	// fire in between. The ticks must not refresh the session: a client that
	// went away silently still times out and frees its slot.
	for i := 0; i < 3; i++ {
		env.clock.Advance(20 * time.Minute)
		time.Sleep(50 * time.Millisecond)
	}

	waitFor(t, 2*time.Second, func() bool {
		return len(env.store.ListActive(accID)) == 0 && !env.svc.watchers.watching(deviceID)
	})

	if env.notifier.count() != 1 {
		t.Fatalf("force-logout pushes = %d, want 1", env.notifier.count())
	}
}

func TestReconcile_UpdatesSnapshotWithoutLogout(t *testing.T) {
	env := newTestEnv(t, Config{ValidateInterval: time.Hour, SyncInterval: 10 * time.Millisecond})

	resp := registerDevice(t, env, "alice", uaChrome)
	accID := resp.Account.ID
	deviceID := fingerprint.ID(resp.DeviceID)

	// A bot purchase lands out of band.
	if err := env.accounts.SetEntitlements(context.Background(), accID, []string{"go-basics"}, []string{"go-basics"}); err != nil {
		t.Fatalf("set entitlements: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		state, err := env.states.Get(context.Background(), deviceID)
		return err == nil && state.Account.HasPaidCourse("go-basics")
	})

	// Reconciliation never touches session liveness.
	if got := len(env.store.ListActive(accID)); got != 1 {
		t.Fatalf("active sessions = %d, want 1", got)
	}
	if env.notifier.count() != 0 {
		t.Fatalf("unexpected force-logout pushes: %d", env.notifier.count())
	}
}

func TestRestoreSession(t *testing.T) {
	env := newTestEnv(t, quietConfig())

	resp := registerDevice(t, env, "alice", uaChrome)
	accID := resp.Account.ID
	deviceID := fingerprint.ID(resp.DeviceID)

	state, err := env.svc.RestoreSession(context.Background(), accID, deviceID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if state.Account.ID != accID {
		t.Fatalf("restored account = %s, want %s", state.Account.ID, accID)
	}

	// An expired session must not restore, and its snapshot is dropped.
	env.clock.Advance(31 * time.Minute)
	if _, err := env.svc.RestoreSession(context.Background(), accID, deviceID); !xerrors.Is(err, session.ErrSessionExpired) {
		t.Fatalf("restore after expiry: %v, want ErrSessionExpired", err)
	}
	if _, err := env.states.Get(context.Background(), deviceID); !xerrors.Is(err, xerrors.ErrNotFound) {
		t.Fatalf("state after failed restore: %v, want ErrNotFound", err)
	}
}

func TestRestoreSession_RejectsForeignAccount(t *testing.T) {
	env := newTestEnv(t, quietConfig())

	alice := registerDevice(t, env, "alice", uaChrome)
	bob := registerDevice(t, env, "bob", uaFirefox)

	// Knowing a fingerprint is not enough: the snapshot only goes to the
	// account the caller authenticated as.
	_, err := env.svc.RestoreSession(context.Background(), bob.Account.ID, fingerprint.ID(alice.DeviceID))
	if !xerrors.Is(err, session.ErrInvalidSession) {
		t.Fatalf("foreign restore: %v, want ErrInvalidSession", err)
	}

	// Alice is untouched by the attempt.
	if got := len(env.store.ListActive(alice.Account.ID)); got != 1 {
		t.Fatalf("alice active sessions = %d, want 1", got)
	}
	if _, err := env.states.Get(context.Background(), fingerprint.ID(alice.DeviceID)); err != nil {
		t.Fatalf("alice device state: %v", err)
	}
}

func TestHasAccessToCourse(t *testing.T) {
	env := newTestEnv(t, quietConfig())

	resp := registerDevice(t, env, "alice", uaChrome)
	accID := resp.Account.ID

	ok, err := env.svc.HasAccessToCourse(context.Background(), accID, "go-basics")
	if err != nil || ok {
		t.Fatalf("access before purchase = %v, %v; want false, nil", ok, err)
	}

	if err := env.accounts.SetEntitlements(context.Background(), accID, []string{"go-basics"}, []string{"go-basics"}); err != nil {
		t.Fatalf("set entitlements: %v", err)
	}

	ok, err = env.svc.HasAccessToCourse(context.Background(), accID, "go-basics")
	if err != nil || !ok {
		t.Fatalf("access after purchase = %v, %v; want true, nil", ok, err)
	}
}

func TestTerminateOtherDevices(t *testing.T) {
	env := newTestEnv(t, quietConfig())

	first := registerDevice(t, env, "alice", uaChrome)
	accID := first.Account.ID

	second, err := loginDevice(env, "alice", uaFirefox)
	if err != nil {
		t.Fatalf("second device: %v", err)
	}

	if got := env.svc.TerminateOtherDevices(context.Background(), accID, fingerprint.ID(second.DeviceID)); got != 1 {
		t.Fatalf("terminated = %d, want 1", got)
	}

	active := env.store.ListActive(accID)
	if len(active) != 1 || string(active[0].DeviceID) != second.DeviceID {
		t.Fatalf("surviving sessions = %v, want only %s", active, second.DeviceID)
	}
	if env.notifier.count() != 1 {
		t.Fatalf("force-logout pushes = %d, want 1", env.notifier.count())
	}
}
