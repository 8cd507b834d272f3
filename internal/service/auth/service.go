// internal/service/auth/service.go
package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"saot-service/internal/domain/account"
	xerrors "saot-service/internal/pkg/errors"
	"saot-service/internal/pkg/clock"
	"saot-service/internal/pkg/fingerprint"
	"saot-service/internal/pkg/jwt"
	"saot-service/internal/pkg/session"
	"saot-service/internal/pkg/statecache"
)

// Notifier pushes server-initiated events to connected devices. Implemented
// by the websocket hub; nil disables pushes.
type Notifier interface {
	ForceLogout(accountID string, deviceID fingerprint.ID, reason string)
}

// Config carries the orchestrator's timer intervals.
type Config struct {
	ValidateInterval time.Duration
	SyncInterval     time.Duration
}

func DefaultServiceConfig() Config {
	return Config{
		ValidateInterval: 30 * time.Second,
		SyncInterval:     2 * time.Minute,
	}
}

type AuthService struct {
	accounts    account.Store
	store       *session.Store
	admission   *session.Admission
	validator   *session.Validator
	jwtManager  *jwt.Manager
	states      statecache.Cache
	rateLimiter *session.RateLimiter
	notifier    Notifier
	clock       clock.Clock
	cfg         Config
	logger      *zap.Logger

	watchers *watcherSet
}

func NewAuthService(
	accounts account.Store,
	store *session.Store,
	admission *session.Admission,
	validator *session.Validator,
	jwtManager *jwt.Manager,
	states statecache.Cache,
	rateLimiter *session.RateLimiter,
	notifier Notifier,
	clk clock.Clock,
	cfg Config,
	logger *zap.Logger,
) *AuthService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if cfg.ValidateInterval <= 0 {
		cfg.ValidateInterval = 30 * time.Second
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 2 * time.Minute
	}
	return &AuthService{
		accounts:    accounts,
		store:       store,
		admission:   admission,
		validator:   validator,
		jwtManager:  jwtManager,
		states:      states,
		rateLimiter: rateLimiter,
		notifier:    notifier,
		clock:       clk,
		cfg:         cfg,
		logger:      logger,
		watchers:    newWatcherSet(),
	}
}

// ========== Registration ==========

// Register creates a new account and admits the registering device.
// A duplicate identifier creates neither an account nor a session.
func (s *AuthService) Register(ctx context.Context, req *account.RegisterRequest) (*account.LoginResponse, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	acc := &account.Account{
		ID:               ulid.Make().String(),
		Name:             req.Name,
		TelegramUsername: req.TelegramUsername,
		PasswordHash:     string(hashed),
		Role:             account.RoleUser,
		EnrolledCourses:  []string{},
		PaidCourses:      []string{},
		Progress:         map[string]int{},
	}

	if err := s.accounts.Create(ctx, acc); err != nil {
		return nil, err
	}

	return s.admitDevice(ctx, acc, req.UserAgent, req.Platform, req.IPAddress)
}

// ========== Login ==========

// Login authenticates credentials and admits the device. When the account
// already has the maximum number of active devices, the returned error is a
// *session.DeviceLimitError carrying the competing sessions; the caller
// decides whether to evict via ResolveLimit.
func (s *AuthService) Login(ctx context.Context, req *account.LoginRequest) (*account.LoginResponse, error) {
	if s.rateLimiter != nil && req.IPAddress != "" {
		allowed, _, err := s.rateLimiter.CheckLoginAttempt(ctx, req.IPAddress, req.TelegramUsername)
		if err != nil {
			s.logger.Error("rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			return nil, xerrors.ErrRateLimited
		}
	}

	acc, err := s.authenticate(ctx, req.TelegramUsername, req.Password)
	if err != nil {
		return nil, err
	}

	resp, err := s.admitDevice(ctx, acc, req.UserAgent, req.Platform, req.IPAddress)
	if err != nil {
		return nil, err
	}

	if s.rateLimiter != nil && req.IPAddress != "" {
		if err := s.rateLimiter.ResetLoginAttempts(ctx, req.IPAddress, req.TelegramUsername); err != nil {
			s.logger.Error("failed to reset login attempts", zap.Error(err))
		}
	}
	return resp, nil
}

// ResolveLimit re-runs a login that previously hit the device cap. With
// evictAll the competing sessions are deactivated first and admission is
// retried exactly once; a second limit failure is terminal.
func (s *AuthService) ResolveLimit(ctx context.Context, req *account.LoginRequest, evictAll bool) (*account.LoginResponse, error) {
	if !evictAll {
		return nil, xerrors.ErrForbidden
	}

	acc, err := s.authenticate(ctx, req.TelegramUsername, req.Password)
	if err != nil {
		return nil, err
	}

	// The new device holds no session yet, so nothing survives.
	s.store.DeactivateAllExcept(acc.ID, "")

	for _, old := range s.watchers.activeFor(acc.ID) {
		s.forceLogout(ctx, acc.ID, old, "signed in on another device")
	}

	return s.admitDevice(ctx, acc, req.UserAgent, req.Platform, req.IPAddress)
}

func (s *AuthService) authenticate(ctx context.Context, identifier, password string) (*account.Account, error) {
	acc, err := s.accounts.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, xerrors.ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, xerrors.ErrInvalidCredential
	}
	return acc, nil
}

// admitDevice is the shared tail of Register, Login and ResolveLimit:
// fingerprint the device, admit it, issue a token, persist the device
// state and start its watchers.
func (s *AuthService) admitDevice(ctx context.Context, acc *account.Account, userAgent, platform, ip string) (*account.LoginResponse, error) {
	deviceID := fingerprint.Generate(userAgent, platform, s.clock.Now())

	info := session.DeviceInfo{
		UserAgent: userAgent,
		Platform:  platform,
		Browser:   fingerprint.BrowserFamily(userAgent),
		IPAddress: ip,
	}

	sess, err := s.admission.Admit(acc.ID, deviceID, info)
	if err != nil {
		return nil, err
	}

	accessToken, _, err := s.jwtManager.Generate(acc.ID, deviceID, acc.Role)
	if err != nil {
		s.store.Deactivate(acc.ID, deviceID)
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	state := &statecache.DeviceState{
		DeviceID:  deviceID,
		Account:   acc,
		SavedAt:   s.clock.Now(),
		UpdatedAt: s.clock.Now(),
	}
	if err := s.states.Put(ctx, state); err != nil {
		// The session is live either way; the device just cannot restore
		// without re-authenticating.
		s.logger.Error("failed to persist device state", zap.Error(err), zap.String("device_id", string(deviceID)))
	}

	s.startWatchers(acc.ID, deviceID)

	return &account.LoginResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.jwtManager.TTL().Seconds()),
		DeviceID:    string(deviceID),
		Account:     acc,
		Session:     sess,
		Active:      s.store.ListActive(acc.ID),
	}, nil
}

// ========== Logout ==========

// Logout deactivates the device session and clears its cached state.
// Idempotent: logging out an unknown device is a no-op.
func (s *AuthService) Logout(ctx context.Context, accountID string, deviceID fingerprint.ID) error {
	s.watchers.cancel(deviceID)
	s.store.Deactivate(accountID, deviceID)
	if err := s.states.Clear(ctx, deviceID); err != nil {
		s.logger.Error("failed to clear device state", zap.Error(err), zap.String("device_id", string(deviceID)))
	}
	return nil
}

// forceLogout is the server-initiated variant used when a watcher detects a
// dead session or an eviction removes the device.
func (s *AuthService) forceLogout(ctx context.Context, accountID string, deviceID fingerprint.ID, reason string) {
	s.watchers.cancel(deviceID)
	s.store.Deactivate(accountID, deviceID)
	if err := s.states.Clear(ctx, deviceID); err != nil {
		s.logger.Error("failed to clear device state", zap.Error(err), zap.String("device_id", string(deviceID)))
	}
	if s.notifier != nil {
		s.notifier.ForceLogout(accountID, deviceID, reason)
	}
	s.logger.Info("device logged out",
		zap.String("account_id", accountID),
		zap.String("device_id", string(deviceID)),
		zap.String("reason", reason),
	)
}

// ========== Session queries ==========

// VerifyToken parses and validates an access token.
func (s *AuthService) VerifyToken(token string) (*jwt.Claims, error) {
	return s.jwtManager.Verify(token)
}

// ValidateSession checks liveness for the device and refreshes its activity.
// Called by the auth middleware on every protected request.
func (s *AuthService) ValidateSession(accountID string, deviceID fingerprint.ID) error {
	return s.validator.Validate(accountID, deviceID)
}

func (s *AuthService) GetActiveSessions(accountID string) []*session.DeviceSession {
	return s.store.ListActive(accountID)
}

// TerminateOtherDevices logs out every device except the calling one and
// reports how many were terminated.
func (s *AuthService) TerminateOtherDevices(ctx context.Context, accountID string, keep fingerprint.ID) int {
	terminated := 0
	for _, other := range s.store.ListActive(accountID) {
		if other.DeviceID == keep {
			continue
		}
		s.forceLogout(ctx, accountID, other.DeviceID, "terminated from another device")
		terminated++
	}
	return terminated
}

// RestoreSession resumes a device from its cached state after a restart.
// The snapshot is only trusted if its session still validates.
func (s *AuthService) RestoreSession(ctx context.Context, accountID string, deviceID fingerprint.ID) (*statecache.DeviceState, error) {
	state, err := s.states.Get(ctx, deviceID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, session.ErrInvalidSession
		}
		return nil, fmt.Errorf("failed to load device state: %w", err)
	}

	// The fingerprint is a correlation hint, never a credential: the snapshot
	// is only handed to the account the caller's token proves.
	if state.Account == nil || state.Account.ID != accountID {
		return nil, session.ErrInvalidSession
	}

	if err := s.validator.Validate(state.Account.ID, deviceID); err != nil {
		if clearErr := s.states.Clear(ctx, deviceID); clearErr != nil {
			s.logger.Error("failed to clear stale device state", zap.Error(clearErr))
		}
		return nil, err
	}

	s.startWatchers(state.Account.ID, deviceID)
	return state, nil
}

// ========== Profile & access ==========

func (s *AuthService) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	return s.accounts.FindByID(ctx, accountID)
}

func (s *AuthService) UpdateProfile(ctx context.Context, accountID string, req *account.UpdateProfileRequest) (*account.Account, error) {
	acc, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		acc.Name = req.Name
	}
	if req.AvatarURL != "" {
		acc.AvatarURL = sql.NullString{String: req.AvatarURL, Valid: true}
	}
	if req.Phone != "" {
		acc.Phone = sql.NullString{String: req.Phone, Valid: true}
	}
	if req.Bio != "" {
		acc.Bio = sql.NullString{String: req.Bio, Valid: true}
	}
	if req.Location != "" {
		acc.Location = sql.NullString{String: req.Location, Valid: true}
	}

	if err := s.accounts.Update(ctx, acc); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return acc, nil
}

// HasAccessToCourse reports whether the account may open the course.
// Admins see everything; everyone else needs a paid entitlement.
func (s *AuthService) HasAccessToCourse(ctx context.Context, accountID, courseID string) (bool, error) {
	acc, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return false, err
	}
	if acc.Role == account.RoleAdmin {
		return true, nil
	}
	return acc.HasPaidCourse(courseID), nil
}

// SessionStats exposes aggregate session counts for the admin surface.
func (s *AuthService) SessionStats() session.Stats {
	return s.store.Stats()
}

// Shutdown cancels every running watcher. Sessions and cached state are
// left untouched so devices can restore after a restart.
func (s *AuthService) Shutdown() {
	s.watchers.cancelAll()
}
