// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"saot-service/internal/config"
	"saot-service/internal/db"
	"saot-service/internal/domain/account"
	authHandler "saot-service/internal/handlers/auth"
	paymentHandler "saot-service/internal/handlers/payment"
	telegramHandler "saot-service/internal/handlers/telegram"
	wsHandler "saot-service/internal/handlers/websocket"
	"saot-service/internal/middleware"
	xerrors "saot-service/internal/pkg/errors"
	"saot-service/internal/pkg/clock"
	"saot-service/internal/pkg/jwt"
	"saot-service/internal/pkg/session"
	"saot-service/internal/pkg/statecache"
	"saot-service/internal/repository/memory"
	"saot-service/internal/repository/postgres"
	authUsecase "saot-service/internal/service/auth"
	paymentUsecase "saot-service/internal/service/payment"
	telegramUsecase "saot-service/internal/service/telegram"
	"saot-service/internal/websocket"

	"github.com/oklog/ulid/v2"
)

type Server struct {
	cfg         config.AppConfig
	engine      *gin.Engine
	logger      *zap.Logger
	httpServer  *http.Server
	authService *authUsecase.AuthService

	pool    *pgxpool.Pool
	cancels []context.CancelFunc
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	s.logger = logger

	clk := clock.SystemClock{}

	// ----- Account store -----
	var accounts account.Store
	if s.cfg.DatabaseURL != "" {
		pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		s.pool = pool
		accounts = postgres.NewAccountRepository(pool)
		logger.Info("using postgres account store")
	} else {
		accounts = memory.NewAccountRepository()
		logger.Warn("DATABASE_URL not set, using in-memory account store")
	}

	// ----- Redis: device state cache + login rate limiter -----
	var states statecache.Cache
	var rateLimiter *session.RateLimiter
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		PoolSize: 10,
	})
	if err != nil {
		logger.Warn("redis unavailable, device state will not survive restarts", zap.Error(err))
		states = statecache.NewMemoryCache()
	} else {
		states = statecache.NewRedisCache(redisClient, s.cfg.DeviceStateTTL)
		rateLimiter = session.NewRateLimiter(redisClient)
	}

	// ----- Session core -----
	sessCfg := session.Config{
		MaxDevicesPerUser: s.cfg.MaxDevicesPerUser,
		SessionTimeout:    s.cfg.SessionTimeout,
	}
	store := session.NewStore(sessCfg, clk)
	admission := session.NewAdmission(store, sessCfg, clk)
	validator := session.NewValidator(store, sessCfg, clk)

	cleanupCtx, cancelCleanup := context.WithCancel(ctx)
	s.cancels = append(s.cancels, cancelCleanup)
	go s.runCleanup(cleanupCtx, store)

	// ----- JWT -----
	if s.cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	jwtManager, err := jwt.NewManager([]byte(s.cfg.JWTSecret), s.cfg.JWTIssuer, s.cfg.JWTTTL)
	if err != nil {
		return fmt.Errorf("failed to build JWT manager: %w", err)
	}

	// ----- WebSocket hub -----
	hub := websocket.NewHub(logger)
	hubCtx, cancelHub := context.WithCancel(ctx)
	s.cancels = append(s.cancels, cancelHub)
	go hub.Run(hubCtx)

	// ----- Services -----
	authService := authUsecase.NewAuthService(
		accounts,
		store,
		admission,
		validator,
		jwtManager,
		states,
		rateLimiter,
		hub,
		clk,
		authUsecase.Config{
			ValidateInterval: s.cfg.ValidateInterval,
			SyncInterval:     s.cfg.SyncInterval,
		},
		logger,
	)
	s.authService = authService

	paymentService := paymentUsecase.NewService(
		paymentUsecase.NewTelegramProvider(s.cfg.TelegramBotUsername),
		logger,
	)
	paymentService.Register(paymentUsecase.NewMockProvider())

	botService := telegramUsecase.NewService(accounts, s.cfg.TelegramBotToken, logger)

	// ----- Bootstrap admin -----
	if err := s.ensureAdmin(ctx, accounts); err != nil {
		logger.Error("failed to ensure admin account", zap.Error(err))
	}

	// ----- Handlers -----
	authHandlerInst := authHandler.NewAuthHandler(authService, logger)
	paymentHandlerInst := paymentHandler.NewPaymentHandler(paymentService, logger)
	telegramHandlerInst := telegramHandler.NewTelegramHandler(botService, logger)
	wsHandlerInst := wsHandler.NewWebSocketHandler(hub, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(authService)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	SetupRouter(s.engine, &Handlers{
		AuthHandler:     authHandlerInst,
		PaymentHandler:  paymentHandlerInst,
		TelegramHandler: telegramHandlerInst,
		WSHandler:       wsHandlerInst,
		AuthMiddleware:  authMiddleware,
	})

	s.httpServer = &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	logger.Info("server listening", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP listener, the watchers and the background loops,
// then releases the connection pools.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.authService != nil {
		s.authService.Shutdown()
	}
	for _, cancel := range s.cancels {
		cancel()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.logger != nil {
		s.logger.Sync()
	}
	return err
}

// runCleanup periodically flips expired sessions to inactive so stats and
// metrics stay honest. Admission does not depend on it.
func (s *Server) runCleanup(ctx context.Context, store *session.Store) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.CleanupExpired()
		}
	}
}

// ensureAdmin creates the admin account on first boot.
func (s *Server) ensureAdmin(ctx context.Context, accounts account.Store) error {
	if s.cfg.AdminPassword == "" {
		s.logger.Warn("ADMIN_PASSWORD not set, skipping admin bootstrap")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := accounts.FindByIdentifier(ctx, s.cfg.AdminEmail); err == nil {
		return nil
	} else if !xerrors.Is(err, xerrors.ErrNotFound) {
		return fmt.Errorf("admin lookup: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(s.cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &account.Account{
		ID:              ulid.Make().String(),
		Name:            s.cfg.AdminName,
		Email:           s.cfg.AdminEmail,
		PasswordHash:    string(hashed),
		Role:            account.RoleAdmin,
		EnrolledCourses: []string{},
		PaidCourses:     []string{},
		Progress:        map[string]int{},
	}
	if err := accounts.Create(ctx, admin); err != nil {
		if xerrors.Is(err, xerrors.ErrDuplicateAccount) {
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}

	s.logger.Info("admin account created", zap.String("email", s.cfg.AdminEmail))
	return nil
}
