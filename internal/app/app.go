package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ticketdesk/auth-service/internal/config"
	"github.com/ticketdesk/auth-service/internal/database"
	"github.com/ticketdesk/auth-service/internal/health"
	"github.com/ticketdesk/auth-service/internal/http/handler"
	"github.com/ticketdesk/auth-service/internal/http/middleware"
	"github.com/ticketdesk/auth-service/internal/http/router"
	"github.com/ticketdesk/auth-service/internal/mail"
	"github.com/ticketdesk/auth-service/internal/observability"
	"github.com/ticketdesk/auth-service/internal/repository"
	"github.com/ticketdesk/auth-service/internal/security"
	"github.com/ticketdesk/auth-service/internal/service"
)

// App holds the assembled service: configuration, wired dependencies and the
// HTTP server ready to listen.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime

	redis *redis.Client
}

// New wires the whole dependency graph by hand: config, observability,
// database, redis, repositories, services, handlers, router.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, loggerProvider, err := observability.InitLogging(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	runtime, err := observability.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}
	runtime.LoggerProvider = loggerProvider

	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup, continuing", "addr", cfg.RedisAddr, "error", err)
		}
	}

	users := repository.NewUserRepository(db)
	tokens := repository.NewRefreshTokenRepository(db)
	sessions := repository.NewSessionRepository(db)
	resets := repository.NewPasswordResetRepository(db)
	audits := repository.NewAuditRepository(db)

	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	codec := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret, cfg.JWTRefreshSecret)

	tokenSvc := service.NewTokenService(codec, tokens, users, cfg.TokenPepper, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	sessionSvc := service.NewSessionService(sessions, cfg.SessionTTL, cfg.MaxSessionsPerUser)
	lockout := service.NewLockoutGuard(users, cfg.MaxFailedLoginAttempts, cfg.LockoutDuration)
	auditSvc := service.NewAuditService(audits, logger)
	mailer := mail.NewLogMailer(cfg.EmailFrom, logger)

	authSvc := service.NewAuthService(
		users, resets, hasher, tokenSvc, sessionSvc, lockout, auditSvc,
		mailer, logger, cfg.TokenPepper, cfg.PasswordResetTTL, cfg.EmailTimeout,
	)

	checkers := []health.Checker{health.DatabaseChecker(db)}
	var limiterBackend middleware.Limiter
	var idempotency *middleware.IdempotencyStore
	if redisClient != nil {
		checkers = append(checkers, health.RedisChecker(redisClient))
		limiterBackend = middleware.NewRedisFixedWindowLimiter(redisClient)
		idempotency = middleware.NewIdempotencyStore(redisClient, 24*time.Hour)
	}

	h := router.NewRouter(router.Dependencies{
		AuthHandler:        handler.NewAuthHandler(authSvc),
		SessionHandler:     handler.NewSessionHandler(authSvc),
		Verifier:           authSvc,
		CORSOrigins:        cfg.CORSOrigins,
		APIRateLimitRPM:    cfg.APIRateLimitRPM,
		AuthRateLimitRPM:   cfg.AuthRateLimitRPM,
		ForgotRateLimitRPM: cfg.ForgotRateLimitRPM,
		RateLimitBackend:   limiterBackend,
		Idempotency:        idempotency,
		Readiness:          health.NewProbeRunner(2*time.Second, 5*time.Second, checkers...),
		EnableOTelHTTP:     cfg.EnableOTelHTTP,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		Observability: runtime,
		redis:         redisClient,
	}, nil
}

// Shutdown drains the HTTP server and closes the remaining resources.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn("close redis client", "error", err)
		}
	}
	return a.Observability.Shutdown(ctx)
}
