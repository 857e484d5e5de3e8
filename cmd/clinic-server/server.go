package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/httputil"
	"github.com/clinic/clinic/internal/platform/lock"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/notification"
	"github.com/clinic/clinic/internal/platform/websocket"
)

const version = "0.1.0"

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.JWTSecret),
		Skipper:    auth.AuthSkipper,
	}
}

// newLocker builds the booking lock for the configured backend. The returned
// redis client, if any, is owned by the caller.
func newLocker(cfg *config.Config, pool *pgxpool.Pool) (lock.Locker, *redis.Client, error) {
	switch cfg.LockBackend {
	case config.LockBackendLocal:
		return lock.NewLocal(), nil, nil
	case config.LockBackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		return lock.NewRedis(client, cfg.LockTTL), client, nil
	case config.LockBackendPostgres:
		return lock.NewPostgres(pool), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}
}

// newEcho configures the server and its global middleware chain.
func newEcho(cfg *config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = httputil.JSONSerializer{}
	e.Validator = httputil.NewValidator()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(echomw.BodyLimit("1M"))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtConfig(cfg)))
	} else {
		e.Use(auth.JWTMiddleware(jwtConfig(cfg)))
	}
	return e
}

// app holds the wired services the routes are served from.
type app struct {
	doctors       *doctor.Service
	scheduling    *scheduling.Service
	notifications notification.Store
	live          *websocket.Hub
}

func registerRoutes(e *echo.Echo, cfg *config.Config, a app, health echo.HandlerFunc) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", health)

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	doctor.NewHandler(a.doctors).RegisterRoutes(apiV1)
	scheduling.NewHandler(a.scheduling).RegisterRoutes(apiV1)
	notification.NewHandler(a.notifications).RegisterRoutes(apiV1)
	if a.live != nil {
		websocket.NewHandler(a.live, cfg.CORSOrigins).RegisterRoutes(apiV1)
	}
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.IsDev() {
		logger.Warn().Msg("running in development mode: requests without a token are treated as admin")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Booking lock
	locker, redisClient, err := newLocker(cfg, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure booking lock")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	if err := locker.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Str("backend", locker.Backend()).Msg("booking lock backend unreachable")
	}
	logger.Info().Str("backend", locker.Backend()).Msg("booking lock ready")

	deps := []db.Dependency{{Name: "lock:" + locker.Backend(), Ping: locker.Ping}}

	// Notifications
	store := notification.NewStorePG(pool)
	live := websocket.NewHub(logger)
	dispatcherOpts := []notification.DispatcherOption{
		notification.WithWorkers(cfg.NotifyWorkers),
		notification.WithQueueSize(cfg.NotifyQueueSize),
		notification.WithPublisher(live),
	}
	if cfg.AMQPURL != "" {
		publisher, err := notification.NewAMQPPublisher(cfg.AMQPURL, cfg.NotifyExchange)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to message broker")
		}
		defer publisher.Close()
		dispatcherOpts = append(dispatcherOpts, notification.WithPublisher(publisher))
		deps = append(deps, db.Dependency{Name: "amqp", Ping: publisher.Ping})
		logger.Info().Str("exchange", cfg.NotifyExchange).Msg("notification fan-out enabled")
	}
	dispatcher := notification.NewDispatcher(store, notification.NewTemplateEngine(), logger, dispatcherOpts...)
	dispatcher.Start()

	// Domain services
	doctorSvc := doctor.NewService(doctor.NewRepoPG(pool), logger)
	appointments := scheduling.NewAppointmentRepoPG(pool)
	schedulingSvc := scheduling.NewService(appointments, doctorSvc, locker, dispatcher, logger)

	// Reminder job
	jobCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	reminders := scheduling.NewReminderJob(appointments, dispatcher, cfg.ReminderInterval, logger)
	jobDone := make(chan struct{})
	go func() {
		defer close(jobDone)
		reminders.Run(jobCtx)
	}()

	e := newEcho(cfg, logger)
	registerRoutes(e, cfg, app{
		doctors:       doctorSvc,
		scheduling:    schedulingSvc,
		notifications: store,
		live:          live,
	}, db.HealthHandler(pool, deps...))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	stopJobs()
	<-jobDone
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("notification queue not drained")
	}
	logger.Info().Msg("server stopped")
	return nil
}
