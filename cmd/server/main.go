package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/redis/go-redis/v9"

	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/contentfilter"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/notify"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/repository"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" && cfg.IsProduction() {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// Warn and above also go to system_logs
	dbLogHandler := logging.NewDBHandler(database.DB, cfg.LogDBLevel)
	logging.AttachDB(dbLogHandler)

	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetentionDays, cleanupDone)

	// Redis is optional: without it notifications stay in-app only and
	// verification codes are disabled.
	var rdb *redis.Client
	if client, err := database.ConnectRedis(cfg); err != nil {
		slog.Warn("redis unavailable, continuing without it", "error", err)
	} else {
		rdb = client
	}

	metrics.Init()

	// Notifications
	var notifier notify.Dispatcher = notify.NewDBDispatcher(database.DB)
	if rdb != nil {
		notifier = notify.Multi{notifier, notify.NewRedisDispatcher(rdb)}
	}

	// Services
	filter := contentfilter.New(cfg.LinkAllowList()...)
	connRepo := repository.NewConnectionRepository(database.DB)
	profileService := services.NewProfileService(database.DB)
	moderationService := services.NewModerationService(database.DB)
	connectionService := services.NewConnectionService(connRepo, profileService, moderationService, filter, notifier)
	gate := services.NewMessageGate(connRepo, moderationService)
	messageService := services.NewMessageService(
		repository.NewMessageRepository(database.DB), gate, filter, profileService, cfg.MessageMaxLength,
	)

	// Handlers
	h := routes.Handlers{
		Health:      handlers.NewHealthHandler(database.DB, rdb),
		Connections: handlers.NewConnectionHandler(connectionService),
		Messages:    handlers.NewMessageHandler(messageService, gate),
		Blocks:      handlers.NewBlockHandler(moderationService),
	}
	if rdb != nil {
		// Codes go to the SMS/email workers over pub/sub, never to the in-app inbox.
		verificationService := services.NewVerificationService(rdb, notify.NewRedisDispatcher(rdb), profileService, services.VerificationConfig{
			CodeTTL:        cfg.VerificationCodeTTL,
			ResendCooldown: cfg.VerificationResendCooldown,
			MaxAttempts:    cfg.VerificationMaxAttempts,
		})
		h.Verification = handlers.NewVerificationHandler(verificationService)
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.Middleware())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, h)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(cleanupDone)
	dbLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
