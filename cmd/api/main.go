// Package main is the entrypoint for the Noor API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/noorapp/noor/internal/auth"
	"github.com/noorapp/noor/internal/cache"
	"github.com/noorapp/noor/internal/config"
	"github.com/noorapp/noor/internal/content"
	"github.com/noorapp/noor/internal/dhikr"
	"github.com/noorapp/noor/internal/handler"
	"github.com/noorapp/noor/internal/metrics"
	"github.com/noorapp/noor/internal/middleware"
	"github.com/noorapp/noor/internal/notify"
	"github.com/noorapp/noor/internal/prayer"
	"github.com/noorapp/noor/internal/push"
	"github.com/noorapp/noor/internal/repository"
	"github.com/noorapp/noor/internal/security"
	"github.com/noorapp/noor/internal/server"
)

func main() {
	ctx := context.Background()

	// Load .env if present; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if cfg.RunMigrations {
		if err := repository.Migrate(cfg.DatabaseURL, cfg.MigrationsDir, logger); err != nil {
			logger.Error("failed to run migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			os.Exit(1)
		}
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.AdminSessionTTL)
	if err != nil {
		logger.Error("failed to create token manager", "error", err)
		os.Exit(1)
	}

	recorder := metrics.NewInMemory()

	// Prayer times: upstream API with the offline calculator as fallback,
	// cached in Redis either way.
	provider := newPrayerProvider(cfg, logger)
	provider = prayer.NewCachedProvider(provider, cacheClient, cfg.PrayerCacheTTL, logger)

	var sender push.Sender
	if cfg.PushGatewayURL != "" {
		sender = push.NewGatewayClient(cfg.PushGatewayURL, cfg.PushGatewaySecret, cfg.PushRatePerSecond)
	} else {
		logger.Warn("PUSH_GATEWAY_URL not set, push notifications are logged only")
		sender = push.NewLogSender(logger)
	}
	pushService := push.NewService(repo, sender, logger, recorder)
	pushService.SetMaxAttempts(cfg.PushMaxAttempts)

	dispatcher := notify.NewDispatcher(repo, provider, pushService, cfg.NotifyWindow, logger, recorder)
	publisher := content.NewPublisher(repo, pushService, logger, recorder)

	securityService := security.NewService(repo, cacheClient, tokens, security.Options{
		AdminEmail:        cfg.AdminEmail,
		MaxFailedAttempts: cfg.AdminMaxFailedAttempts,
		LockoutDuration:   cfg.AdminLockoutDuration,
		HistorySize:       cfg.AdminPasscodeHistory,
	}, logger, recorder)
	if err := securityService.Init(ctx); err != nil {
		logger.Error("failed to initialize admin security", "error", err)
		os.Exit(1)
	}

	validator := middleware.NewValidator()

	handlers := routeHandlers{
		base:       handler.New(),
		health:     handler.NewHealthHandler(repo, cacheClient, logger),
		metrics:    handler.NewMetricsHandler(recorder),
		prayer:     handler.NewPrayerHandler(provider, logger),
		dhikr:      handler.NewDhikrHandler(dhikr.NewCounter(cacheClient), validator, logger),
		preference: handler.NewPreferenceHandler(repo, validator, logger),
		device:     handler.NewDeviceHandler(repo, validator, logger),
		security:   handler.NewSecurityHandler(securityService, logger),
		admin:      handler.NewAdminHandler(repo, pushService, validator, logger),
		internal:   handler.NewInternalHandler(dispatcher, publisher, pushService, logger),
	}

	r := setupRouter(handlers, repo, cacheClient, tokens, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	if cfg.WorkersEnabled {
		pushWorker := push.NewWorker(pushService, logger)
		pushWorker.SetPollInterval(cfg.PushPollInterval)

		srv.Go("prayer-dispatch", notify.NewWorker(dispatcher, cfg.DispatchInterval, logger).Run)
		srv.Go("content-publish", content.NewWorker(publisher, cfg.PublishInterval, logger).Run)
		srv.Go("push-retry", pushWorker.Run)
	} else {
		logger.Info("background workers disabled")
	}

	// Hooks run LIFO: Redis closes before Postgres.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"prayer_provider", cfg.PrayerProvider,
		"workers", cfg.WorkersEnabled,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newPrayerProvider builds the uncached prayer-time provider chain.
func newPrayerProvider(cfg *config.Config, logger *slog.Logger) prayer.Provider {
	calculator := prayer.NewCalculator()
	if cfg.PrayerProvider == config.ProviderLocal {
		return calculator
	}

	aladhan := prayer.NewAladhanClient(cfg.AladhanBaseURL, prayer.NewHTTPClient(cfg.AladhanTimeout))
	if cfg.PrayerFallbackOff {
		return aladhan
	}
	return &prayer.FallbackProvider{
		Primary:   aladhan,
		Secondary: calculator,
		Logger:    logger.With("component", "prayer_provider"),
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routeHandlers struct {
	base       *handler.Handler
	health     *handler.HealthHandler
	metrics    *handler.MetricsHandler
	prayer     *handler.PrayerHandler
	dhikr      *handler.DhikrHandler
	preference *handler.PreferenceHandler
	device     *handler.DeviceHandler
	security   *handler.SecurityHandler
	admin      *handler.AdminHandler
	internal   *handler.InternalHandler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h routeHandlers,
	repo *repository.Repository,
	cacheClient *cache.Cache,
	tokens *auth.TokenManager,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	r.Get("/metrics", h.metrics.Metrics)

	sessionCfg := middleware.SessionAuthConfig{
		Logger: logger,
		Tokens: tokens,
		Epochs: cacheClient,
	}
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:            logger,
		Limiter:           cacheClient,
		ServiceKeyEnabled: cfg.RateLimitAPIEnabled,
		PublicEnabled:     cfg.RateLimitPublicEnabled,
		PublicRPS:         cfg.RateLimitPublicRPS,
		PublicBurst:       cfg.RateLimitPublicBurst,
		UnlockPerMinute:   cfg.RateLimitUnlockPerMin,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitIP(rateLimitCfg))

		r.Get("/prayer-times", h.prayer.PrayerTimes)
		r.Get("/qibla", h.prayer.Qibla)

		r.Route("/dhikr", func(r chi.Router) {
			r.Get("/", h.dhikr.Catalog)
			r.Get("/{deviceID}", h.dhikr.Get)
			r.Post("/{deviceID}/tap", h.dhikr.Tap)
			r.Post("/{deviceID}/reset", h.dhikr.Reset)
			r.Post("/{deviceID}/select", h.dhikr.Select)
		})

		r.With(middleware.OptionalSession(sessionCfg)).Route("/preferences", func(r chi.Router) {
			r.Get("/{deviceID}", h.preference.Get)
			r.Put("/{deviceID}", h.preference.Put)
		})

		r.Route("/devices/{deviceID}/tokens", func(r chi.Router) {
			r.Post("/", h.device.RegisterToken)
			r.Delete("/", h.device.UnregisterToken)
		})

		r.Route("/admin", func(r chi.Router) {
			// The unlock endpoint is reachable without a session.
			r.With(
				middleware.RateLimitUnlock(rateLimitCfg),
				middleware.OptionalSession(sessionCfg),
			).Post("/security", h.security.Handle)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSession(sessionCfg))
				r.Use(middleware.RequireAdmin())
				r.Post("/notifications", h.admin.CreateNotification)
				r.Get("/push-tokens/stats", h.admin.TokenStats)
			})
		})
	})

	// Scheduler triggers, authenticated with service keys.
	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.ServiceKeyAuth(middleware.ServiceKeyAuthConfig{
			Logger: logger,
			Keys:   repo,
			Cache:  cacheClient,
		}))
		r.Use(middleware.RateLimitServiceKey(rateLimitCfg))

		r.With(middleware.RequireDispatch()).Post("/prayer-notifications/dispatch", h.internal.DispatchPrayerNotifications)
		r.With(middleware.RequirePublish()).Post("/content/publish", h.internal.PublishContent)
		r.With(middleware.RequirePush()).Post("/push/{notificationID}", h.internal.SendPush)
	})

	r.NotFound(h.base.NotFound)
	r.MethodNotAllowed(h.base.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
