package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/contesthub/contesthub-gobackend/internal/config"
	"github.com/contesthub/contesthub-gobackend/internal/db"
	"github.com/contesthub/contesthub-gobackend/internal/gateway"
	"github.com/contesthub/contesthub-gobackend/internal/handlers"
	"github.com/contesthub/contesthub-gobackend/internal/identity"
	"github.com/contesthub/contesthub-gobackend/internal/lock"
	"github.com/contesthub/contesthub-gobackend/internal/logging"
	"github.com/contesthub/contesthub-gobackend/internal/metrics"
	"github.com/contesthub/contesthub-gobackend/internal/middleware"
	"github.com/contesthub/contesthub-gobackend/internal/services"
	"github.com/contesthub/contesthub-gobackend/internal/store"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	logger := logging.New(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// MongoDB
	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		logger.Error("failed to connect to mongodb", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Disconnect(client); err != nil {
			logger.Error("error disconnecting from mongodb", "error", err)
		}
	}()

	database := client.Database(cfg.DBName)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		logger.Error("failed to ensure indexes", "error", err)
		os.Exit(1)
	}
	st := store.NewMongo(database, cfg.MongoTransactions)

	// Redis is optional; without it locks and rate limits are per process.
	rdb, err := db.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	var (
		locker  lock.Locker
		limiter middleware.Limiter
	)
	if rdb != nil {
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, "")
		limiter = middleware.NewRedisLimiter(rdb, "contesthub:ratelimit:checkout", cfg.CheckoutRateLimit, time.Minute)
	} else {
		logger.Warn("REDIS_ADDR not set, using in-process locks and rate limits")
		locker = lock.NewLocalLocker()
		limiter = middleware.NewLocalLimiter(cfg.CheckoutRateLimit, time.Minute)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		logger.Error("failed to configure payment gateway", "error", err)
		os.Exit(1)
	}
	stub, _ := gw.(*gateway.Stub)
	if stub != nil {
		logger.Warn("using stub payment gateway; checkout sessions are completed via /pay/stub")
	}

	if cfg.StripeWebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set, /webhooks/stripe will answer 500")
	}

	verifier, err := identity.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		logger.Error("failed to configure token verifier", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Initialize services and handlers
	userService := services.NewUserService(st.Users())
	contestService := services.NewContestService(st, userService)
	registrationService := services.NewRegistrationService(st, gw, locker, m, services.RegistrationConfig{
		SiteDomain: cfg.SiteDomain,
		Currency:   cfg.Currency,
	})
	submissionService := services.NewSubmissionService(st.Entries())
	leaderboardService := services.NewLeaderboardService(st)

	router := handlers.NewRouter(handlers.Deps{
		Logger:   logger,
		Metrics:  m,
		Gatherer: registry,
		Verifier: verifier,
		Limiter:  limiter,
		DB:       st,

		Users:         userService,
		Contests:      contestService,
		Registrations: registrationService,
		Submissions:   submissionService,
		Leaderboard:   leaderboardService,

		WebhookSecret: cfg.StripeWebhookSecret,
		Stub:          stub,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server running", "addr", server.Addr, "gateway", gw.Name())
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
