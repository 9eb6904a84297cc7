package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ThanosKa/magic-room-sub001/internal/api"
	"github.com/ThanosKa/magic-room-sub001/internal/auth"
	"github.com/ThanosKa/magic-room-sub001/internal/billing"
	"github.com/ThanosKa/magic-room-sub001/internal/config"
	"github.com/ThanosKa/magic-room-sub001/internal/db"
	"github.com/ThanosKa/magic-room-sub001/internal/dedup"
	"github.com/ThanosKa/magic-room-sub001/internal/generation"
	"github.com/ThanosKa/magic-room-sub001/internal/inference"
	"github.com/ThanosKa/magic-room-sub001/internal/ledger"
	"github.com/ThanosKa/magic-room-sub001/internal/logger"
	"github.com/ThanosKa/magic-room-sub001/internal/ratelimit"
	"github.com/ThanosKa/magic-room-sub001/internal/storage"
	"github.com/ThanosKa/magic-room-sub001/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Setup(cfg.LogLevel)

	bunDB := db.NewBunPostgresClient(cfg.DatabaseURL)
	defer bunDB.Close()

	ctx := context.Background()
	if err := db.InitSchema(ctx, bunDB); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database schema")
	}

	var counterStore ratelimit.CounterStore
	var markerStore dedup.MarkerStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		counterStore = ratelimit.NewRedisStore(redisClient)
		markerStore = dedup.NewRedisStore(redisClient)
	} else {
		log.Warn().Msg("REDIS_URL not set, rate limiting and webhook dedup are disabled")
	}

	ledgerRepo := ledger.NewLedgerRepository(bunDB)
	ledgerService := ledger.NewService(ledgerRepo)

	userRepo := user.NewUserRepository(bunDB)
	userService := user.NewUserService(userRepo, ledgerService, cfg.SignupBonusCredits)

	limiter := ratelimit.NewLimiter(counterStore, cfg.RateLimitRequests, cfg.RateLimitWindow)
	deduplicator := dedup.NewDeduplicator(markerStore)

	store, err := storage.NewClient(storage.Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: cfg.S3PublicBaseURL,
		UsePathStyle:  cfg.S3UsePathStyle,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create storage client")
	}

	inferenceClient := inference.NewClient(inference.Config{
		APIToken:   cfg.ReplicateAPIToken,
		BaseURL:    cfg.ReplicateBaseURL,
		WebhookURL: cfg.AppURL + "/api/webhooks/replicate",
		Timeout:    cfg.ReplicateTimeout,
	})

	generationRepo := generation.NewGenerationRepository(bunDB)
	orchestrator := generation.NewOrchestrator(generationRepo, ledgerService, limiter, inferenceClient, store)

	billingClient := billing.NewBilling(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.AppURL)

	jwtVerifier, err := auth.NewJWTVerifier(cfg.ClerkJWKSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create JWT verifier")
	}
	defer jwtVerifier.Close()

	clerkWebhook, err := api.NewClerkWebhookHandler(cfg.ClerkWebhookSecret, userService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create clerk webhook handler")
	}

	handlers := api.Handlers{
		Generate:         api.NewGenerateHandler(orchestrator),
		Checkout:         api.NewCheckoutHandler(billingClient),
		Upload:           api.NewUploadHandler(store),
		User:             api.NewUserHandler(ledgerService),
		ClerkWebhook:     clerkWebhook,
		ReplicateWebhook: api.NewReplicateWebhookHandler(cfg.ReplicateWebhookSecret, orchestrator, deduplicator),
		StripeWebhook:    api.NewStripeWebhookHandler(billingClient, ledgerService, userRepo, deduplicator),
	}

	router := api.SetupRoutes(handlers, auth.NewMiddleware(jwtVerifier), userService, cfg.AppURL)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	log.Info().Str("addr", cfg.ServerAddr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed to start")
	}

	log.Info().Msg("server stopped")
}
