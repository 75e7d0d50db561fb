package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/docflow-bfa-go/internal/config"
	"github.com/boddenberg/docflow-bfa-go/internal/handler"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/cache"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/client"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/devauth"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/firebase"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/firestoredb"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/gemini"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/lock"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/memstore"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/observability"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/pdf"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/docflow-bfa-go/internal/infra/webhook"
	"github.com/boddenberg/docflow-bfa-go/internal/port"
	"github.com/boddenberg/docflow-bfa-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Strings("client_url", cfg.ClientURL),
		zap.Bool("use_firestore", cfg.UseFirestore),
		zap.String("generator_backend", cfg.GeneratorBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("pdf_max_concurrency", cfg.PDFMaxConcurrency),
		zap.Bool("dev_auth", cfg.DevAuth),
	)

	ctx := context.Background()

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "docflow-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	readCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}
	storeCB := resilience.NewCircuitBreaker("firestore")
	generatorCB := resilience.NewCircuitBreaker(cfg.GeneratorBackend)
	webhookCB := resilience.NewCircuitBreaker("webhook")

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Identity & storage ---
	var (
		verifier  port.TokenVerifier
		devTokens *devauth.Authority
		ledger    port.CreditLedger
		store     port.HistoryStore
		health    []handler.HealthChecker
	)

	if cfg.DevAuth {
		devTokens = devauth.NewAuthority(cfg.JWTSecret, cfg.JWTAccessTTL, logger)
		verifier = devTokens
		logger.Warn("dev auth enabled: HS256 tokens from POST /v1/auth/dev-token are accepted")
	}

	if cfg.UseFirestore {
		clients, err := firebase.NewClients(ctx, firebase.Settings{
			ProjectID:         cfg.FirebaseProjectID,
			CredentialsFile:   cfg.FirebaseCredentialsFile,
			CredentialsBase64: cfg.FirebaseCredentialsBase64,
		}, logger)
		if err != nil {
			logger.Fatal("failed to init firebase", zap.Error(err))
		}
		defer clients.Close()

		fsLedger := firestoredb.NewLedger(clients.Firestore, storeCB, readCfg, logger)
		ledger = fsLedger
		store = firestoredb.NewHistory(clients.Firestore, storeCB, readCfg, logger)
		health = append(health, fsLedger)
		if verifier == nil {
			verifier = firebase.NewVerifier(clients.Auth, logger)
		}
		logger.Info("using Firestore as document store", zap.String("project_id", cfg.FirebaseProjectID))
	} else {
		mem := memstore.New()
		ledger = mem
		store = mem
		logger.Warn("using in-memory store: profiles and history are lost on restart")
	}
	if verifier == nil {
		logger.Warn("no identity provider configured, workspace routes unavailable")
	}

	// --- Generation ---
	var backend port.ContentGenerator
	switch cfg.GeneratorBackend {
	case config.BackendAgent:
		backend = client.NewAgentClient(httpClient, cfg.AgentAPIURL, generatorCB)
		logger.Info("generation via agent", zap.String("agent_url", cfg.AgentAPIURL))
	default:
		gen, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, generatorCB)
		if err != nil {
			logger.Fatal("failed to init gemini client", zap.Error(err))
		}
		backend = gen
		logger.Info("generation via gemini", zap.String("model", cfg.GeminiModel))
	}
	gateway := service.NewGateway(backend, cfg.GeneratorBackend, metrics, logger)

	// --- Export ---
	renderer := pdf.NewRenderer(cfg.ChromePath, cfg.PDFTimeout, logger)
	if !renderer.Available() {
		logger.Warn("chrome not found, PDF export will fail until CHROME_PATH is set")
	}
	dispatcher := webhook.NewDispatcher(httpClient, cfg.ExportWebhookURL, webhookCB, logger)
	if cfg.ExportWebhookURL == "" {
		logger.Warn("EXPORT_WEBHOOK_URL not set, export is disabled")
	}
	exporter := service.NewExportService(renderer, dispatcher, resilience.NewBulkhead(cfg.PDFMaxConcurrency), metrics, logger)

	// --- Generation guard ---
	var guard port.GenerationLock
	if cfg.RedisURL != "" {
		redisLock, err := lock.NewRedisLock(cfg.RedisURL, logger)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisLock.Close()
		guard = redisLock
		health = append(health, redisLock)
	} else {
		guard = lock.NewLocalLock()
	}

	// --- Services ---
	deps := &service.ControllerDeps{
		Generator:      gateway,
		Ledger:         ledger,
		History:        service.NewHistory(store, metrics, logger),
		Exporter:       exporter,
		Lock:           guard,
		LockTTL:        cfg.GenerationLockTTL,
		UpgradeCredits: cfg.UpgradeCredits,
		Metrics:        metrics,
		Logger:         logger,
	}
	sessions := service.NewSessions(cache.New[*service.Controller](cfg.SessionTTL), deps, verifier)

	// --- Router ---
	router := handler.NewRouter(handler.RouterDeps{
		Sessions:       sessions,
		Verifier:       verifier,
		DevTokens:      devTokens,
		Limiter:        handler.NewRateLimiter(cfg.GenerateRatePerMinute, 3),
		Health:         health,
		AllowedOrigins: cfg.ClientURL,
		UpgradeCredits: cfg.UpgradeCredits,
		Metrics:        metrics,
		Logger:         logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTPTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
