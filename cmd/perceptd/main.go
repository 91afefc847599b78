package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sightline-ai/percept/internal/config"
	"github.com/sightline-ai/percept/internal/db"
	dbMemory "github.com/sightline-ai/percept/internal/db/memory"
	dbRedis "github.com/sightline-ai/percept/internal/db/redis"
	"github.com/sightline-ai/percept/internal/domain"
	"github.com/sightline-ai/percept/internal/haptics"
	logpkg "github.com/sightline-ai/percept/internal/logger"
	"github.com/sightline-ai/percept/internal/metrics"
	budgetrepo "github.com/sightline-ai/percept/internal/repository/budget"
	"github.com/sightline-ai/percept/internal/repository/embcache"
	"github.com/sightline-ai/percept/internal/repository/journal"
	"github.com/sightline-ai/percept/internal/repository/vocabfile"
	chiTransport "github.com/sightline-ai/percept/internal/transport/chi"
	"github.com/sightline-ai/percept/internal/transport/modelsrv"
	openaiEmb "github.com/sightline-ai/percept/internal/transport/openai"
	"github.com/sightline-ai/percept/internal/transport/sim"
	detectuc "github.com/sightline-ai/percept/internal/usecase/detect"
	embeddinguc "github.com/sightline-ai/percept/internal/usecase/embedding"
	fusionuc "github.com/sightline-ai/percept/internal/usecase/fusion"
	healthuc "github.com/sightline-ai/percept/internal/usecase/health"
	learninguc "github.com/sightline-ai/percept/internal/usecase/learning"
	pipelineuc "github.com/sightline-ai/percept/internal/usecase/pipeline"
	usageuc "github.com/sightline-ai/percept/internal/usecase/usage"
	vocabularyuc "github.com/sightline-ai/percept/internal/usecase/vocabulary"
	"github.com/sightline-ai/percept/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting perceptd",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("detector_backend", cfg.Detectors.Backend),
	)

	// Create KV store based on driver
	var store db.Store
	switch cfg.Database.Driver {
	case "memory":
		store = dbMemory.NewStore()
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create KV store", zap.Error(err))
	}
	defer store.Close()

	// Wait for the store to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("KV store not ready", zap.Error(err))
	}

	// Register detection and embedding metrics explicitly (no init())
	metrics.RegisterDetectionMetrics()
	metrics.RegisterEmbeddingMetrics()

	// Single BudgetTracker shared by the embedder chain.
	var budget *embeddinguc.BudgetTracker
	budgetCfg := cfg.Embedding.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(
			cfg.Embedding.Provider, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		// Connect persistence store — loads current counters from DB.
		budgetStore := budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour)
		budget.WithStore(ctx, budgetStore)
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budgetChecker embeddinguc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	// Usage reports read from the same tracker.
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader)

	embedder, embHealth := buildEmbedder(cfg, store, budgetChecker, logger)
	if embedder != nil {
		logger.Info("Embedder created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
		)
	} else {
		logger.Info("Embedding disabled, vocabulary pushes carry names only")
	}

	// Vocabulary store loads persisted entries at construction.
	vocabRepo := vocabfile.New(cfg.Vocabulary.Path)
	vocabStore := vocabularyuc.New(vocabRepo, vocabularyuc.Config{
		MaxEntries:  cfg.Vocabulary.MaxEntries,
		PruneAge:    time.Duration(cfg.Vocabulary.PruneAgeHours) * time.Hour,
		MinUseCount: cfg.Vocabulary.MinUseCount,
	}, logger)
	logger.Info("Vocabulary loaded",
		zap.String("path", vocabRepo.Path()),
		zap.Int("dynamic_entries", vocabStore.Len()),
		zap.Int("capacity", vocabStore.Cap()),
	)

	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		jrnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			logger.Fatal("Failed to open detection journal", zap.Error(err))
		}
		defer func() { _ = jrnl.Close() }()
		logger.Info("Detection journal enabled",
			zap.String("path", cfg.Journal.Path),
			zap.String("session_id", jrnl.SessionID()),
		)
	}

	// Same nil-interface rule as the budget checker above.
	var detectionLog pipelineuc.DetectionRecorder
	var learnLog learninguc.Recorder
	if jrnl != nil {
		detectionLog = jrnl
		learnLog = jrnl
	}

	var extractor learninguc.NounExtractor
	if cfg.Extractor.Provider == "openai" {
		extractor = openaiEmb.NewExtractor(&openaiEmb.ExtractorConfig{
			APIKey:   cfg.Extractor.APIKey,
			BaseURL:  cfg.Extractor.BaseURL,
			Model:    cfg.Extractor.Model,
			MaxNouns: cfg.Extractor.MaxNouns,
			Logger:   logger,
		})
	}
	learningSvc := learninguc.New(vocabStore, extractor, learnLog, logger)

	// The sim backend and the guardian must agree on the safety set.
	guardClasses := cfg.Detectors.Guardian.Classes
	if len(guardClasses) == 0 {
		guardClasses = detectuc.DefaultSafetyClasses
	}

	var guardianBackend detectuc.Backend
	var learnerBackend detectuc.VocabBackend
	switch cfg.Detectors.Backend {
	case "sim":
		guardianBackend = sim.NewBackend(&sim.Config{Classes: guardClasses, Logger: logger})
		learnerBackend = sim.NewBackend(&sim.Config{Classes: vocabStore.CurrentVocabulary(), Logger: logger})
	case "http":
		guardianBackend = modelsrv.NewClient(&modelsrv.Config{
			BaseURL: cfg.Detectors.Guardian.URL,
			Logger:  logger,
		})
		learnerBackend = modelsrv.NewClient(&modelsrv.Config{
			BaseURL: cfg.Detectors.Learner.URL,
			Logger:  logger,
		})
	default:
		logger.Fatal("Unknown detector backend", zap.String("backend", cfg.Detectors.Backend))
	}

	var actuator domain.Actuator
	if cfg.Pipeline.Feedback {
		actuator = haptics.NewConsole(logger)
	}

	guardian := detectuc.NewGuardian(guardianBackend, detectuc.GuardianConfig{
		SafetyClasses: guardClasses,
		LatencyBudget: time.Duration(cfg.Detectors.Guardian.BudgetMS) * time.Millisecond,
		Actuator:      actuator,
		Logger:        logger,
	})
	learner := detectuc.NewLearner(learnerBackend, embedder, vocabStore, detectuc.LearnerConfig{
		LatencyBudget: time.Duration(cfg.Detectors.Learner.BudgetMS) * time.Millisecond,
		VocabBudget:   time.Duration(cfg.Detectors.Learner.VocabBudgetMS) * time.Millisecond,
		Logger:        logger,
	})
	merger := fusionuc.New(cfg.Aggregator.PriorityClasses)

	var closers []pipelineuc.Closer
	for _, b := range []any{guardianBackend, learnerBackend} {
		if c, ok := b.(pipelineuc.Closer); ok {
			closers = append(closers, c)
		}
	}

	orch := pipelineuc.New(guardian, learner, merger, learningSvc, vocabStore, pipelineuc.Config{
		StatsEvery:     cfg.Pipeline.StatsEvery,
		GuardianBudget: time.Duration(cfg.Detectors.Guardian.BudgetMS) * time.Millisecond,
		LearnerBudget:  time.Duration(cfg.Detectors.Learner.BudgetMS) * time.Millisecond,
		Closers:        closers,
		Logger:         logger,
	})

	// Seed the learner before the first frame; a failed push is logged
	// by the orchestrator and the learner stays on its previous set.
	_ = orch.PushVocabulary(ctx)

	logger.Info("Detection pipeline ready",
		zap.String("backend", cfg.Detectors.Backend),
		zap.Int("safety_classes", len(guardClasses)),
		zap.Int("vocabulary_classes", len(vocabStore.CurrentVocabulary())),
		zap.Bool("feedback", cfg.Pipeline.Feedback),
	)

	// Frames are synthetic in both backend modes; camera capture lives
	// outside the daemon.
	source := sim.NewSource(sim.SourceConfig{
		Interval: time.Duration(cfg.Pipeline.FrameIntervalMS) * time.Millisecond,
	})
	runner := pipelineuc.NewRunner(source, orch, guardian, detectionLog, pipelineuc.RunnerConfig{
		Confidence: cfg.Pipeline.Confidence,
		Logger:     logger,
	})

	runCtx, stopPipeline := context.WithCancel(ctx)
	defer stopPipeline()
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if err := runner.Run(runCtx); err != nil {
			logger.Error("Detection pipeline failed", zap.Error(err))
		}
	}()

	// Health service
	var backendPinger healthuc.BackendPinger
	if p, ok := guardianBackend.(healthuc.BackendPinger); ok {
		backendPinger = p
	}
	healthSvc := healthuc.New(store, backendPinger, embHealth, vocabRepo)

	// Create chi server
	server := chiTransport.NewServer(vocabStore, orch, guardian, usageSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	// Stop the frame loop before the HTTP server; orchestrator Cleanup
	// runs inside the runner and releases the detector backends.
	stopPipeline()
	<-pipelineDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Prompt.
// The second return value reaches the base provider for health checks;
// the decorators do not forward them. Provider "none" disables embedding
// entirely and the learner pushes class names without vectors.
func buildEmbedder(
	cfg config.Config,
	store db.Store,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) (domain.Embedder, domain.HealthChecker) {
	if cfg.Embedding.Provider == "none" {
		return nil, nil
	}

	// Base provider (with transport metrics built-in)
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	// Cached
	var embedder domain.Embedder = base
	if store != nil {
		ttl := time.Duration(cfg.Embedding.CacheTTL) * time.Hour
		embedder = embcache.New(base, store, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	// Instrumented (budget + metrics)
	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider, cfg.Embedding.Model, budget, logger,
	)

	// Prompt template (outermost — cache key includes the rendered prompt)
	return domain.NewPromptEmbedder(embedder, cfg.Detectors.Learner.PromptTemplate), base
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
