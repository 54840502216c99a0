package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/suPer8Hu/review-insights/internal/ai"
	"github.com/suPer8Hu/review-insights/internal/audit"
	"github.com/suPer8Hu/review-insights/internal/auth"
	"github.com/suPer8Hu/review-insights/internal/config"
	"github.com/suPer8Hu/review-insights/internal/db"
	"github.com/suPer8Hu/review-insights/internal/history"
	"github.com/suPer8Hu/review-insights/internal/httpapi"
	"github.com/suPer8Hu/review-insights/internal/httpapi/handlers"
	"github.com/suPer8Hu/review-insights/internal/insight"
	"github.com/suPer8Hu/review-insights/internal/logger"
	"github.com/suPer8Hu/review-insights/internal/models"
	"github.com/suPer8Hu/review-insights/internal/review"
	"github.com/suPer8Hu/review-insights/internal/store/rabbitmq"
	"github.com/suPer8Hu/review-insights/internal/store/redisstore"
	"github.com/suPer8Hu/review-insights/internal/summarize"
	"github.com/suPer8Hu/review-insights/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	zapLog := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer zapLog.Sync()
	log := logger.FromZap(zapLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DBDSN, zapLog)
	if err != nil {
		zapLog.Fatal("db connect failed", zap.Error(err))
	}
	if err := db.Migrate(gdb); err != nil {
		zapLog.Fatal("db migrate failed", zap.Error(err))
	}

	userRepo := users.NewRepo(gdb)
	if err := bootstrapAdmin(ctx, userRepo, cfg); err != nil {
		zapLog.Fatal("bootstrap admin failed", zap.Error(err))
	}

	records := history.NewRepo(gdb)
	cacheOpts := []history.CacheOption{history.WithFreshness(cfg.CacheFreshness)}
	if cfg.RedisAddr != "" {
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rds.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rds.Ping(pingCtx); err != nil {
			zapLog.Warn("redis unavailable, cache index disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			cacheOpts = append(cacheOpts, history.WithIndex(rds))
			zapLog.Info("redis cache index enabled", zap.String("addr", cfg.RedisAddr))
		}
		cancel()
	}
	cache := history.NewCache(records, log, cacheOpts...)

	provider, err := newRegistry(cfg).Get(ctx, cfg.AIProvider, "")
	if err != nil {
		zapLog.Fatal("ai provider", zap.Error(err))
	}

	reviews := review.NewRepo(gdb)
	policy := ai.DefaultRetryPolicy()
	policy.PerAttemptTimeout = cfg.LLMAttemptTimeout

	svc := insight.NewService(records, cache,
		review.NewEngine(reviews),
		summarize.NewEngine(reviews, provider, policy, log.With(map[string]any{"component": "summarize"})),
		log.With(map[string]any{"component": "insight"}),
		insight.Options{MemoryWindow: cfg.MemoryWindow, MemoryMaxRecords: cfg.MemoryMaxRecords},
	)

	auditRepo := audit.NewRepo(gdb)
	var sink audit.Sink = auditRepo
	if cfg.AuditSink == "rabbit" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			zapLog.Fatal("rabbit publisher", zap.Error(err))
		}
		defer pub.Close()
		sink = pub
	}

	h := &handlers.Handler{
		Users:     userRepo,
		Insights:  svc,
		Reports:   records,
		AuditLogs: auditRepo,
		Audit:     sink,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
		Log:       log,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, sink, log, cfg.CORSOrigins...),
		ReadHeaderTimeout: 10 * time.Second,
		// a summary may take two full model attempts
		WriteTimeout: 2*cfg.LLMAttemptTimeout + 30*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zapLog.Info("server listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("audit_sink", cfg.AuditSink),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zapLog.Fatal("http server", zap.Error(err))
	}
	zapLog.Info("server stopped")
}

func newRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()

	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m,
			cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, errors.New("OPENAI_API_KEY or OPENAI_BASE_URL required")
		}
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, m), nil
	})
	return reg
}

func bootstrapAdmin(ctx context.Context, repo *users.Repo, cfg config.Config) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil
	}
	_, err := repo.GetByUsername(ctx, cfg.AdminUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	return repo.Create(ctx, &models.User{
		Username:     cfg.AdminUsername,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
	})
}
