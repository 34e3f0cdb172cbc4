package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terra-clan/interview-engine/internal/api"
	"github.com/terra-clan/interview-engine/internal/catalog"
	"github.com/terra-clan/interview-engine/internal/cleanup"
	"github.com/terra-clan/interview-engine/internal/config"
	"github.com/terra-clan/interview-engine/internal/evaluator"
	"github.com/terra-clan/interview-engine/internal/interview"
	"github.com/terra-clan/interview-engine/internal/mail"
	"github.com/terra-clan/interview-engine/internal/progress"
	"github.com/terra-clan/interview-engine/internal/quota"
	"github.com/terra-clan/interview-engine/internal/recommend"
	"github.com/terra-clan/interview-engine/internal/services"
	"github.com/terra-clan/interview-engine/internal/storage"
	"github.com/terra-clan/interview-engine/internal/submission"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("starting interview-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"database", cfg.Database.Driver,
		"progress_store", cfg.Progress.Store,
		"evaluator", cfg.Evaluator.Provider,
		"mail", cfg.Mail.Transport,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	registry := services.NewRegistry()

	// Response store
	var repo storage.Repository
	switch cfg.Database.Driver {
	case "memory":
		slog.Warn("using in-memory response store, responses are lost on restart")
		repo = storage.NewMemoryRepository()
	default:
		slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
		if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		pg, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
			DSN:          cfg.Database.DSN,
			MaxOpenConns: int32(cfg.Database.MaxOpenConns),
			MaxIdleConns: int32(cfg.Database.MaxIdleConns),
			MaxLifetime:  cfg.Database.MaxLifetime,
		})
		if err != nil {
			slog.Error("failed to create database repository", "error", err)
			os.Exit(1)
		}
		repo = pg
		slog.Info("database connected successfully")

		checker, err := services.NewPostgresChecker(cfg.Database.DSN)
		if err != nil {
			slog.Error("failed to create postgres checker", "error", err)
			os.Exit(1)
		}
		defer checker.Close()
		registry.Register(checker)
	}
	defer repo.Close()

	// Redis, shared by progress, quota and rate limiting when enabled
	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(initCtx).Err(); err != nil {
			slog.Error("failed to connect to redis", "address", cfg.Redis.Address, "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()

		prefix := ""
		if cfg.Progress.Store == "redis" {
			prefix = cfg.Progress.Prefix
		}
		registry.Register(services.NewRedisChecker(redisClient, prefix))
		slog.Info("redis connected successfully", "address", cfg.Redis.Address)
	}

	// Load catalog
	catalogLoader := catalog.NewLoader()
	if err := catalogLoader.LoadFromDir(cfg.Catalog.Dir); err != nil {
		slog.Warn("failed to load catalog from dir", "dir", cfg.Catalog.Dir, "error", err)
	}

	// Evaluator
	ev, closeEvaluator, err := newEvaluator(initCtx, cfg.Evaluator)
	if err != nil {
		slog.Error("failed to create evaluator", "provider", cfg.Evaluator.Provider, "error", err)
		os.Exit(1)
	}
	defer closeEvaluator()

	// Token budget
	var counter quota.Counter = quota.NewMemoryCounter()
	if cfg.Quota.Store == "redis" {
		counter = quota.NewRedisCounter(redisClient, cfg.Quota.Key, cfg.Quota.Window)
	}
	budget := quota.NewBudget(counter, cfg.Quota.Budget, cfg.Quota.Threshold)

	// Stage progress
	var (
		progressStore progress.Store
		pruner        progress.Pruner
	)
	if cfg.Progress.Store == "redis" {
		progressStore = progress.NewRedisStore(redisClient, cfg.Progress.Prefix, cfg.Progress.TTL)
	} else {
		mem := progress.NewMemoryStore()
		progressStore, pruner = mem, mem
	}
	tracker := progress.NewTracker(progressStore, catalogLoader, progress.WithRecords(repo))

	interviewer := interview.NewInterviewer(ev, budget, interview.InterviewerConfig{
		CostPerToken: cfg.Interview.CostPerToken,
	})

	// Mail
	sender, err := newSender(initCtx, cfg.Mail)
	if err != nil {
		slog.Error("failed to create mail sender", "transport", cfg.Mail.Transport, "error", err)
		os.Exit(1)
	}
	mailer := mail.NewService(mail.NewComposer(mail.ComposerConfig{
		FromAddress: cfg.Mail.FromAddress,
		FromName:    cfg.Mail.FromName,
		BaseURL:     cfg.Mail.BaseURL,
		CompanyName: cfg.Mail.CompanyName,
	}), sender)

	var limiter api.Limiter = api.NewRateLimiter()
	if cfg.RateLimit.Store == "redis" {
		limiter = api.NewRedisLimiter(redisClient)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Idle in-process progress has no TTL of its own
	if pruner != nil {
		cleanup.NewCleaner(pruner, cfg.Cleanup.Interval, cfg.Cleanup.Idle).Start(ctx)
	}

	// Setup HTTP server
	server := api.NewServer(cfg, api.Deps{
		Responses:    repo,
		Clients:      repo,
		Catalog:      catalogLoader,
		Tracker:      tracker,
		Gateway:      submission.NewGateway(repo, tracker, catalogLoader),
		Interviewer:  interviewer,
		Conversation: interview.NewConversation(tracker, interviewer, catalogLoader, cfg.Interview.Role),
		Assembler:    recommend.NewAssembler(repo, ev, budget, recommend.Config{}),
		Mail:         mailer,
		Registry:     registry,
		Limiter:      limiter,
	})
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("interview-engine stopped")
}

// newEvaluator builds the configured language model backend and its close func
func newEvaluator(ctx context.Context, cfg config.EvaluatorConfig) (evaluator.Evaluator, func(), error) {
	switch cfg.Provider {
	case "vertexai":
		client, err := evaluator.NewVertexAIClient(ctx, cfg.Project, cfg.Location, cfg.Model)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {
			if err := client.Close(); err != nil {
				slog.Error("vertex ai close error", "error", err)
			}
		}, nil
	default:
		var opts []evaluator.OpenAIOption
		if cfg.BaseURL != "" {
			opts = append(opts, evaluator.WithBaseURL(cfg.BaseURL))
		}
		return evaluator.NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.Timeout, opts...), func() {}, nil
	}
}

// newSender builds the configured mail transport
func newSender(ctx context.Context, cfg config.MailConfig) (mail.Sender, error) {
	switch cfg.Transport {
	case "smtp":
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  cfg.Timeout,
		}), nil
	case "gmail":
		return mail.NewGmailSender(ctx, cfg.CredentialsFile, cfg.TokenFile)
	case "log":
		slog.Warn("mail transport is log, emails are not delivered")
		return mail.LogSender{}, nil
	default:
		return nil, fmt.Errorf("unknown mail transport: %q", cfg.Transport)
	}
}
