package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"line-memo-relay/handler"
	"line-memo-relay/internal/config"
	"line-memo-relay/internal/integrations/line"
	"line-memo-relay/internal/integrations/paramstore"
	"line-memo-relay/internal/relay"
	"line-memo-relay/internal/repository"
	"line-memo-relay/internal/usecase"
)

// store is what the conversation engine needs from persistence.
type store interface {
	usecase.RecordStore
	usecase.ModeStore
}

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.LoadBackend()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	// ---- AWS SDK config (only when something needs it) ----
	var awsCfg aws.Config
	if cfg.NeedsSecrets() || cfg.StoreBackend == config.StoreDynamoDB {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
	}

	if cfg.NeedsSecrets() {
		params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			logger.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		if err := cfg.ResolveSecrets(ctx, params); err != nil {
			logger.Error("failed to resolve secrets", "err", err)
			os.Exit(1)
		}
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	st, closeStore, err := openStore(ctx, cfg, awsCfg)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.StoreBackend, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	lineClient, err := line.NewClient(cfg.AccessToken, line.WithBaseURL(cfg.LineAPIBaseURL))
	if err != nil {
		logger.Error("failed to create LINE client", "err", err)
		os.Exit(1)
	}
	verifier, err := relay.NewVerifier(cfg.RelaySecret)
	if err != nil {
		logger.Error("failed to create relay verifier", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	engine, err := usecase.NewConversationEngine(st, st, logger)
	if err != nil {
		logger.Error("failed to create conversation engine", "err", err)
		os.Exit(1)
	}
	webhook, err := usecase.NewWebhookService(verifier, engine, lineClient, cfg.LoadingSeconds, logger)
	if err != nil {
		logger.Error("failed to create webhook service", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewHandler(webhook, logger)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		lambda.Start(h.Handle)
		return
	}
	serveLocal(cfg.HTTPAddr, h, logger)
}

func openStore(ctx context.Context, cfg *config.Backend, awsCfg aws.Config) (store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		rs, err := repository.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	case config.StoreMemory:
		return repository.NewMemoryStore(), func() {}, nil
	default:
		ds, err := repository.NewDynamoStore(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
		if err != nil {
			return nil, nil, err
		}
		return ds, func() {}, nil
	}
}

// serveLocal runs the handler behind a plain HTTP server for development.
func serveLocal(addr string, h *handler.Handler, logger *slog.Logger) {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodPost, "/", h)
	r.Method(http.MethodPost, "/relay", h)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting backend in local HTTP mode", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}
	logger.Info("backend stopped")
}
