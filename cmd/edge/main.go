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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"line-memo-relay/internal/config"
	"line-memo-relay/internal/edge"
	"line-memo-relay/internal/integrations/paramstore"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.LoadEdge()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.NeedsSecrets() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
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

	// ---- Receiver ----
	opts := edge.Options{
		ChannelSecret: cfg.ChannelSecret,
		RelaySecret:   cfg.RelaySecret,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		Logger:        logger,
	}
	if cfg.ForwardURL != "" {
		fwd, err := edge.NewHTTPForwarder(cfg.ForwardURL, edge.WithTimeout(cfg.ForwardTimeout))
		if err != nil {
			logger.Error("failed to create forwarder", "err", err)
			os.Exit(1)
		}
		opts.Forwarder = fwd
	} else {
		logger.Warn("RELAY_FORWARD_URL is not set, running in acknowledgment-only mode")
	}

	rc, err := edge.NewReceiver(opts)
	if err != nil {
		logger.Error("failed to create receiver", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           edge.NewRouter(rc, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting edge receiver", "port", cfg.Port, "forwarding", cfg.ForwardURL != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down edge receiver")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}
	if err := rc.Drain(shutdownCtx); err != nil {
		logger.Warn("in-flight forwards abandoned", "err", err)
	}

	logger.Info("edge receiver stopped")
}
