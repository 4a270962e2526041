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

	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/errgroup"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	openaiadapter "github.com/ericfisherdev/chatrelay/internal/adapter/driven/openai"
	httphandler "github.com/ericfisherdev/chatrelay/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/chatrelay/internal/adapter/driving/web"
	"github.com/ericfisherdev/chatrelay/internal/application"
	"github.com/ericfisherdev/chatrelay/internal/config"
	"github.com/ericfisherdev/chatrelay/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (.env first, then the process environment).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"model", cfg.Model,
		"upstream_timeout", cfg.UpstreamTimeout,
		"base_url", cfg.BaseURL,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Create the upstream client (nil if no API key is configured).
	// The handle is fixed here and never replaced while the process runs.
	var completer driven.Completer
	if cfg.HasCredential() {
		var opts []option.RequestOption
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		completer = openaiadapter.NewClient(cfg.APIKey, cfg.Model, opts...)
		logger.Info("credential loaded", "key", cfg.MaskedKey())
	} else {
		logger.Warn("credential missing, /chat will report an error until OPENAI_API_KEY is set")
	}

	// 4. Wire services.
	chatSvc := application.NewChatService(completer, cfg.UpstreamTimeout)
	statusSvc := application.NewStatusService(chatSvc)

	// 5. Register API and GUI routes on one mux.
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, httphandler.NewHandler(chatSvc, statusSvc, logger))
	webhandler.RegisterRoutes(mux, webhandler.NewHandler(chatSvc, statusSvc, logger))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.ApplyMiddleware(mux, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout(cfg.UpstreamTimeout),
		IdleTimeout:       120 * time.Second,
	}

	// 6. Serve until the signal context is cancelled, then drain.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

// writeTimeout leaves headroom above the upstream timeout so a slow model
// reply still reaches the client. Without an upstream timeout the server
// does not cut responses off either.
func writeTimeout(upstream time.Duration) time.Duration {
	if upstream <= 0 {
		return 0
	}
	return upstream + 10*time.Second
}
