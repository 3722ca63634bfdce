package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mossy-p/callrelay/config"
	"github.com/mossy-p/callrelay/internal/handlers"
	"github.com/mossy-p/callrelay/internal/logger"
	"github.com/mossy-p/callrelay/internal/metrics"
	"github.com/mossy-p/callrelay/internal/redis"
	"github.com/mossy-p/callrelay/internal/registry"
	"github.com/mossy-p/callrelay/internal/relay"
	"github.com/mossy-p/callrelay/internal/turn"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	observers := []registry.Observer{m}
	var mirror handlers.PresenceMirror

	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()

		presence := redis.NewPresence(client, log.Named("presence"))
		defer presence.Close()
		if err := presence.Reset(ctx); err != nil {
			log.Warn("failed to clear stale presence", zap.Error(err))
		}
		observers = append(observers, presence)
		mirror = presence
		log.Info("redis presence mirror enabled", zap.String("host", cfg.Redis.Host))
	}

	sessions := registry.New(observers...)

	issuer, err := turn.NewIssuer(turn.Config{
		Secret:   cfg.Turn.Secret,
		Domain:   cfg.Turn.Domain,
		Realm:    cfg.Turn.Realm,
		STUNURLs: cfg.Turn.STUNURLs,
	}, sessions)
	if err != nil {
		return err
	}

	relayLog := log.Named("relay")
	h := handlers.New(handlers.Deps{
		Sessions:    sessions,
		Negotiation: relay.NewNegotiation(sessions, relay.WithLogger(relayLog), relay.WithMetrics(m)),
		Chat:        relay.NewChat(sessions, relay.WithLogger(relayLog), relay.WithMetrics(m)),
		Issuer:      issuer,
		Metrics:     m,
		Presence:    mirror,
		Logger:      log.Named("http"),
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.JWTSecret == "" {
		log.Info("JWT_SECRET not set, admin API disabled")
	}

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(h, handlers.RouterConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			JWTSecret:      cfg.JWTSecret,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting signaling server",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Environment),
			zap.String("turnDomain", cfg.Turn.Domain))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	return nil
}
