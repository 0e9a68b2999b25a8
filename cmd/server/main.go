package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tyrowin/pushrelay/internal/logging"
	"github.com/Tyrowin/pushrelay/internal/presence"
	"github.com/Tyrowin/pushrelay/internal/relay"
	"github.com/Tyrowin/pushrelay/internal/server"
	"github.com/Tyrowin/pushrelay/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", logging.Err(err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := server.NewConfigFromEnv().Sanitize()

	log := logging.NewLogger(logging.Options{
		Service: cfg.ServiceName,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	log.Info("starting pushrelay", slog.String("addr", cfg.Port))

	tp, otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", logging.Err(err))
		}
	}()

	relayOpts := []relay.Option{relay.WithLogger(log), relay.WithTracerProvider(tp)}
	if cfg.RedisURL != "" {
		rdb, err := presence.NewRedisClient(ctx, presence.RedisConfig{
			URL:          cfg.RedisURL,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()

		store := presence.NewRedisStore(rdb, "")
		if err := store.Clear(ctx); err != nil {
			log.Warn("could not clear stale presence", logging.Err(err))
		}
		relayOpts = append(relayOpts, relay.WithPresence(store))
		log.Info("redis presence enabled")
	}

	rl := relay.New(relayOpts...)
	srv := server.New(cfg, rl, server.WithLogger(log), server.WithTracerProvider(tp))
	httpServer := server.CreateServer(cfg.Port, srv.Handler())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
		log.Warn("http shutdown incomplete", logging.Err(err))
	}
	if err := srv.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Warn("relay shutdown incomplete", logging.Err(err))
	}
	return nil
}
