// Package main provides the session server binary: it pairs two clients
// into a room over websockets and coordinates turns and state relay
// between them.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JvstinNgvyen/space-scrap/internal/config"
	"github.com/JvstinNgvyen/space-scrap/internal/game/roomcode"
	"github.com/JvstinNgvyen/space-scrap/internal/game/session"
	"github.com/JvstinNgvyen/space-scrap/internal/observability"
	"github.com/JvstinNgvyen/space-scrap/internal/server"
	"github.com/JvstinNgvyen/space-scrap/internal/transport/ws"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty = defaults and environment")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting session server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Duration("grace_period", cfg.Session.GracePeriod),
	)

	store := session.NewMemoryStore()
	codes := roomcode.New(cfg.Session.RoomCodeLength)
	coord := session.NewCoordinator(store, codes, cfg.Session.GracePeriod, cfg.Session.MaxRooms, logger)

	wsHandler := ws.NewHandler(coord, logger, cfg.Server.AllowedOrigins, cfg.Session.MessageRate, cfg.Session.MessageBurst)
	router := ws.NewRouter(wsHandler, coord, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			logger.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
		StopFn: func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
			wsHandler.CloseAll()
		},
	})

	statsDone := make(chan struct{})
	lifecycle.Add("stats", &server.FuncService{
		StartFn: func() error {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					logger.Info("server stats",
						zap.Int("rooms", coord.RoomCount()),
						zap.Int("connections", wsHandler.ClientCount()),
					)
				case <-statsDone:
					return nil
				}
			}
		},
		StopFn: func() {
			close(statsDone)
		},
	})

	logger.Info("session server initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
