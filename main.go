package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkr290/genmap-web/internal/config"
	"github.com/dkr290/genmap-web/internal/handlers"
	"github.com/dkr290/genmap-web/internal/imageapi"
	"github.com/dkr290/genmap-web/internal/logging"
	"github.com/dkr290/genmap-web/internal/session"
	"github.com/dkr290/genmap-web/internal/studio"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", nil).Fatal("invalid configuration", "err", err)
	}
	logger := logging.New(cfg.LogLevel, nil)

	client := imageapi.NewClient(cfg.APIBaseURL, cfg.RequestTimeout)
	sessions := session.NewManager(func() *studio.Studio {
		return studio.New(client, logger)
	}, cfg.SessionTTL, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sessions.Run(ctx)

	app := handlers.NewApp(handlers.New(sessions, cfg.DataBaseURL, logger))

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown", "err", err)
		}
	}()

	logger.Info("server starting", "addr", cfg.Addr(), "api", client.BaseURL(), "data", cfg.DataBaseURL)
	if err := app.Listen(cfg.Addr()); err != nil {
		logger.Fatal("server stopped", "err", err)
	}
}
