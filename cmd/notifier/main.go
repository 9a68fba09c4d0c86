package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/diagnosis/luxsuv-tours/internal/notify"
	"github.com/diagnosis/luxsuv-tours/internal/platform/mailer"
	"github.com/diagnosis/luxsuv-tours/pkg/config"
	"github.com/diagnosis/luxsuv-tours/pkg/events"
	"github.com/diagnosis/luxsuv-tours/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.NATS.URL == "" {
		logger.Error("NATS_URL is required for the notifier")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mail, err := mailer.New(cfg.Email)
	if err != nil {
		logger.Error("Failed to configure mailer", "error", err)
		os.Exit(1)
	}

	bus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	if err := notify.New(mail, cfg.Server.FrontendURL).Register(ctx, bus); err != nil {
		logger.Error("Failed to subscribe", "error", err)
		os.Exit(1)
	}

	logger.Info("Notifier running", "provider", cfg.Email.Provider)
	<-ctx.Done()
	logger.Info("Shutting down notifier...")
}
