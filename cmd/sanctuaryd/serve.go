package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/organizer/sanctuary/internal/admin"
	"github.com/organizer/sanctuary/internal/api"
	"github.com/organizer/sanctuary/internal/broadcast"
	"github.com/organizer/sanctuary/internal/config"
	"github.com/organizer/sanctuary/internal/db"
	"github.com/organizer/sanctuary/internal/delivery"
	"github.com/organizer/sanctuary/internal/gateway"
	"github.com/organizer/sanctuary/internal/inbound"
	"github.com/organizer/sanctuary/internal/inbox"
	"github.com/organizer/sanctuary/internal/linktok"
	"github.com/organizer/sanctuary/internal/metrics"
	"github.com/organizer/sanctuary/internal/notifier"
	"github.com/organizer/sanctuary/internal/redirect"
	"github.com/organizer/sanctuary/internal/repository"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API and metrics servers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger()

	database, err := db.Open(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.Migrate(); err != nil {
		return err
	}

	store := repository.New(database.DB)

	var gw gateway.SMSGateway
	if cfg.Gateway.SendURL != "" {
		gw = gateway.New(cfg.Gateway.SendURL)
	} else {
		logger.Warn("no SMS_GATEWAY_URL configured, using in-memory fake gateway")
		gw = gateway.NewFake()
	}

	var notify interface {
		Post(ctx context.Context, text, threadRef string) (string, error)
	}
	if cfg.Notifier.PostURL != "" {
		notify = notifier.New(cfg.Notifier.PostURL, cfg.Notifier.BotToken, cfg.Notifier.Channel)
	} else {
		logger.Warn("no NOTIFIER_POST_URL configured, using in-memory fake notifier")
		notify = notifier.NewFake()
	}

	tokenizer := linktok.New(store.Links, cfg.Links.BaseURL, logger)
	broadcaster := broadcast.New(store, gw, tokenizer, logger)
	processor := inbound.New(store, logger)
	redirector := redirect.New(store.Links, logger)
	reconciler := delivery.New(store.Messages, logger)
	projector := inbox.New(store)
	adm := admin.New(store, logger)

	m := metrics.New()
	metrics.SetGlobal(m)
	metricsServer := metrics.NewServerWithAllowedIPs(m, cfg.Server.MetricsAddr, "/metrics", cfg.Server.MetricsAllowedIPs, logger)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	apiServer := api.NewServer(cfg.Server.ListenAddr, cfg.Server.APIKey, api.Deps{
		Store:                   store,
		Processor:               processor,
		Broadcaster:             broadcaster,
		Redirector:              redirector,
		Reconciler:              reconciler,
		Inbox:                   projector,
		Admin:                   adm,
		Notifier:                notify,
		RequireWebhookSignature: cfg.Webhook.RequireSignature,
		WebhookSigningSecret:    cfg.Webhook.SigningSecret,
		AdminPhoneNumber:        cfg.Admin.PhoneNumber,
		AdminSMSEnabled:         cfg.Admin.EnableSMSNotifications,
		BaseURL:                 cfg.Links.BaseURL,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down...")
		_ = metricsServer.Shutdown(ctx)
		_ = apiServer.Shutdown(ctx)
		cancel()
	}()

	return apiServer.ListenAndServe()
}

func newLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
