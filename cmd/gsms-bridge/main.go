// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

// Gsms-bridge links an SMS phone number to a chat room: chat messages
// matching a user's keywords go out as SMS, and inbound SMS goes into
// the user's active room.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/jtrinklein/gsms/admin"
	"github.com/jtrinklein/gsms/chat"
	"github.com/jtrinklein/gsms/config"
	"github.com/jtrinklein/gsms/router"
	"github.com/jtrinklein/gsms/sms"
	"github.com/jtrinklein/gsms/store"
	"github.com/jtrinklein/gsms/subscription"
	"github.com/jtrinklein/gsms/webhook"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// shutdownTimeout bounds the webhook server drain on exit.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var showVersion bool

	pflag.StringVar(&configPath, "config", "", "path to config file (required)")
	pflag.BoolVar(&showVersion, "version", false, "print version and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("gsms-bridge %s\n", version)
		return nil
	}
	if configPath == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting gsms-bridge", "version", version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	userStore, err := store.Open(store.Config{
		Path:     cfg.Database.Path,
		PoolSize: cfg.Database.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer userStore.Close()

	chatGateway, err := chat.NewGitter(chat.GitterConfig{
		APIURL:    cfg.Chat.APIURL,
		StreamURL: cfg.Chat.StreamURL,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	smsGateway, err := sms.NewTwilio(sms.TwilioConfig{
		AccountSID: cfg.SMS.AccountSID,
		AuthToken:  cfg.SMS.AuthToken,
		FromNumber: cfg.SMS.FromNumber,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	messageRouter, err := router.New(router.Config{
		Store: userStore,
		Chat:  chatGateway,
		SMS:   smsGateway,
		Prompts: router.Prompts{
			Register:     cfg.Prompts.Register,
			NoActiveRoom: cfg.Prompts.NoActiveRoom,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	manager, err := subscription.NewManager(subscription.Config{
		Store:     userStore,
		Chat:      chatGateway,
		Forwarder: messageRouter,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	// Restore listeners for everyone who was subscribed before the
	// last shutdown. Individual failures are already logged; the
	// bridge still serves the users that did reconnect.
	if err := manager.Reconnect(ctx); err != nil {
		logger.Warn("startup reconnect incomplete", "error", err)
	}

	adminServer, err := admin.Listen(admin.Config{
		SocketPath:    cfg.Admin.SocketPath,
		Subscriptions: manager,
		Users:         userStore,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer adminServer.Close()

	handler, err := webhook.New(webhook.Config{
		Router: messageRouter,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:    cfg.Webhook.ListenAddr,
		Handler: handler,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("webhook listening", "addr", cfg.Webhook.ListenAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverErr:
		return fmt.Errorf("webhook server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("webhook shutdown incomplete", "error", err)
	}
	return nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
