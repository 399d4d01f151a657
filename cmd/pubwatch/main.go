// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Command pubwatch is a Matrix agent that watches remote directory
// listings and announces new entries to subscribed rooms.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/pubwatch/pubwatch/bot"
	"github.com/pubwatch/pubwatch/config"
	"github.com/pubwatch/pubwatch/lib/clock"
	"github.com/pubwatch/pubwatch/lib/secret"
	"github.com/pubwatch/pubwatch/listing"
	"github.com/pubwatch/pubwatch/messaging"
	"github.com/pubwatch/pubwatch/session"
	"github.com/pubwatch/pubwatch/watch"
)

var version = "devel"

func main() {
	configPath := pflag.String("config", "", "path to the configuration file (required)")
	logLevel := pflag.String("log-level", "info", "log level: debug, info, warn, error")
	showVersion := pflag.Bool("version", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println("pubwatch", version)
		return
	}

	logger, err := buildLogger(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pubwatch:", err)
		os.Exit(1)
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "pubwatch: --config is required")
		pflag.Usage()
		os.Exit(1)
	}

	if err := run(*configPath, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func buildLogger(level string) (*slog.Logger, error) {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})), nil
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	password, err := resolveSecret(cfg.Account.Password, "PUBWATCH_PASSWORD",
		fmt.Sprintf("Password for %s: ", cfg.Account.Username))
	if err != nil {
		return fmt.Errorf("resolving account password: %w", err)
	}
	defer password.Close()

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Homeserver,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	registry := bot.NewRegistry(store, logger)
	if err := registry.Load(); err != nil {
		logger.Warn("loading stored watch list failed, starting empty", "error", err)
	}

	clk := clock.Real()
	commands := bot.NewCommands(registry, cfg.AllowedUsers, *cfg.IgnoreOwnMessages, logger)
	invites := bot.NewInvites(*cfg.Autojoin, cfg.AllowedUsers, clk, logger)
	handler := bot.NewHandler(commands, invites, logger)

	driver, err := bot.NewDriver(bot.DriverConfig{
		Client:     client,
		Store:      store,
		Clock:      clk,
		Logger:     logger,
		Username:   cfg.Account.Username,
		Password:   password,
		DeviceName: cfg.Account.DeviceName,
	})
	if err != nil {
		return err
	}

	detector, err := watch.NewDetector(
		listing.NewFetcher(listing.WithUserAgent("pubwatch/"+version)),
		cfg.Poll.BaseURL, logger)
	if err != nil {
		return err
	}
	sources := make([]*watch.Source, len(cfg.Sources))
	for i, s := range cfg.Sources {
		sources[i] = &watch.Source{Name: s.Name, Path: s.Path, Filter: s.Filter, Recurse: s.Recurse}
	}

	notifier := bot.NewNotifier(registry, cfg.Poll.BaseURL, logger)
	loop := bot.NewLoop(detector, sources, notifier, driver.Session, cfg.Poll.Interval, clk, logger)

	logger.Info("pubwatch starting",
		"version", version,
		"homeserver", cfg.Homeserver,
		"sources", len(sources),
		"interval", cfg.Poll.Interval.String(),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()

	runErr := driver.Run(ctx, handler)
	stop()
	wg.Wait()
	invites.Wait()

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	logger.Info("pubwatch stopped")
	return nil
}

// buildStore constructs the configured session store backend.
func buildStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case config.BackendEphemeral:
		return session.NewEphemeral(), nil

	case config.BackendFile:
		passphrase, err := resolveSecret(cfg.Session.Passphrase, "PUBWATCH_PASSPHRASE",
			"Session store passphrase: ")
		if err != nil {
			return nil, fmt.Errorf("resolving store passphrase: %w", err)
		}
		return session.NewFileStore(cfg.Session.Dir, passphrase)

	case config.BackendKeyring:
		return session.NewKeyringStore(cfg.Session.Service)

	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

// resolveSecret produces a guarded buffer from, in order: the config
// value, the named environment variable, or an interactive prompt.
func resolveSecret(configured, envVar, prompt string) (*secret.Buffer, error) {
	if configured != "" {
		return secret.NewFromString(configured)
	}
	if value := os.Getenv(envVar); value != "" {
		return secret.NewFromString(value)
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("not configured, %s unset, and stdin is not a terminal", envVar)
	}
	fmt.Fprint(os.Stderr, prompt)
	line, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading from terminal: %w", err)
	}
	return secret.NewFromBytes(line)
}
