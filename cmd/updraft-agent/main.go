// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

// Updraft-agent is a long-running edge agent that consumes sensor data
// over MQTT and keeps its own executable synchronized with a git
// remote. When the remote supplies a new, statically valid version,
// the agent backs up its running file, swaps in the candidate, and
// exec()s itself in place — same PID, fresh code.
//
// On startup:
//  1. Loads the YAML config (--config or UPDRAFT_CONFIG); secrets come
//     from the environment.
//  2. Reports the outcome of a previous self-update, if one just
//     happened (the old process image leaves a transition state file
//     behind before exec()).
//  3. Connects the MQTT data plane with bounded retry — failure here
//     is fatal, no update loop starts without a data plane.
//  4. Ensures the local clone of the update source exists.
//  5. Runs the update supervisor loop until the process is replaced
//     or a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/updraft-systems/updraft/lib/clock"
	"github.com/updraft-systems/updraft/lib/config"
	"github.com/updraft-systems/updraft/lib/gitremote"
	"github.com/updraft-systems/updraft/lib/ledger"
	"github.com/updraft-systems/updraft/lib/notify"
	"github.com/updraft-systems/updraft/lib/supervisor"
	"github.com/updraft-systems/updraft/lib/transport"
	"github.com/updraft-systems/updraft/lib/update"
	"github.com/updraft-systems/updraft/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to the agent config file (or set "+config.EnvConfigPath+")")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("updraft-agent %s\n", version.Info())
		return nil
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	path, err := config.Locate(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	// The running file defaults to this process's own executable,
	// resolved once at startup. On Linux this reads /proc/self/exe,
	// which points at the original binary even after it is replaced
	// on disk.
	if cfg.Paths.Running == "" {
		executable, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolving own executable path: %w", err)
		}
		cfg.Paths.Running = executable
		if cfg.Paths.Backup == "" {
			cfg.Paths.Backup = executable + ".prev"
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	var notifier notify.Notifier
	if cfg.Email != nil {
		notifier, err = notify.NewMailer(notify.EmailConfig{
			From:     cfg.Email.From,
			To:       cfg.Email.To,
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
		}, clk, logger)
		if err != nil {
			return fmt.Errorf("configuring notifications: %w", err)
		}
	} else {
		notifier = notify.Discard(logger)
	}

	if err := os.MkdirAll(cfg.Paths.StateDir, 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	failedLedger := ledger.New(cfg.LedgerPath(), logger)

	// If the previous process image exec()ed into this one, report how
	// that went before doing anything else.
	reportTransition(ctx, cfg.TransitionPath(), cfg.Paths.Running, failedLedger, notifier, logger)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	client, err := transport.Connect(ctx, transport.Config{
		Host:       cfg.Broker.Host,
		Port:       cfg.Broker.Port,
		Topic:      cfg.Broker.Topic,
		Username:   cfg.Broker.Username,
		Password:   cfg.Broker.Password,
		CACertPath: cfg.Broker.CACert,
		ClientID:   "updraft-" + hostname,
	}, sensorHandler(logger), clk, logger)
	if err != nil {
		return fmt.Errorf("establishing data plane: %w", err)
	}
	defer client.Close()

	repo, err := gitremote.EnsureClone(ctx, cfg.Repo.URL, cfg.Repo.Dir)
	if err != nil {
		return fmt.Errorf("preparing update source: %w", err)
	}

	applier := &update.Applier{
		RunningPath:    cfg.Paths.Running,
		CandidatePath:  cfg.CandidatePath(),
		BackupPath:     cfg.Paths.Backup,
		TransitionPath: cfg.TransitionPath(),
		Logger:         logger,
	}

	loop := &supervisor.Supervisor{
		RunningPath:   cfg.Paths.Running,
		CandidatePath: cfg.CandidatePath(),
		Interval:      time.Duration(cfg.Update.CheckInterval),
		Source:        repo,
		Ledger:        failedLedger,
		Applier:       applier,
		Notifier:      notifier,
		Clock:         clk,
		Logger:        logger,
	}
	return loop.Run(ctx)
}
