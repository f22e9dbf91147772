// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

// Burrowd is the Burrow daemon: it routes sandbox mailboxes, runs
// scheduled tasks, and persists kernel state.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/burrow-systems/burrow/lib/clock"
	"github.com/burrow-systems/burrow/lib/config"
	"github.com/burrow-systems/burrow/lib/process"
	"github.com/burrow-systems/burrow/lib/schema"
	"github.com/burrow-systems/burrow/lib/version"
	"github.com/burrow-systems/burrow/router"
	"github.com/burrow-systems/burrow/sandbox"
	"github.com/burrow-systems/burrow/scheduler"
	"github.com/burrow-systems/burrow/state"
	"github.com/burrow-systems/burrow/taskstore"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var showVersion bool
	var verbose bool

	flagSet := pflag.NewFlagSet("burrowd", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to config file (default: $BURROW_CONFIG)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	if showVersion {
		fmt.Printf("burrowd %s\n", version.Info())
		return nil
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.Info("starting burrowd",
		"version", version.Info(),
		"root", cfg.Paths.Root,
		"engine", cfg.Container.Engine,
	)

	clk := clock.Real()

	stateStore, err := state.Open(cfg.Paths.StateSnapshot, logger)
	if err != nil {
		return err
	}

	store, err := taskstore.Open(taskstore.StoreConfig{
		Path:   cfg.Paths.Database,
		Clock:  clk,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	validator := sandbox.NewValidator(cfg.Paths.Policy, logger)
	engine := sandbox.NewDockerEngine(cfg.Container.Engine)
	runner := sandbox.NewRunner(cfg, engine, validator, clk, logger,
		taskView{store: store}, stateStore)

	sched := scheduler.New(scheduler.Config{
		Store:        store,
		State:        stateStore,
		Executor:     runner,
		Clock:        clk,
		Logger:       logger,
		PollInterval: time.Duration(cfg.Scheduler.PollIntervalSeconds) * time.Second,
		Location:     mustLocation(cfg.Scheduler.Timezone),
	})

	route := router.New(router.Config{
		Paths:        &cfg.Paths,
		State:        stateStore,
		Messenger:    logMessenger{logger: logger},
		Operations:   sched,
		Clock:        clk,
		Logger:       logger,
		PollInterval: time.Duration(cfg.Router.PollIntervalSeconds) * time.Second,
	})

	flusher := state.NewFlusher(stateStore, clk,
		time.Duration(cfg.State.FlushIntervalSeconds)*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)
	route.Start(ctx)
	flusher.Start(ctx)

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	received := <-signals
	logger.Info("shutting down", "signal", received.String())
	cancel()

	done := make(chan struct{})
	go func() {
		sched.Wait()
		route.Wait()
		flusher.Wait()
		close(done)
	}()
	select {
	case <-done:
	case second := <-signals:
		logger.Warn("forced exit", "signal", second.String())
		os.Exit(1)
	}

	if err := stateStore.Flush(); err != nil {
		return fmt.Errorf("final state flush: %w", err)
	}
	logger.Info("burrowd stopped")
	return nil
}

// taskView adapts the task store to the runner's snapshot interface.
type taskView struct {
	store *taskstore.Store
}

func (v taskView) TasksForTenant(folder string, isMain bool) ([]schema.Task, error) {
	return v.store.ListForTenant(context.Background(), folder, isMain)
}

// logMessenger is the delivery backend when no chat bridge is
// configured: outbound messages land in the daemon log.
type logMessenger struct {
	logger *slog.Logger
}

func (m logMessenger) Send(ctx context.Context, destination, text string) error {
	m.logger.Info("outbound message", "destination", destination, "text", text)
	return nil
}

// mustLocation is safe after config validation, which loads the zone.
func mustLocation(name string) *time.Location {
	location, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return location
}
