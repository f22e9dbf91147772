// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

// Burrow is the operator CLI: inspect mount policy decisions and
// scheduled tasks without going through a sandbox.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/burrow-systems/burrow/lib/clock"
	"github.com/burrow-systems/burrow/lib/config"
	"github.com/burrow-systems/burrow/lib/process"
	"github.com/burrow-systems/burrow/lib/schema"
	"github.com/burrow-systems/burrow/lib/version"
	"github.com/burrow-systems/burrow/sandbox"
	"github.com/burrow-systems/burrow/taskstore"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	switch os.Args[1] {
	case "policy":
		return runPolicy(os.Args[2:])
	case "task":
		return runTask(os.Args[2:])
	case "version":
		fmt.Printf("burrow %s\n", version.Full())
		return nil
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", os.Args[1])
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: burrow <subcommand> [flags]

Subcommands:
  policy check   Evaluate a mount request against the policy
  task list      List scheduled tasks
  version        Print version information

Run 'burrow <subcommand> --help' for subcommand flags.
`)
}

func runPolicy(args []string) error {
	if len(args) < 1 || args[0] != "check" {
		return fmt.Errorf("usage: burrow policy check --host <path> --container <path> [--rw] [--main]")
	}

	var configPath, hostPath, containerPath string
	var readWrite, asMain bool
	flagSet := pflag.NewFlagSet("policy check", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to config file (default: $BURROW_CONFIG)")
	flagSet.StringVar(&hostPath, "host", "", "host path to evaluate (required)")
	flagSet.StringVar(&containerPath, "container", "", "container-relative target path (required)")
	flagSet.BoolVar(&readWrite, "rw", false, "request read-write access")
	flagSet.BoolVar(&asMain, "main", false, "evaluate as the main tenant")
	if err := flagSet.Parse(args[1:]); err != nil {
		return err
	}
	if hostPath == "" || containerPath == "" {
		return fmt.Errorf("--host and --container are required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	validator := sandbox.NewValidator(cfg.Paths.Policy, slog.New(slog.DiscardHandler))

	decision := validator.Validate(schema.MountRequest{
		HostPath:      hostPath,
		ContainerPath: containerPath,
		Readonly:      !readWrite,
	}, asMain)

	if !decision.Allowed {
		fmt.Printf("rejected: %s\n", decision.Reason)
		os.Exit(1)
	}
	mode := "read-write"
	if decision.Readonly {
		mode = "read-only"
	}
	fmt.Printf("allowed: %s (%s)\n", decision.RealHostPath, mode)
	return nil
}

func runTask(args []string) error {
	if len(args) < 1 || args[0] != "list" {
		return fmt.Errorf("usage: burrow task list [--tenant <folder>]")
	}

	var configPath, tenant string
	flagSet := pflag.NewFlagSet("task list", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to config file (default: $BURROW_CONFIG)")
	flagSet.StringVar(&tenant, "tenant", "", "only this tenant's tasks")
	if err := flagSet.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store, err := taskstore.Open(taskstore.StoreConfig{
		Path:  cfg.Paths.Database,
		Clock: clock.Real(),
	})
	if err != nil {
		return err
	}
	defer store.Close()

	tasks, err := store.ListForTenant(context.Background(), tenant, tenant == "")
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTENANT\tKIND\tSTATUS\tNEXT RUN\tPROMPT")
	for _, task := range tasks {
		next := "-"
		if task.NextRun != nil {
			next = task.NextRun.UTC().Format(time.RFC3339)
		}
		prompt := task.Prompt
		if len(prompt) > 48 {
			prompt = prompt[:45] + "..."
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
			task.ID, task.TenantFolder, task.Kind, task.Status, next, prompt)
	}
	return writer.Flush()
}
