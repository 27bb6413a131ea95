// Package main - консольная утилита для работы с движком прогресса.
//
// progressctl начисляет и списывает очки, управляет целями и привычками,
// показывает прогресс и запускает обслуживающие задачи вручную.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/alem-hub/progress-engine/config"
	"github.com/alem-hub/progress-engine/internal/app"
	"github.com/alem-hub/progress-engine/internal/cli"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

var version = "dev"

func main() {
	var root cli.Root
	kctx := kong.Parse(&root,
		kong.Name("progressctl"),
		kong.Description("Points, levels, streaks, goals and habits."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, kctx, &root); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, kctx *kong.Context, root *cli.Root) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(root.EnvFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ЛОГИРОВАНИЕ (в stderr)
	// ─────────────────────────────────────────────────────────────────────────
	log, logCloser, err := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: logger.Format(cfg.Log.Format),
		File:   cfg.Log.File,
		Prefix: "progressctl",
	})
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	defer logCloser.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ДВИЖОК
	// ─────────────────────────────────────────────────────────────────────────
	engine, err := app.New(ctx, cfg, log, app.Options{
		Clock: root.Today.Clock(cfg.Engine.Location),
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. КОМАНДА
	// ─────────────────────────────────────────────────────────────────────────
	return kctx.Run(&cli.Context{
		Context: ctx,
		Engine:  engine,
		Out:     os.Stdout,
		JSON:    root.JSON,
	})
}
