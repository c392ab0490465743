package main

import (
	"context"
	"fmt"
	"os"

	"github.com/noah-isme/survey-review-api/internal/app"
	"github.com/noah-isme/survey-review-api/internal/cli"
	"github.com/noah-isme/survey-review-api/pkg/config"
	"github.com/noah-isme/survey-review-api/pkg/logger"
)

func main() {
	opts := &cli.RootOptions{Open: open}
	if err := cli.NewRootCommand(opts).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func open(ctx context.Context, cfg *config.Config) (*cli.Deps, func() error, error) {
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	container, err := app.Build(ctx, cfg, logr)
	if err != nil {
		return nil, nil, err
	}
	if err := container.StartWorkers(ctx); err != nil {
		_ = container.Close()
		return nil, nil, err
	}
	return &cli.Deps{
		Reports:       container.Reports,
		Notifications: container.Notifications,
	}, container.Close, nil
}
