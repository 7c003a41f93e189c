package main

import (
	"context"
	"fmt"
	"strings"

	"weighstation/internal/config"
	"weighstation/internal/daemonrun"
)

func loadConfig(getenv func(string) string) (*config.Config, error) {
	path := strings.TrimSpace(getenv("WEIGHSTATION_CONFIG"))
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if path != "" && !exists {
		return nil, fmt.Errorf("load config: %s does not exist", resolved)
	}
	return cfg, nil
}

func run(ctx context.Context, getenv func(string) string) error {
	cfg, err := loadConfig(getenv)
	if err != nil {
		return err
	}
	return daemonrun.Run(ctx, cfg, daemonrun.Options{
		LogLevel: strings.TrimSpace(getenv("WEIGHSTATION_LOG_LEVEL")),
	})
}
