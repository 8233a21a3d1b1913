package client

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mwantia/illustag/internal/agent"
	"github.com/mwantia/illustag/pkg/log"

	config "github.com/mwantia/illustag/internal/config/server"
)

// loadConfig reads the server configuration and creates a logger that keeps
// stdout free for command output.
func loadConfig() (*config.BaseServerConfig, log.LoggerService, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, log.NewWriterLogger(cfg.Log.Name, cfg.Log, os.Stderr), nil
}

// withRuntime opens the configured store and services for the duration of fn.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *agent.Runtime) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := agent.NewRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	return fn(ctx, rt)
}

func parseID(name, value string) (uint, error) {
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s '%s'", name, value)
	}
	return uint(id), nil
}
