// Package cmd defines and implements the CLI commands for the newsroom
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-edge/internal/config"
	"github.com/JakeFAU/newsroom-edge/internal/logging"
)

const serviceName = "newsroom-edge"

// envKeyType is the key for storing the command environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// Env is what every subcommand receives: the loaded configuration and a
// logger built from it.
type Env struct {
	Config config.Config
	Logger *zap.Logger
}

// newEnv loads configuration and builds the logger. It is a variable so tests
// can inject their own environment.
var newEnv = func(cfgFile string) (*Env, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, serviceName)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return &Env{Config: cfg, Logger: logger}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "newsroom",
		Short: "API edge for the newsroom website.",
		Long: `newsroom serves the lightweight API layer of the newsroom website:
article views with media resolution, hover/touch prefetching, the view
counter and the reverse geocoding proxy.`,
		SilenceUsage: true,

		// Runs after flags are parsed and before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			env, err := newEnv(cfgFile)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, env))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if env, ok := cmd.Context().Value(envKey).(*Env); ok && env != nil {
				_ = env.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSlugCmd())
	cmd.AddCommand(newNavigateCmd())

	return cmd
}

func resolveEnv(ctx context.Context) (*Env, error) {
	env, ok := ctx.Value(envKey).(*Env)
	if !ok || env == nil {
		return nil, errors.New("command environment not initialized")
	}
	return env, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "newsroom: %v\n", err)
		os.Exit(1)
	}
}
