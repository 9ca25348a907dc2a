package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/newsroom-edge/internal/app"
	"github.com/JakeFAU/newsroom-edge/internal/config"
)

// newMigrateCmd creates the 'migrate' subcommand.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Creates the Postgres or SQLite document store schema",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}
}

// connector is replaced in tests.
var connector app.Connector = app.DefaultConnector{}

func runMigrate(cmd *cobra.Command, _ []string) error {
	env, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	if env.Config.Store.Backend == config.StoreMemory {
		return errors.New("migrate requires store.backend=postgres or sqlite")
	}

	cfg := env.Config
	cfg.PubSub.ProjectID = ""
	providers, err := app.NewApp(cmd.Context(), cfg, connector, env.Logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer providers.Close()

	migrator, ok := providers.Store.(app.Migrator)
	if !ok {
		return errors.New("store does not support migrations")
	}
	if err := migrator.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	env.Logger.Info("schema applied")
	fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
	return nil
}
