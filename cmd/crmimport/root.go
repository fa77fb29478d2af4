package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crmimport/internal/config"
	"github.com/JonMunkholm/crmimport/internal/core"
	_ "github.com/JonMunkholm/crmimport/internal/core/entities" // Register all entities
	"github.com/JonMunkholm/crmimport/internal/logging"
)

const defaultEnvFile = "credentials.env"

// app carries state shared by subcommands after PersistentPreRunE.
type app struct {
	envFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "crmimport",
		Short:         "Migrate CRM extracts into Salesforce with idempotent upserts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.Flags().Changed("env-file"))
		},
	}
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", defaultEnvFile, "credentials file loaded into the environment")

	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newEntitiesCmd())
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// load reads the credentials file, the configuration and sets up logging.
// A missing default credentials file is not an error.
func (a *app) load(explicitEnvFile bool) error {
	if err := godotenv.Load(a.envFile); err != nil {
		if explicitEnvFile || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	a.cfg = cfg
	return nil
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}

// describeError prefers the operator-facing message when one is known.
func describeError(err error) string {
	if core.IsUserFacing(err) {
		return fmt.Sprintf("%s\n  %v", core.FormatUserError(err), err)
	}
	return err.Error()
}
