package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/project-kessel/oidcforge/internal/config"
)

// configFile is the --config flag shared by every subcommand
var configFile string

// NewRootCmd creates the oidcforge command tree
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oidcforge",
		Short: "Configure and inspect an OpenID Connect server",
		Long: `oidcforge builds OpenID Connect server and validation options from
configuration, resolves the persistence stores and manages the SQL schema.

Configuration precedence (highest to lowest):
  1. Command-line flags
  2. Environment variables (OIDCFORGE_*)
  3. Configuration file (if --config or OIDCFORGE_CONFIG is set)
  4. Built-in defaults`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file (.yaml, .json or .toml)")

	cmd.AddCommand(NewInspectCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// loadProvider loads the configuration of cmd and creates a provider whose
// observer logs to the command's error stream
func loadProvider(cmd *cobra.Command) (*config.Provider, error) {
	configPath := configFile
	if configPath == "" {
		configPath = os.Getenv("OIDCFORGE_CONFIG")
	}

	loader, err := config.NewLoaderWithFlags(configPath, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg, err := loader.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	provider := config.NewProvider(cfg)

	observer, err := config.NewObserver(cfg.Observability, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("failed to create observer: %w", err)
	}
	provider.SetObserver(observer)

	return provider, nil
}
