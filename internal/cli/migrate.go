package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/project-kessel/oidcforge/internal/config"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL schema migrations",
		Long: `Apply the pending schema migrations of the configured SQL store backend.

Examples:
  # Migrate a SQLite database
  oidcforge migrate --store-backend sqlite --store-dsn ./oidc.db

  # Migrate the PostgreSQL database named in a config file
  oidcforge migrate --config /etc/oidcforge/config.yaml`,
		RunE: runMigrate,
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	provider, err := loadProvider(cmd)
	if err != nil {
		return err
	}
	defer provider.Close()

	db, err := provider.SQLDatabase(ctx)
	if err != nil {
		return err
	}

	applied, err := db.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	version, err := db.Version(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, m := range applied {
		fmt.Fprintf(out, "applied %s\n", m.Name)
	}
	fmt.Fprintf(out, "schema version %d (%s)\n", version, db.Dialect())
	return nil
}
