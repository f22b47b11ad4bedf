package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"quiz-proctor/internal/config"
	sqlitestore "quiz-proctor/internal/infra/sqlite"
	"quiz-proctor/internal/infra/sqlite/migrations"
)

// NewMigrateCmd applies local database migrations for the sqlite throttle store.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run local database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	path := cfg.Throttle.Path
	if path == "" {
		path = "throttle.db"
	}

	db, err := sqlitestore.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return applyMigrations(ctx, db)
}

func applyMigrations(ctx context.Context, db *bun.DB) error {
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	_, err := migrator.Migrate(ctx)
	return err
}
