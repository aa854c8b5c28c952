package main

import (
	"context"
	"io"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Maruda-Patryk/api-library/catalog/app"
	"github.com/Maruda-Patryk/api-library/catalog/config"
	"github.com/Maruda-Patryk/api-library/catalog/internal/service"
	"github.com/Maruda-Patryk/api-library/catalog/internal/transition"
	"github.com/Maruda-Patryk/api-library/catalog/migrations"
	"github.com/Maruda-Patryk/api-library/pkg/logger"
	"github.com/Maruda-Patryk/api-library/pkg/postgres"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Administer the book catalog",
		SilenceUsage:  true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load() //nolint:errcheck
		},
	}
	root.AddCommand(newMigrateCmd(), newBooksCmd(), newMembersCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := postgres.NewPostgresDB(cmd.Context(), &cfg.Database, migrations.MigrationFiles)
			if err != nil {
				return err
			}
			db.Close()
			cmd.Println("migrations applied")
			return nil
		},
	}
}

// withService runs fn against the configured storage. Events are not published from the CLI.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewLogger(cfg.Log, "catalogctl")
	defer log.Sync() //nolint:errcheck

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	repo, closeRepo, err := app.NewRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	coord := transition.NewCoordinator(repo, log, transition.WithLockTimeout(cfg.Catalog.LockTimeout))
	svc := service.NewService(repo, coord, service.NopPublisher{}, log)
	if err := fn(ctx, svc); err != nil {
		log.Debug("command failed", zap.String("command", cmd.CommandPath()), zap.Error(err))
		return err
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
