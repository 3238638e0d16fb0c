package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elishakaranja/Mindset-coach/internal/app"
	"github.com/elishakaranja/Mindset-coach/internal/config"
	"github.com/elishakaranja/Mindset-coach/internal/db"
)

var rootCmd = &cobra.Command{
	Use:          "coachd",
	Short:        "Mindset coach API server and reply worker",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), app.Options{Publisher: true, Redis: true}, func(ctx context.Context, a *app.App) error {
			if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
				if err := db.Migrate(a.DB); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}
			return a.Serve(ctx)
		})
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queued chat replies",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), app.Options{}, func(ctx context.Context, a *app.App) error {
			return a.RunWorker(ctx)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.Load()
		gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return err
		}
		defer db.Close(gdb)
		if err := db.Migrate(gdb); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("migrate", true, "run schema migration before serving")
	rootCmd.AddCommand(serveCmd, workerCmd, migrateCmd)
}

func withApp(ctx context.Context, opts app.Options, run func(context.Context, *app.App) error) error {
	cfg := config.Load()
	log, err := app.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(ctx, cfg, log, opts)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.Close()
	return run(ctx, a)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
