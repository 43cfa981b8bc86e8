package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/app"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Printf("uploadd: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "uploadd",
		Short:         "Resumable upload server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the upload HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(configPath)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return application.Run()
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(configPath)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer application.Close()

			if err := application.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.Info("Migrations applied")
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "reclaim",
		Short: "Reclaim expired upload sessions once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(configPath)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer application.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			stats, err := application.ReclaimOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reclaimed %d sessions (%d bytes), skipped %d\n",
				stats.ReclaimedSessions, stats.ReclaimedBytes, stats.Skipped)
			return nil
		},
	})

	return rootCmd
}
