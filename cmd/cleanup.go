package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/zidanDirk/foodsafety/internal/api"
	"github.com/zidanDirk/foodsafety/internal/config"
	"github.com/zidanDirk/foodsafety/internal/database"
	"github.com/zidanDirk/foodsafety/internal/service"
	"github.com/zidanDirk/foodsafety/internal/store"
)

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired tasks from the database",
	Long: `Run a single cleanup sweep against the database task store.
Tasks older than the retention window are deleted. The running server
performs the same sweep periodically; this command is for manual or
scheduled (cron) maintenance.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if !cfg.Database.IsConfigured() {
			return fmt.Errorf("database is not configured, nothing to clean up")
		}

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		defer func() {
			sqlDB, _ := db.DB()
			if sqlDB != nil {
				sqlDB.Close()
			}
		}()

		logger := api.NewLogger()
		taskStore := store.NewDatabaseStore(db, logger)
		worker := service.NewCleanupWorker(taskStore, 0, logger)

		count := worker.RunOnce(context.Background())
		log.Printf("Cleanup completed, removed %d expired tasks", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().String("config", "", "Config file path (default: search in current directory, ./config, or $HOME/.foodsafety)")
}
