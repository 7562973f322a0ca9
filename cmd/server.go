package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zidanDirk/foodsafety/internal/api"
	"github.com/zidanDirk/foodsafety/internal/config"
	"github.com/zidanDirk/foodsafety/internal/database"
	"github.com/zidanDirk/foodsafety/internal/pipeline"
	"github.com/zidanDirk/foodsafety/internal/provider"
	"github.com/zidanDirk/foodsafety/internal/service"
	"github.com/zidanDirk/foodsafety/internal/store"
	"gorm.io/gorm"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the Foodsafety API server.
The server will listen on the configured host and port.
Uploaded label images are processed asynchronously; clients poll
the task status endpoint for progress and the final report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger, err := api.NewLoggerFromConfig(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		// 2. 初始化存储后端
		// 数据库未配置或连接失败时直接以纯内存模式启动,不阻塞服务
		var db *gorm.DB
		var primary store.TaskStore
		if cfg.Database.IsConfigured() {
			db, err = database.ConnectWithRetry(cfg.Database, 3, 2*time.Second)
			if err != nil {
				logger.WithError(err).Warn("database unavailable, falling back to memory store")
			} else {
				if err := database.Migrate(db); err != nil {
					return fmt.Errorf("failed to run migrations: %w", err)
				}
				primary = store.NewDatabaseStore(db, logger)
			}
		} else {
			logger.Info("database not configured, using memory store")
		}

		memoryStore := store.NewMemoryStore(logger)
		taskStore := store.NewFailoverStore(primary, memoryStore, logger)

		// 3. 初始化处理流水线
		ocrClient := provider.NewOCRClient(cfg.OCR, logger)
		aiClient := provider.NewAIClient(cfg.AI, logger)
		orchestrator := pipeline.NewOrchestrator(taskStore, ocrClient, aiClient, logger)

		runner, err := pipeline.NewRunner(orchestrator, cfg.Pipeline.Workers, time.Duration(cfg.Pipeline.Timeout)*time.Second, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize pipeline runner: %w", err)
		}
		defer runner.Release()

		// 4. 初始化服务和控制器
		taskService := service.NewTaskService(taskStore, runner, cfg.Upload, logger)
		healthController := api.NewHealthController(db, taskStore, cfg)

		// 5. 启动后台清理
		cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
		defer cancelCleanup()
		cleanupWorker := service.NewCleanupWorker(taskStore, time.Duration(cfg.Cleanup.Interval)*time.Second, logger)
		go cleanupWorker.Start(cleanupCtx)

		// 6. 监听配置文件变更,支持运行时调整日志级别
		if configPath != "" {
			watcher := config.NewWatcher(cfg, configPath)
			watcher.OnConfigChange(func(updated *config.Config) {
				level, err := logrus.ParseLevel(updated.Log.Level)
				if err != nil {
					logger.WithError(err).Warn("invalid log level in updated config")
					return
				}
				logger.SetLevel(level)
				logger.WithField("level", updated.Log.Level).Info("log level updated")
			})
			if err := watcher.Start(); err != nil {
				logger.WithError(err).Warn("failed to watch config file")
			} else {
				defer watcher.Stop()
			}
		}

		// 7. 设置路由并启动服务器
		router := api.SetupRoutes(cfg, logger, taskService, healthController)

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		go func() {
			logger.WithField("addr", addr).Info("server starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Fatal("failed to start server")
			}
		}()

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("shutting down server...")

		// 优雅关闭
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		if db != nil {
			sqlDB, _ := db.DB()
			if sqlDB != nil {
				sqlDB.Close()
			}
		}

		logger.Info("server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// 服务器配置标志
	serverCmd.Flags().String("config", "", "Config file path (default: search in current directory, ./config, or $HOME/.foodsafety)")
}
