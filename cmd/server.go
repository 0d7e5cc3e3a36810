/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devjogerio/web-scraping-facebook/internal/api"
	"github.com/devjogerio/web-scraping-facebook/internal/config"
	"github.com/devjogerio/web-scraping-facebook/internal/container"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the fb-scraper API server.
The server exposes REST endpoints for managing scraping tasks,
extracted data and Excel exports, plus a WebSocket progress feed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// 2. 初始化容器
		ctr, err := container.NewContainer(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()
		logger := ctr.Logger()

		// 3. 启动后台组件
		ctr.MetricsCollector().Start()
		defer ctr.MetricsCollector().Stop()
		if err := ctr.RetentionService().Start(); err != nil {
			return fmt.Errorf("failed to start retention scheduler: %w", err)
		}
		defer ctr.RetentionService().Stop()

		// 4. 初始化控制器并注册路由
		taskController := api.NewTaskController(ctr.TaskService(), ctr.ScrapeService(), ctr.StatisticsService(), ctr.DataRepository())
		exportController := api.NewExportController(ctr.ExportService())
		dashboardController := api.NewDashboardController(ctr.StatisticsService())
		router := api.SetupRoutes(cfg, ctr.DB(), ctr.Hub(), taskController, exportController, dashboardController)

		// 5. 启动服务器
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

		logger.Info("shutting down server")

		// 优雅关闭
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Fatal("server forced to shutdown")
		}

		logger.Info("server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
