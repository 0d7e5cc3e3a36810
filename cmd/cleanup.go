/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/devjogerio/web-scraping-facebook/internal/config"
	"github.com/devjogerio/web-scraping-facebook/internal/container"
	"github.com/spf13/cobra"
)

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run data retention cleanup once",
	Long: `Delete expired tasks and exports, mark stuck runs as failed
and flag exports whose files have gone missing. Uses the same
rules as the scheduled retention job.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置并初始化容器
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		ctr, err := container.NewContainer(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		// 2. 立即执行一轮清理
		report, err := ctr.RetentionService().RunOnce()
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}

		fmt.Printf("tasks deleted:        %d\n", report.TasksDeleted)
		fmt.Printf("stuck runs failed:    %d\n", report.StuckRunsCancelled)
		fmt.Printf("exports deleted:      %d\n", report.ExportsDeleted)
		fmt.Printf("missing files marked: %d\n", report.MissingFilesMarked)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
