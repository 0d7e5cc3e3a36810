/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cheggaaa/pb/v3"
	"github.com/common-nighthawk/go-figure"
	"github.com/devjogerio/web-scraping-facebook/internal/config"
	"github.com/devjogerio/web-scraping-facebook/internal/container"
	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"github.com/devjogerio/web-scraping-facebook/internal/websocket"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scraping task from the terminal",
	Long: `Create and execute a scraping task directly from the terminal,
with a live progress bar. Optionally export the results to an
Excel workbook when scraping finishes.`,
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

		figure.NewFigure("fb-scraper", "", true).Print()
		fmt.Println()

		// 2. 确定要执行的任务: 复用已有任务或新建
		taskID, _ := cmd.Flags().GetString("task")
		if taskID == "" {
			name, _ := cmd.Flags().GetString("name")
			rawURL, _ := cmd.Flags().GetString("url")
			if name == "" || rawURL == "" {
				return fmt.Errorf("必须提供 --task,或同时提供 --name 和 --url")
			}

			taskCfg := model.DefaultTaskConfig()
			if typesStr, _ := cmd.Flags().GetString("types"); typesStr != "" {
				taskCfg.DataTypes = nil
				for _, t := range strings.Split(typesStr, ",") {
					taskCfg.DataTypes = append(taskCfg.DataTypes, model.DataType(strings.TrimSpace(t)))
				}
			}
			if maxItems, _ := cmd.Flags().GetInt("max-items"); maxItems > 0 {
				taskCfg.MaxItems = maxItems
			}

			task, err := ctr.TaskService().CreateTask(name, rawURL, &taskCfg)
			if err != nil {
				return err
			}
			taskID = task.ID
			color.Cyan("任务已创建: %s (%s)", task.Name, task.ID)
		}

		task, err := ctr.TaskService().GetTask(taskID)
		if err != nil {
			return err
		}
		taskCfg, err := task.GetConfig()
		if err != nil {
			return err
		}
		color.Cyan("目标: %s", task.URL)
		color.Cyan("数据类型: %v, 上限 %d 条", taskCfg.DataTypes, taskCfg.MaxItems)
		fmt.Println()

		// 3. 进度条跟随进度事件
		bar := pb.StartNew(taskCfg.MaxItems)
		ctr.ScrapeService().OnProgress(func(event websocket.ProgressEvent) {
			bar.SetCurrent(int64(event.ItemsProcessed))
		})

		// 4. Ctrl+C 触发协作式取消
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-quit
			color.Yellow("\n正在停止任务...")
			_ = ctr.ScrapeService().Stop(taskID)
			cancel()
		}()

		// 5. 同步执行抓取
		runErr := ctr.ScrapeService().Run(ctx, taskID)
		bar.Finish()
		if runErr != nil {
			return runErr
		}

		task, err = ctr.TaskService().GetTask(taskID)
		if err != nil {
			return err
		}
		switch task.Status {
		case model.TaskStatusCompleted:
			color.Green("抓取完成: 共 %d 条数据", task.ItemsProcessed)
		case model.TaskStatusCancelled:
			color.Yellow("任务已取消: 已保留 %d 条数据", task.ItemsProcessed)
			return nil
		case model.TaskStatusFailed:
			color.Red("任务失败: %s", task.ErrorMessage)
			return nil
		}

		// 6. 可选导出
		if export, _ := cmd.Flags().GetBool("export"); export {
			job, err := ctr.ExportService().RunExport(taskID, nil)
			if err != nil {
				return err
			}
			color.Green("导出完成: %s (%s)", job.FilePath, job.FormattedFileSize())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("task", "", "已有任务 ID,复用该任务执行")
	runCmd.Flags().String("name", "", "新任务名称")
	runCmd.Flags().String("url", "", "要抓取的 Facebook URL")
	runCmd.Flags().String("types", "", "数据类型,逗号分隔 (post,comment,profile,like,share)")
	runCmd.Flags().Int("max-items", 0, "抓取条数上限")
	runCmd.Flags().Bool("export", false, "抓取完成后导出 Excel")
}
