package service

import (
	"fmt"
	"time"

	"github.com/devjogerio/web-scraping-facebook/internal/config"
	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"github.com/devjogerio/web-scraping-facebook/internal/repository"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RetentionReport 一次清理的结果
type RetentionReport struct {
	TasksDeleted       int `json:"tasks_deleted"`
	StuckRunsCancelled int `json:"stuck_runs_cancelled"`
	ExportsDeleted     int `json:"exports_deleted"`
	MissingFilesMarked int `json:"missing_files_marked"`
}

// RetentionService 数据保留服务接口
// 定期清理过期任务、卡死的运行和失效的导出
type RetentionService interface {
	Start() error
	Stop()
	RunOnce() (*RetentionReport, error)
}

// retentionService 数据保留服务实现
type retentionService struct {
	cfg        config.RetentionConfig
	taskSvc    TaskService
	taskRepo   repository.TaskRepository
	exportRepo repository.ExportJobRepository
	logger     *logrus.Logger
	cron       *cron.Cron
}

// NewRetentionService 创建数据保留服务
func NewRetentionService(cfg config.RetentionConfig, taskSvc TaskService, taskRepo repository.TaskRepository, exportRepo repository.ExportJobRepository, logger *logrus.Logger) RetentionService {
	return &retentionService{
		cfg:        cfg,
		taskSvc:    taskSvc,
		taskRepo:   taskRepo,
		exportRepo: exportRepo,
		logger:     logger,
		cron:       cron.New(),
	}
}

// Start 按配置的 cron 表达式启动定时清理
func (s *retentionService) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("retention disabled")
		return nil
	}
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		report, err := s.RunOnce()
		if err != nil {
			s.logger.WithError(err).Error("retention run failed")
			return
		}
		s.logger.WithFields(logrus.Fields{
			"tasks_deleted":        report.TasksDeleted,
			"stuck_runs_cancelled": report.StuckRunsCancelled,
			"exports_deleted":      report.ExportsDeleted,
			"missing_files_marked": report.MissingFilesMarked,
		}).Info("retention run completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention: %w", err)
	}
	s.cron.Start()
	s.logger.WithField("schedule", s.cfg.Schedule).Info("retention scheduler started")
	return nil
}

// Stop 停止定时清理并等待在途清理结束
func (s *retentionService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunOnce 立即执行一次完整清理
func (s *retentionService) RunOnce() (*RetentionReport, error) {
	report := &RetentionReport{}

	if err := s.cancelStuckRuns(report); err != nil {
		return report, err
	}
	if err := s.deleteOldTasks(report); err != nil {
		return report, err
	}
	if err := s.cleanExports(report); err != nil {
		return report, err
	}
	return report, nil
}

// cancelStuckRuns 把超时仍在 running 的任务落为失败
// 进程崩溃会留下没有租约的 running 任务
func (s *retentionService) cancelStuckRuns(report *RetentionReport) error {
	if s.cfg.StuckRunHours <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-time.Duration(s.cfg.StuckRunHours) * time.Hour)
	stuck, err := s.taskRepo.FindStuckRunning(cutoff)
	if err != nil {
		return fmt.Errorf("failed to find stuck tasks: %w", err)
	}
	for _, task := range stuck {
		// 仍持有租约的任务还在真实执行,跳过
		if _, held := s.taskSvc.LeaseCancel(task.ID); held {
			continue
		}
		task.FailExecution("执行超时,已被清理任务标记为失败")
		if err := s.taskRepo.Update(task); err != nil {
			s.logger.WithError(err).WithField("task_id", task.ID).Warn("failed to fail stuck task")
			continue
		}
		report.StuckRunsCancelled++
	}
	return nil
}

// deleteOldTasks 删除超过保留期的终态任务及其级联数据
func (s *retentionService) deleteOldTasks(report *RetentionReport) error {
	if s.cfg.TaskMaxAgeDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -s.cfg.TaskMaxAgeDays)
	old, err := s.taskRepo.FindOlderThan(cutoff)
	if err != nil {
		return fmt.Errorf("failed to find old tasks: %w", err)
	}
	for _, task := range old {
		if !task.Status.Terminal() {
			continue
		}
		if err := s.taskSvc.DeleteTask(task.ID); err != nil {
			s.logger.WithError(err).WithField("task_id", task.ID).Warn("failed to delete old task")
			continue
		}
		report.TasksDeleted++
	}
	return nil
}

// cleanExports 删除过期导出并标记文件已丢失的导出
func (s *retentionService) cleanExports(report *RetentionReport) error {
	if s.cfg.ExportMaxAgeDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -s.cfg.ExportMaxAgeDays)
		old, err := s.exportRepo.FindOlderThan(cutoff)
		if err != nil {
			return fmt.Errorf("failed to find old exports: %w", err)
		}
		for _, job := range old {
			if err := job.DeleteFile(); err != nil {
				s.logger.WithError(err).WithField("export_id", job.ID).Warn("failed to delete export file")
			}
			if err := s.exportRepo.Delete(job.ID); err != nil {
				s.logger.WithError(err).WithField("export_id", job.ID).Warn("failed to delete old export")
				continue
			}
			report.ExportsDeleted++
		}
	}

	// 已完成但文件被手工删掉的导出落为失败
	completed, err := s.exportRepo.FindByStatus(model.ExportStatusCompleted, 0)
	if err != nil {
		return fmt.Errorf("failed to list completed exports: %w", err)
	}
	for _, job := range completed {
		if job.FileExists() {
			continue
		}
		job.FailExport()
		if err := s.exportRepo.Update(job); err != nil {
			s.logger.WithError(err).WithField("export_id", job.ID).Warn("failed to mark export failed")
			continue
		}
		report.MissingFilesMarked++
	}
	return nil
}
