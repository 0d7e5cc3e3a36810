package service

import (
	"fmt"

	"github.com/devjogerio/web-scraping-facebook/internal/metrics"
	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"github.com/devjogerio/web-scraping-facebook/internal/repository"
	"github.com/sirupsen/logrus"
)

// DashboardStatistics 仪表盘统计数据
type DashboardStatistics struct {
	TotalTasks     int64                        `json:"total_tasks"`
	TasksByStatus  map[model.TaskStatus]int64   `json:"tasks_by_status"`
	ActiveTasks    int                          `json:"active_tasks"`
	TotalRecords   int64                        `json:"total_records"`
	Exports        *repository.ExportStatistics `json:"exports"`
	RecentTasks    []*model.TaskModel           `json:"recent_tasks"`
}

// TaskStatistics 单个任务的统计数据
type TaskStatistics struct {
	TaskID        string                    `json:"task_id"`
	Status        model.TaskStatus          `json:"status"`
	TotalRecords  int64                     `json:"total_records"`
	RecordsByType map[model.DataType]int64  `json:"records_by_type"`
	Duration      *float64                  `json:"duration_seconds,omitempty"`
	ExportCount   int                       `json:"export_count"`
}

// StatisticsService 统计服务接口
type StatisticsService interface {
	Dashboard() (*DashboardStatistics, error)
	TaskStatistics(taskID string) (*TaskStatistics, error)
	RefreshStateMetrics() error
}

// statisticsService 统计服务实现
type statisticsService struct {
	taskSvc    TaskService
	taskRepo   repository.TaskRepository
	dataRepo   repository.FacebookDataRepository
	exportRepo repository.ExportJobRepository
	logger     *logrus.Logger
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(taskSvc TaskService, taskRepo repository.TaskRepository, dataRepo repository.FacebookDataRepository, exportRepo repository.ExportJobRepository, logger *logrus.Logger) StatisticsService {
	return &statisticsService{
		taskSvc:    taskSvc,
		taskRepo:   taskRepo,
		dataRepo:   dataRepo,
		exportRepo: exportRepo,
		logger:     logger,
	}
}

// Dashboard 汇总仪表盘统计
func (s *statisticsService) Dashboard() (*DashboardStatistics, error) {
	total, err := s.taskRepo.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	byStatus, err := s.taskRepo.CountByStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	records, err := s.dataRepo.CountAll()
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	exports, err := s.exportRepo.Statistics()
	if err != nil {
		return nil, fmt.Errorf("failed to load export statistics: %w", err)
	}
	recent, err := s.taskRepo.FindAll(10, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent tasks: %w", err)
	}

	return &DashboardStatistics{
		TotalTasks:    total,
		TasksByStatus: byStatus,
		ActiveTasks:   len(s.taskSvc.ActiveLeases()),
		TotalRecords:  records,
		Exports:       exports,
		RecentTasks:   recent,
	}, nil
}

// TaskStatistics 单任务统计
func (s *statisticsService) TaskStatistics(taskID string) (*TaskStatistics, error) {
	task, err := s.taskSvc.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	total, err := s.dataRepo.CountByTaskID(taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to count task records: %w", err)
	}
	byType, err := s.dataRepo.CountByType(taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to count records by type: %w", err)
	}
	exports, err := s.exportRepo.FindByTaskID(taskID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list task exports: %w", err)
	}

	return &TaskStatistics{
		TaskID:        task.ID,
		Status:        task.Status,
		TotalRecords:  total,
		RecordsByType: byType,
		Duration:      task.Duration(),
		ExportCount:   len(exports),
	}, nil
}

// RefreshStateMetrics 刷新任务状态分布指标
// 每种合法状态都写入,归零已消失的状态
func (s *statisticsService) RefreshStateMetrics() error {
	counts, err := s.taskRepo.CountByStatus()
	if err != nil {
		return fmt.Errorf("failed to count tasks by status: %w", err)
	}
	for _, status := range model.ValidTaskStatuses {
		metrics.UpdateTasksByState(string(status), float64(counts[status]))
	}
	return nil
}
