package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/devjogerio/web-scraping-facebook/internal/excel"
	"github.com/devjogerio/web-scraping-facebook/internal/metrics"
	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"github.com/devjogerio/web-scraping-facebook/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ExportService 导出服务接口
type ExportService interface {
	RequestExport(taskID string, options map[string]interface{}) (*model.ExportJobModel, error)
	RunExport(taskID string, options map[string]interface{}) (*model.ExportJobModel, error)
	GetExport(id string) (*model.ExportJobModel, error)
	ListExports(limit, offset int) ([]*model.ExportJobModel, error)
	TaskHistory(taskID string) ([]*model.ExportJobModel, error)
	DeleteExport(id string) error
	ValidateFile(id string) (*model.ExportJobModel, error)
	Statistics() (*repository.ExportStatistics, error)
}

// exportService 导出服务实现
type exportService struct {
	taskRepo   repository.TaskRepository
	dataRepo   repository.FacebookDataRepository
	exportRepo repository.ExportJobRepository
	sink       excel.Sink
	exportDir  string
	logger     *logrus.Logger

	// 导出租约: 同一任务同时只允许一次导出,进程内唯一
	mu     sync.Mutex
	active map[string]struct{}
}

// NewExportService 创建导出服务
func NewExportService(taskRepo repository.TaskRepository, dataRepo repository.FacebookDataRepository, exportRepo repository.ExportJobRepository, sink excel.Sink, exportDir string, logger *logrus.Logger) ExportService {
	return &exportService{
		taskRepo:   taskRepo,
		dataRepo:   dataRepo,
		exportRepo: exportRepo,
		sink:       sink,
		exportDir:  exportDir,
		logger:     logger,
		active:     make(map[string]struct{}),
	}
}

// acquire 获取任务的导出租约,已持有时返回忙碌错误,不排队
func (s *exportService) acquire(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[taskID]; ok {
		return ErrExportBusy
	}
	s.active[taskID] = struct{}{}
	return nil
}

// release 释放任务的导出租约
func (s *exportService) release(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, taskID)
}

// RequestExport 创建导出任务并在后台执行
// 租约从校验开始持有到后台渲染结束,并发请求直接报忙碌
func (s *exportService) RequestExport(taskID string, options map[string]interface{}) (*model.ExportJobModel, error) {
	if err := s.acquire(taskID); err != nil {
		return nil, err
	}

	job, task, err := s.prepare(taskID)
	if err != nil {
		s.release(taskID)
		return nil, err
	}

	go func() {
		defer s.release(taskID)
		if err := s.process(job, task, options); err != nil {
			s.logger.WithError(err).WithField("export_id", job.ID).Error("export failed")
		}
	}()
	return job, nil
}

// RunExport 创建导出任务并同步执行完成,终端适配器使用
func (s *exportService) RunExport(taskID string, options map[string]interface{}) (*model.ExportJobModel, error) {
	if err := s.acquire(taskID); err != nil {
		return nil, err
	}
	defer s.release(taskID)

	job, task, err := s.prepare(taskID)
	if err != nil {
		return nil, err
	}
	if err := s.process(job, task, options); err != nil {
		return job, err
	}
	return job, nil
}

// prepare 校验导出资格并落库一条待处理的导出任务
func (s *exportService) prepare(taskID string) (*model.ExportJobModel, *model.TaskModel, error) {
	// 1. 任务必须存在且已完成
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrTaskNotFound
		}
		return nil, nil, fmt.Errorf("failed to find task: %w", err)
	}
	if task.Status != model.TaskStatusCompleted {
		return nil, nil, ErrNotEligible
	}

	// 2. 必须有可导出的数据
	count, err := s.dataRepo.CountByTaskID(taskID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count records: %w", err)
	}
	if count == 0 {
		return nil, nil, ErrNoData
	}

	// 3. 库里遗留的未完结导出也拒绝,覆盖进程重启场景
	// 并发互斥由调用方持有的导出租约保证
	for _, status := range []model.ExportStatus{model.ExportStatusPending, model.ExportStatusProcessing} {
		jobs, err := s.exportRepo.FindByStatus(status, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check running exports: %w", err)
		}
		for _, j := range jobs {
			if j.TaskID == taskID {
				return nil, nil, ErrExportBusy
			}
		}
	}

	// 4. 生成文件名并落库
	filename := model.GenerateExportFilename(task.Name, task.ID, time.Now())
	job := &model.ExportJobModel{
		ID:       uuid.New().String(),
		TaskID:   taskID,
		Filename: filename,
		FilePath: filepath.Join(s.exportDir, filename),
		Status:   model.ExportStatusPending,
	}
	if err := s.exportRepo.Create(job); err != nil {
		return nil, nil, fmt.Errorf("failed to create export job: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"export_id": job.ID,
		"task_id":   taskID,
		"filename":  filename,
	}).Info("export job created")
	return job, task, nil
}

// process 执行导出: 整理数据、渲染工作簿、更新任务状态
func (s *exportService) process(job *model.ExportJobModel, task *model.TaskModel, options map[string]interface{}) error {
	started := time.Now()

	job.StartProcessing()
	if err := s.exportRepo.Update(job); err != nil {
		return fmt.Errorf("failed to mark export processing: %w", err)
	}

	fail := func(cause error) error {
		job.FailExport()
		if err := s.exportRepo.Update(job); err != nil {
			s.logger.WithError(err).Error("failed to mark export failed")
		}
		metrics.RecordExport(string(model.ExportStatusFailed), time.Since(started).Seconds())
		return cause
	}

	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return fail(fmt.Errorf("failed to create export dir: %w", err))
	}

	records, err := s.dataRepo.FindForExport(job.TaskID)
	if err != nil {
		return fail(fmt.Errorf("failed to load records: %w", err))
	}
	if len(records) == 0 {
		return fail(ErrNoData)
	}

	dataset := OrganizeRecords(records)
	opts := excel.DefaultOptions().Apply(options)
	meta := excel.TaskMeta{
		ID:             task.ID,
		Name:           task.Name,
		URL:            task.URL,
		Status:         string(task.Status),
		ItemsProcessed: task.ItemsProcessed,
		CreatedAt:      task.CreatedAt,
		StartedAt:      task.StartedAt,
		CompletedAt:    task.CompletedAt,
	}

	size, err := s.sink.Render(job.FilePath, meta, dataset, opts)
	if err != nil {
		return fail(fmt.Errorf("failed to render workbook: %w", err))
	}

	job.CompleteExport(size)
	if err := s.exportRepo.Update(job); err != nil {
		return fmt.Errorf("failed to mark export completed: %w", err)
	}
	metrics.RecordExport(string(model.ExportStatusCompleted), time.Since(started).Seconds())
	s.logger.WithFields(logrus.Fields{
		"export_id": job.ID,
		"file_size": size,
		"records":   dataset.Total,
	}).Info("export completed")
	return nil
}

// GetExport 获取导出任务详情
func (s *exportService) GetExport(id string) (*model.ExportJobModel, error) {
	job, err := s.exportRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExportNotFound
		}
		return nil, fmt.Errorf("failed to find export job: %w", err)
	}
	return job, nil
}

// ListExports 查询导出任务列表
func (s *exportService) ListExports(limit, offset int) ([]*model.ExportJobModel, error) {
	jobs, err := s.exportRepo.FindAll(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list export jobs: %w", err)
	}
	return jobs, nil
}

// TaskHistory 查询指定任务的导出历史
func (s *exportService) TaskHistory(taskID string) ([]*model.ExportJobModel, error) {
	if _, err := s.taskRepo.FindByID(taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	jobs, err := s.exportRepo.FindByTaskID(taskID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list task exports: %w", err)
	}
	return jobs, nil
}

// DeleteExport 删除导出任务及其文件
func (s *exportService) DeleteExport(id string) error {
	job, err := s.GetExport(id)
	if err != nil {
		return err
	}
	if err := job.DeleteFile(); err != nil {
		s.logger.WithError(err).WithField("export_id", id).Warn("failed to delete export file")
	}
	if err := s.exportRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete export job: %w", err)
	}
	s.logger.WithField("export_id", id).Info("export deleted")
	return nil
}

// ValidateFile 校验导出文件是否仍然存在
// 文件丢失的已完成导出会被标记为失败
func (s *exportService) ValidateFile(id string) (*model.ExportJobModel, error) {
	job, err := s.GetExport(id)
	if err != nil {
		return nil, err
	}
	if job.Status != model.ExportStatusCompleted {
		return job, nil
	}
	if !job.FileExists() {
		job.FailExport()
		if err := s.exportRepo.Update(job); err != nil {
			return nil, fmt.Errorf("failed to mark export failed: %w", err)
		}
		return job, ErrFileMissing
	}
	return job, nil
}

// Statistics 导出统计
func (s *exportService) Statistics() (*repository.ExportStatistics, error) {
	stats, err := s.exportRepo.Statistics()
	if err != nil {
		return nil, fmt.Errorf("failed to load export statistics: %w", err)
	}
	return stats, nil
}
