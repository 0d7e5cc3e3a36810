package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/devjogerio/web-scraping-facebook/internal/metrics"
	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"github.com/devjogerio/web-scraping-facebook/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TaskProgress 任务实时进度
type TaskProgress struct {
	TaskID           string   `json:"task_id"`
	Status           string   `json:"status"`
	ItemsProcessed   int      `json:"items_processed"`
	MaxItems         int      `json:"max_items"`
	ProgressPercent  float64  `json:"progress_percent"`
	ElapsedSeconds   *float64 `json:"elapsed_seconds,omitempty"`
	EstimatedSeconds *float64 `json:"estimated_seconds,omitempty"`
	ErrorMessage     string   `json:"error_message,omitempty"`
}

// TaskService 抓取任务服务接口
type TaskService interface {
	CreateTask(name, rawURL string, cfg *model.TaskConfig) (*model.TaskModel, error)
	GetTask(id string) (*model.TaskModel, error)
	ListTasks(filter *repository.TaskFilter) ([]*model.TaskModel, error)
	UpdateTask(id string, name, rawURL *string, cfg *model.TaskConfig) (*model.TaskModel, error)
	DeleteTask(id string) error

	StartTask(id string) (*model.TaskModel, error)
	CompleteTask(id string) (*model.TaskModel, error)
	FailTask(id string, message string) (*model.TaskModel, error)
	CancelTask(id string) (*model.TaskModel, error)
	IncrementProgress(id string, count int) (*model.TaskModel, error)
	GetProgress(id string) (*TaskProgress, error)

	AcquireLease(taskID string, taskURL string, cancel context.CancelFunc) error
	ReleaseLease(taskID string)
	LeaseCancel(taskID string) (context.CancelFunc, bool)
	ActiveLeases() []string
}

// taskService 任务服务实现
type taskService struct {
	taskRepo repository.TaskRepository
	dataRepo repository.FacebookDataRepository
	logger   *logrus.Logger

	// 运行租约: 任务 ID -> 取消函数,进程内唯一
	mu       sync.Mutex
	leases   map[string]context.CancelFunc
	leaseURL map[string]string
}

// NewTaskService 创建任务服务
func NewTaskService(taskRepo repository.TaskRepository, dataRepo repository.FacebookDataRepository, logger *logrus.Logger) TaskService {
	return &taskService{
		taskRepo: taskRepo,
		dataRepo: dataRepo,
		logger:   logger,
		leases:   make(map[string]context.CancelFunc),
		leaseURL: make(map[string]string),
	}
}

// CreateTask 创建抓取任务
func (s *taskService) CreateTask(name, rawURL string, cfg *model.TaskConfig) (*model.TaskModel, error) {
	// 1. 校验名称
	name = strings.TrimSpace(name)
	if err := validateTaskName(name); err != nil {
		return nil, err
	}

	// 2. 校验并规范化 URL
	normalized, err := NormalizeFacebookURL(rawURL)
	if err != nil {
		return nil, err
	}

	// 3. 校验配置,未提供时使用默认值
	config := model.DefaultTaskConfig()
	if cfg != nil {
		config = *cfg
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// 4. 构造并持久化任务
	task := &model.TaskModel{
		ID:     uuid.New().String(),
		Name:   name,
		URL:    normalized,
		Status: model.TaskStatusPending,
	}
	if err := task.SetConfig(config); err != nil {
		return nil, fmt.Errorf("failed to serialize task config: %w", err)
	}
	if err := s.taskRepo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	metrics.RecordTaskCreated()
	s.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"name":    task.Name,
		"url":     task.URL,
	}).Info("task created")
	return task, nil
}

// GetTask 获取任务详情
func (s *taskService) GetTask(id string) (*model.TaskModel, error) {
	task, err := s.taskRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// ListTasks 查询任务列表
func (s *taskService) ListTasks(filter *repository.TaskFilter) ([]*model.TaskModel, error) {
	if filter == nil {
		filter = &repository.TaskFilter{}
	}
	tasks, err := s.taskRepo.FindByFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask 更新任务,运行中的任务不允许修改
func (s *taskService) UpdateTask(id string, name, rawURL *string, cfg *model.TaskConfig) (*model.TaskModel, error) {
	task, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}
	if task.Status == model.TaskStatusRunning {
		return nil, ErrTaskBusy
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if err := validateTaskName(trimmed); err != nil {
			return nil, err
		}
		task.Name = trimmed
	}
	if rawURL != nil {
		normalized, err := NormalizeFacebookURL(*rawURL)
		if err != nil {
			return nil, err
		}
		task.URL = normalized
	}
	if cfg != nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := task.SetConfig(*cfg); err != nil {
			return nil, fmt.Errorf("failed to serialize task config: %w", err)
		}
	}

	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	s.logger.WithField("task_id", task.ID).Info("task updated")
	return task, nil
}

// DeleteTask 删除任务及其级联数据,运行中的任务不允许删除
func (s *taskService) DeleteTask(id string) error {
	task, err := s.GetTask(id)
	if err != nil {
		return err
	}
	if task.Status == model.TaskStatusRunning {
		return ErrTaskBusy
	}
	if _, held := s.LeaseCancel(id); held {
		return ErrTaskBusy
	}

	if err := s.taskRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	s.logger.WithField("task_id", id).Info("task deleted")
	return nil
}

// StartTask 将任务置为执行中
// 仅允许从 pending 或 failed 启动,重新执行会重置执行痕迹
// completed 和 cancelled 是终点,不允许再次启动
func (s *taskService) StartTask(id string) (*model.TaskModel, error) {
	task, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}
	if task.Status != model.TaskStatusPending && task.Status != model.TaskStatusFailed {
		return nil, &InvalidTransitionError{TaskID: id, From: string(task.Status), To: string(model.TaskStatusRunning)}
	}

	task.StartExecution()
	task.ItemsProcessed = 0
	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to start task: %w", err)
	}
	s.logger.WithField("task_id", id).Info("task started")
	return task, nil
}

// CompleteTask 标记任务完成
func (s *taskService) CompleteTask(id string) (*model.TaskModel, error) {
	return s.finish(id, model.TaskStatusCompleted, "")
}

// FailTask 标记任务失败并记录错误信息
func (s *taskService) FailTask(id string, message string) (*model.TaskModel, error) {
	return s.finish(id, model.TaskStatusFailed, message)
}

// CancelTask 标记任务取消
func (s *taskService) CancelTask(id string) (*model.TaskModel, error) {
	return s.finish(id, model.TaskStatusCancelled, "")
}

// finish 统一处理 running 到终态的转换
func (s *taskService) finish(id string, target model.TaskStatus, message string) (*model.TaskModel, error) {
	task, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}
	if task.Status != model.TaskStatusRunning {
		return nil, &InvalidTransitionError{TaskID: id, From: string(task.Status), To: string(target)}
	}

	switch target {
	case model.TaskStatusCompleted:
		task.CompleteExecution()
	case model.TaskStatusFailed:
		task.FailExecution(message)
	case model.TaskStatusCancelled:
		task.CancelExecution()
	}

	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to finish task: %w", err)
	}
	metrics.RecordTaskRun(string(target))
	s.logger.WithFields(logrus.Fields{
		"task_id": id,
		"status":  target,
	}).Info("task finished")
	return task, nil
}

// IncrementProgress 累加已处理条数,负数视为无效被忽略
func (s *taskService) IncrementProgress(id string, count int) (*model.TaskModel, error) {
	task, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}
	task.IncrementProcessed(count)
	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}
	return task, nil
}

// GetProgress 计算任务进度快照
// 根据已处理速率估算剩余时间
func (s *taskService) GetProgress(id string) (*TaskProgress, error) {
	task, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}
	cfg, err := task.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to parse task config: %w", err)
	}

	progress := &TaskProgress{
		TaskID:          task.ID,
		Status:          string(task.Status),
		ItemsProcessed:  task.ItemsProcessed,
		MaxItems:        cfg.MaxItems,
		ProgressPercent: task.ProgressPercentage(cfg.MaxItems),
		ElapsedSeconds:  task.Duration(),
		ErrorMessage:    task.ErrorMessage,
	}

	// 仅运行中且已有吞吐时估算剩余时间
	if task.Status == model.TaskStatusRunning && progress.ElapsedSeconds != nil &&
		*progress.ElapsedSeconds > 0 && task.ItemsProcessed > 0 {
		rate := float64(task.ItemsProcessed) / *progress.ElapsedSeconds
		remaining := float64(cfg.MaxItems - task.ItemsProcessed)
		if remaining > 0 && rate > 0 {
			eta := remaining / rate
			progress.EstimatedSeconds = &eta
		}
	}
	return progress, nil
}

// AcquireLease 获取任务运行租约
// 同一任务或同一 URL 已持有租约时返回忙碌错误,不排队
// 同一 URL 在库里遗留的 running 行同样拒绝,覆盖进程重启场景
func (s *taskService) AcquireLease(taskID string, taskURL string, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leases[taskID]; ok {
		return ErrTaskBusy
	}
	for _, u := range s.leaseURL {
		if u == taskURL {
			return ErrURLBusy
		}
	}

	sameURL, err := s.taskRepo.FindByURL(taskURL)
	if err != nil {
		return fmt.Errorf("failed to check tasks by url: %w", err)
	}
	for _, other := range sameURL {
		if other.ID != taskID && other.Status == model.TaskStatusRunning {
			return ErrURLBusy
		}
	}

	s.leases[taskID] = cancel
	s.leaseURL[taskID] = taskURL
	return nil
}

// ReleaseLease 释放任务运行租约
func (s *taskService) ReleaseLease(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leases, taskID)
	delete(s.leaseURL, taskID)
}

// LeaseCancel 获取租约对应的取消函数
func (s *taskService) LeaseCancel(taskID string) (context.CancelFunc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.leases[taskID]
	return cancel, ok
}

// ActiveLeases 列出持有租约的任务 ID
func (s *taskService) ActiveLeases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.leases))
	for id := range s.leases {
		ids = append(ids, id)
	}
	return ids
}

// validateTaskName 校验任务名称长度
func validateTaskName(name string) error {
	if len(name) < 3 {
		return NewValidationError("name", "名称至少需要 3 个字符")
	}
	if len(name) > 255 {
		return NewValidationError("name", "名称不能超过 255 个字符")
	}
	return nil
}

// NormalizeFacebookURL 校验并规范化 Facebook URL
// 补全协议、统一为 https 和 www 域名、去掉查询参数和结尾斜杠
func NormalizeFacebookURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", NewValidationError("url", "URL 不能为空")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", NewValidationError("url", "URL 格式无效")
	}

	parsed.Scheme = "https"
	host := strings.ToLower(parsed.Host)
	switch {
	case host == "m.facebook.com", host == "mobile.facebook.com":
		host = "www.facebook.com"
	case host == "facebook.com":
		host = "www.facebook.com"
	}
	if host != "www.facebook.com" && host != "mbasic.facebook.com" &&
		!strings.HasSuffix(host, ".facebook.com") {
		return "", NewValidationError("url", "必须是 Facebook 的 URL")
	}
	parsed.Host = host

	parsed.RawQuery = ""
	parsed.Fragment = ""
	normalized := strings.TrimRight(parsed.String(), "/")
	return normalized, nil
}
