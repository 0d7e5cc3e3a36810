package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 等待执行
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成
	TaskStatusFailed    TaskStatus = "failed"    // 执行失败
	TaskStatusCancelled TaskStatus = "cancelled" // 已取消
)

// ValidTaskStatuses 所有合法的任务状态
var ValidTaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusRunning,
	TaskStatusCompleted,
	TaskStatusFailed,
	TaskStatusCancelled,
}

// TaskModel 抓取任务数据模型
type TaskModel struct {
	ID             string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name           string         `gorm:"type:varchar(255);not null" json:"name"`                     // 任务名称
	URL            string         `gorm:"type:text;not null" json:"url"`                              // 目标 Facebook URL
	Status         TaskStatus     `gorm:"type:varchar(20);not null;index;default:pending" json:"status"` // 任务状态
	Config         datatypes.JSON `gorm:"type:jsonb" json:"config"`                                   // 序列化后的 TaskConfig
	ItemsProcessed int            `gorm:"not null;default:0" json:"items_processed"`                  // 已处理条目数
	ErrorMessage   string         `gorm:"type:text" json:"error_message,omitempty"`                   // 失败原因
	CreatedAt      time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`   // 首次离开 pending 的时间
	CompletedAt    *time.Time     `json:"completed_at,omitempty"` // 进入终态的时间
}

// TableName 指定表名
func (TaskModel) TableName() string {
	return "scraping_tasks"
}

// Validate 验证任务模型
func (tm *TaskModel) Validate() error {
	if tm.ID == "" {
		return errors.New("task ID is required")
	}
	if tm.Name == "" {
		return errors.New("task name is required")
	}
	if tm.URL == "" {
		return errors.New("task URL is required")
	}
	if !tm.Status.Valid() {
		return errors.New("task status is invalid")
	}
	return nil
}

// Valid 检查状态是否合法
func (s TaskStatus) Valid() bool {
	for _, v := range ValidTaskStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal 检查状态是否为终态
// 终态任务只能通过重新执行回到 running
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// StartExecution 标记任务开始执行
func (tm *TaskModel) StartExecution() {
	now := time.Now().UTC()
	tm.Status = TaskStatusRunning
	tm.StartedAt = &now
	tm.CompletedAt = nil
	tm.ErrorMessage = ""
}

// CompleteExecution 标记任务执行完成
func (tm *TaskModel) CompleteExecution() {
	now := time.Now().UTC()
	tm.Status = TaskStatusCompleted
	tm.CompletedAt = &now
}

// FailExecution 标记任务执行失败
func (tm *TaskModel) FailExecution(message string) {
	now := time.Now().UTC()
	tm.Status = TaskStatusFailed
	tm.ErrorMessage = message
	tm.CompletedAt = &now
}

// CancelExecution 取消任务执行
func (tm *TaskModel) CancelExecution() {
	now := time.Now().UTC()
	tm.Status = TaskStatusCancelled
	tm.CompletedAt = &now
}

// IncrementProcessed 增加已处理条目计数
func (tm *TaskModel) IncrementProcessed(count int) {
	if count < 0 {
		return
	}
	tm.ItemsProcessed += count
}

// IsActive 检查任务是否正在执行
func (tm *TaskModel) IsActive() bool {
	return tm.Status == TaskStatusRunning
}

// IsCompleted 检查任务是否已完成
func (tm *TaskModel) IsCompleted() bool {
	return tm.Status == TaskStatusCompleted
}

// Duration 计算执行时长（秒）
// 未启动的任务返回 nil；执行中的任务按当前时间计算
func (tm *TaskModel) Duration() *float64 {
	if tm.StartedAt == nil {
		return nil
	}
	end := time.Now().UTC()
	if tm.CompletedAt != nil {
		end = *tm.CompletedAt
	}
	d := end.Sub(*tm.StartedAt).Seconds()
	return &d
}

// ProgressPercentage 计算执行进度百分比
// 结果始终落在 [0, 100]；maxItems 为 0 时返回 0
func (tm *TaskModel) ProgressPercentage(maxItems int) float64 {
	if maxItems <= 0 {
		return 0
	}
	pct := float64(tm.ItemsProcessed) / float64(maxItems) * 100
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}
