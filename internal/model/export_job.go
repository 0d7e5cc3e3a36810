package model

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ExportStatus 导出任务状态
type ExportStatus string

const (
	ExportStatusPending    ExportStatus = "pending"    // 等待处理
	ExportStatusProcessing ExportStatus = "processing" // 生成中
	ExportStatusCompleted  ExportStatus = "completed"  // 已完成
	ExportStatusFailed     ExportStatus = "failed"     // 失败
)

// ValidExportStatuses 所有合法的导出状态
var ValidExportStatuses = []ExportStatus{
	ExportStatusPending,
	ExportStatusProcessing,
	ExportStatusCompleted,
	ExportStatusFailed,
}

// Valid 检查导出状态是否合法
func (s ExportStatus) Valid() bool {
	for _, v := range ValidExportStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ExportJobModel 导出任务数据模型
type ExportJobModel struct {
	ID          string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TaskID      string       `gorm:"type:varchar(36);not null;index" json:"task_id"` // 所属任务 ID
	Filename    string       `gorm:"type:varchar(255);not null" json:"filename"`     // 生成的文件名
	FilePath    string       `gorm:"type:varchar(500);not null" json:"file_path"`    // 文件完整路径
	Status      ExportStatus `gorm:"type:varchar(20);not null;index;default:pending" json:"status"`
	FileSize    *int64       `json:"file_size,omitempty"` // 文件大小（字节），仅完成后写入
	CreatedAt   time.Time    `gorm:"not null;index" json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (ExportJobModel) TableName() string {
	return "export_jobs"
}

// Validate 验证导出任务模型
func (ej *ExportJobModel) Validate() error {
	if ej.ID == "" {
		return errors.New("export job ID is required")
	}
	if ej.TaskID == "" {
		return errors.New("export job task ID is required")
	}
	if ej.Filename == "" {
		return errors.New("export job filename is required")
	}
	if !ej.Status.Valid() {
		return fmt.Errorf("invalid export status: %s", ej.Status)
	}
	return nil
}

// StartProcessing 标记导出开始处理
func (ej *ExportJobModel) StartProcessing() {
	ej.Status = ExportStatusProcessing
}

// CompleteExport 标记导出完成并记录文件大小
func (ej *ExportJobModel) CompleteExport(fileSize int64) {
	now := time.Now().UTC()
	ej.Status = ExportStatusCompleted
	ej.FileSize = &fileSize
	ej.CompletedAt = &now
}

// FailExport 标记导出失败
func (ej *ExportJobModel) FailExport() {
	now := time.Now().UTC()
	ej.Status = ExportStatusFailed
	ej.CompletedAt = &now
}

// FileExists 检查导出文件是否仍然存在
func (ej *ExportJobModel) FileExists() bool {
	if ej.FilePath == "" {
		return false
	}
	_, err := os.Stat(ej.FilePath)
	return err == nil
}

// DeleteFile 删除磁盘上的导出文件
func (ej *ExportJobModel) DeleteFile() error {
	if !ej.FileExists() {
		return nil
	}
	return os.Remove(ej.FilePath)
}

// FormattedFileSize 返回可读的文件大小（如 1.5 MB）
func (ej *ExportJobModel) FormattedFileSize() string {
	if ej.FileSize == nil {
		return "N/A"
	}
	size := float64(*ej.FileSize)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024.0 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024.0
	}
	return fmt.Sprintf("%.1f TB", size)
}

// Duration 计算导出耗时（秒）
// 未结束的导出返回 nil
func (ej *ExportJobModel) Duration() *float64 {
	if ej.CompletedAt == nil {
		return nil
	}
	d := ej.CompletedAt.Sub(ej.CreatedAt).Seconds()
	return &d
}

// GenerateExportFilename 根据任务信息生成导出文件名
// 格式: <清洗后的任务名>_<任务 ID 前 8 位>_<时间戳>.xlsx
func GenerateExportFilename(taskName, taskID string, now time.Time) string {
	var b strings.Builder
	for _, r := range taskName {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	clean := strings.Trim(b.String(), "_")
	if clean == "" {
		clean = "export"
	}

	shortID := taskID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	return fmt.Sprintf("%s_%s_%s.xlsx", clean, shortID, now.Format("20060102_150405"))
}
