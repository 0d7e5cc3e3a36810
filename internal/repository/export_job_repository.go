package repository

import (
	"time"

	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"gorm.io/gorm"
)

// ExportStatistics 导出任务统计信息
type ExportStatistics struct {
	Total         int64 `json:"total"`
	Completed     int64 `json:"completed"`
	Failed        int64 `json:"failed"`
	Pending       int64 `json:"pending"`
	Processing    int64 `json:"processing"`
	TotalFileSize int64 `json:"total_file_size"` // 已完成导出的文件总大小（字节）
}

// ExportJobRepository 导出任务仓储接口
type ExportJobRepository interface {
	Create(job *model.ExportJobModel) error
	Update(job *model.ExportJobModel) error
	FindByID(id string) (*model.ExportJobModel, error)
	FindAll(limit, offset int) ([]*model.ExportJobModel, error)
	FindByTaskID(taskID string, limit int) ([]*model.ExportJobModel, error)
	FindByStatus(status model.ExportStatus, limit int) ([]*model.ExportJobModel, error)
	FindOlderThan(cutoff time.Time) ([]*model.ExportJobModel, error)
	Statistics() (*ExportStatistics, error)
	Delete(id string) error
}

// exportJobRepository 导出任务仓储实现
type exportJobRepository struct {
	db *gorm.DB
}

// NewExportJobRepository 创建导出任务仓储
func NewExportJobRepository(db *gorm.DB) ExportJobRepository {
	return &exportJobRepository{db: db}
}

// Create 创建导出任务
func (r *exportJobRepository) Create(job *model.ExportJobModel) error {
	return r.db.Create(job).Error
}

// Update 更新导出任务
func (r *exportJobRepository) Update(job *model.ExportJobModel) error {
	return r.db.Save(job).Error
}

// FindByID 根据 ID 查找导出任务
func (r *exportJobRepository) FindByID(id string) (*model.ExportJobModel, error) {
	var job model.ExportJobModel
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// FindAll 查找所有导出任务,按创建时间倒序
func (r *exportJobRepository) FindAll(limit, offset int) ([]*model.ExportJobModel, error) {
	var jobs []*model.ExportJobModel
	query := r.db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	err := query.Find(&jobs).Error
	return jobs, err
}

// FindByTaskID 查找任务的导出历史
func (r *exportJobRepository) FindByTaskID(taskID string, limit int) ([]*model.ExportJobModel, error) {
	var jobs []*model.ExportJobModel
	query := r.db.Where("task_id = ?", taskID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&jobs).Error
	return jobs, err
}

// FindByStatus 根据状态查找导出任务
func (r *exportJobRepository) FindByStatus(status model.ExportStatus, limit int) ([]*model.ExportJobModel, error) {
	var jobs []*model.ExportJobModel
	query := r.db.Where("status = ?", status).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&jobs).Error
	return jobs, err
}

// FindOlderThan 查找创建时间早于给定时间的导出任务
func (r *exportJobRepository) FindOlderThan(cutoff time.Time) ([]*model.ExportJobModel, error) {
	var jobs []*model.ExportJobModel
	err := r.db.Where("created_at < ?", cutoff).Find(&jobs).Error
	return jobs, err
}

// Statistics 统计导出任务概况
func (r *exportJobRepository) Statistics() (*ExportStatistics, error) {
	stats := &ExportStatistics{}

	type row struct {
		Status model.ExportStatus
		Total  int64
	}
	var rows []row
	err := r.db.Model(&model.ExportJobModel{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, rw := range rows {
		stats.Total += rw.Total
		switch rw.Status {
		case model.ExportStatusCompleted:
			stats.Completed = rw.Total
		case model.ExportStatusFailed:
			stats.Failed = rw.Total
		case model.ExportStatusPending:
			stats.Pending = rw.Total
		case model.ExportStatusProcessing:
			stats.Processing = rw.Total
		}
	}

	// 已完成导出的文件总大小
	err = r.db.Model(&model.ExportJobModel{}).
		Where("status = ? AND file_size IS NOT NULL", model.ExportStatusCompleted).
		Select("COALESCE(SUM(file_size), 0)").
		Scan(&stats.TotalFileSize).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// Delete 删除导出任务记录
func (r *exportJobRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.ExportJobModel{}).Error
}
