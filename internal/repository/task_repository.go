package repository

import (
	"time"

	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"gorm.io/gorm"
)

// TaskRepository 抓取任务仓储接口
type TaskRepository interface {
	Create(task *model.TaskModel) error
	Update(task *model.TaskModel) error
	FindByID(id string) (*model.TaskModel, error)
	FindAll(limit, offset int) ([]*model.TaskModel, error)
	FindByFilter(filter *TaskFilter) ([]*model.TaskModel, error)
	FindByStatus(status model.TaskStatus, limit int) ([]*model.TaskModel, error)
	FindActive() ([]*model.TaskModel, error)
	FindByURL(url string) ([]*model.TaskModel, error)
	FindOlderThan(cutoff time.Time) ([]*model.TaskModel, error)
	FindStuckRunning(startedBefore time.Time) ([]*model.TaskModel, error)
	Count() (int64, error)
	CountByStatus() (map[model.TaskStatus]int64, error)
	Delete(id string) error
}

// TaskFilter 任务查询过滤器
type TaskFilter struct {
	Status    *model.TaskStatus
	Name      *string // 模糊匹配
	URL       *string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// taskRepository 任务仓储实现
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓储
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create 创建任务
func (r *taskRepository) Create(task *model.TaskModel) error {
	return r.db.Create(task).Error
}

// Update 更新任务
func (r *taskRepository) Update(task *model.TaskModel) error {
	return r.db.Save(task).Error
}

// FindByID 根据 ID 查找任务
func (r *taskRepository) FindByID(id string) (*model.TaskModel, error) {
	var task model.TaskModel
	if err := r.db.Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindAll 查找所有任务,按创建时间倒序
func (r *taskRepository) FindAll(limit, offset int) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	query := r.db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	err := query.Find(&tasks).Error
	return tasks, err
}

// FindByFilter 根据过滤器查找任务
func (r *taskRepository) FindByFilter(filter *TaskFilter) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	query := r.db.Model(&model.TaskModel{})

	if filter != nil {
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.Name != nil {
			query = query.Where("name LIKE ?", "%"+*filter.Name+"%")
		}
		if filter.URL != nil {
			query = query.Where("url = ?", *filter.URL)
		}
		if filter.StartTime != nil {
			query = query.Where("created_at >= ?", *filter.StartTime)
		}
		if filter.EndTime != nil {
			query = query.Where("created_at <= ?", *filter.EndTime)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			query = query.Offset(filter.Offset)
		}
	}

	err := query.Order("created_at DESC").Find(&tasks).Error
	return tasks, err
}

// FindByStatus 根据状态查找任务
func (r *taskRepository) FindByStatus(status model.TaskStatus, limit int) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	query := r.db.Where("status = ?", status).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&tasks).Error
	return tasks, err
}

// FindActive 查找所有执行中的任务
func (r *taskRepository) FindActive() ([]*model.TaskModel, error) {
	return r.FindByStatus(model.TaskStatusRunning, 0)
}

// FindByURL 根据目标 URL 查找任务
func (r *taskRepository) FindByURL(url string) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	err := r.db.Where("url = ?", url).Order("created_at DESC").Find(&tasks).Error
	return tasks, err
}

// FindOlderThan 查找创建时间早于给定时间的任务
func (r *taskRepository) FindOlderThan(cutoff time.Time) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	err := r.db.Where("created_at < ?", cutoff).Find(&tasks).Error
	return tasks, err
}

// FindStuckRunning 查找启动时间早于给定时间且仍处于 running 的任务
func (r *taskRepository) FindStuckRunning(startedBefore time.Time) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	err := r.db.
		Where("status = ?", model.TaskStatusRunning).
		Where("started_at IS NOT NULL AND started_at < ?", startedBefore).
		Find(&tasks).Error
	return tasks, err
}

// Count 统计任务总数
func (r *taskRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.TaskModel{}).Count(&count).Error
	return count, err
}

// CountByStatus 按状态统计任务数量
func (r *taskRepository) CountByStatus() (map[model.TaskStatus]int64, error) {
	type row struct {
		Status model.TaskStatus
		Total  int64
	}
	var rows []row
	err := r.db.Model(&model.TaskModel{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.TaskStatus]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Total
	}
	return counts, nil
}

// Delete 删除任务及其关联数据（使用事务）
// 抓取数据和导出任务随任务一并删除
func (r *taskRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&model.FacebookDataModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&model.ExportJobModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.TaskModel{}).Error
	})
}
