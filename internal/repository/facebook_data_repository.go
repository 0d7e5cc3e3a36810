package repository

import (
	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"gorm.io/gorm"
)

// FacebookDataRepository 抓取数据仓储接口
type FacebookDataRepository interface {
	Create(record *model.FacebookDataModel) error
	FindByID(id string) (*model.FacebookDataModel, error)
	FindByTaskID(taskID string, limit, offset int) ([]*model.FacebookDataModel, error)
	FindByTaskAndType(taskID string, dataType model.DataType, limit, offset int) ([]*model.FacebookDataModel, error)
	FindForExport(taskID string) ([]*model.FacebookDataModel, error)
	CountByTaskID(taskID string) (int64, error)
	CountByType(taskID string) (map[model.DataType]int64, error)
	CountAll() (int64, error)
	DeleteByTaskID(taskID string) (int64, error)
}

// facebookDataRepository 抓取数据仓储实现
type facebookDataRepository struct {
	db *gorm.DB
}

// NewFacebookDataRepository 创建抓取数据仓储
func NewFacebookDataRepository(db *gorm.DB) FacebookDataRepository {
	return &facebookDataRepository{db: db}
}

// Create 保存抓取记录
func (r *facebookDataRepository) Create(record *model.FacebookDataModel) error {
	return r.db.Create(record).Error
}

// FindByID 根据 ID 查找记录
func (r *facebookDataRepository) FindByID(id string) (*model.FacebookDataModel, error) {
	var record model.FacebookDataModel
	if err := r.db.Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByTaskID 查找任务的全部抓取记录,按提取时间升序
func (r *facebookDataRepository) FindByTaskID(taskID string, limit, offset int) ([]*model.FacebookDataModel, error) {
	var records []*model.FacebookDataModel
	query := r.db.Where("task_id = ?", taskID).Order("extracted_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	err := query.Find(&records).Error
	return records, err
}

// FindByTaskAndType 查找任务下指定类型的记录
func (r *facebookDataRepository) FindByTaskAndType(taskID string, dataType model.DataType, limit, offset int) ([]*model.FacebookDataModel, error) {
	var records []*model.FacebookDataModel
	query := r.db.
		Where("task_id = ? AND data_type = ?", taskID, dataType).
		Order("extracted_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	err := query.Find(&records).Error
	return records, err
}

// FindForExport 查找任务的全部记录用于导出
// 导出要求稳定的时间升序,summary 的首末条目依赖该顺序
func (r *facebookDataRepository) FindForExport(taskID string) ([]*model.FacebookDataModel, error) {
	return r.FindByTaskID(taskID, 0, 0)
}

// CountByTaskID 统计任务的记录总数
func (r *facebookDataRepository) CountByTaskID(taskID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.FacebookDataModel{}).
		Where("task_id = ?", taskID).
		Count(&count).Error
	return count, err
}

// CountByType 按数据类型统计任务的记录数量
func (r *facebookDataRepository) CountByType(taskID string) (map[model.DataType]int64, error) {
	type row struct {
		DataType model.DataType
		Total    int64
	}
	var rows []row
	err := r.db.Model(&model.FacebookDataModel{}).
		Select("data_type, COUNT(*) AS total").
		Where("task_id = ?", taskID).
		Group("data_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.DataType]int64, len(rows))
	for _, rw := range rows {
		counts[rw.DataType] = rw.Total
	}
	return counts, nil
}

// CountAll 统计全部记录数
func (r *facebookDataRepository) CountAll() (int64, error) {
	var count int64
	err := r.db.Model(&model.FacebookDataModel{}).Count(&count).Error
	return count, err
}

// DeleteByTaskID 删除任务的全部抓取记录
func (r *facebookDataRepository) DeleteByTaskID(taskID string) (int64, error) {
	result := r.db.Where("task_id = ?", taskID).Delete(&model.FacebookDataModel{})
	return result.RowsAffected, result.Error
}
