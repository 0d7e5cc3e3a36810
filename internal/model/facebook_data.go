package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// DataType 抓取数据类型标签
type DataType string

const (
	DataTypePost    DataType = "post"    // 帖子
	DataTypeComment DataType = "comment" // 评论
	DataTypeProfile DataType = "profile" // 主页信息
	DataTypeLike    DataType = "like"    // 点赞
	DataTypeShare   DataType = "share"   // 分享
)

// ValidDataTypes 五种固定的数据类型
var ValidDataTypes = []DataType{
	DataTypePost,
	DataTypeComment,
	DataTypeProfile,
	DataTypeLike,
	DataTypeShare,
}

// Valid 检查数据类型是否合法
func (d DataType) Valid() bool {
	for _, v := range ValidDataTypes {
		if d == v {
			return true
		}
	}
	return false
}

// RecordMetadata 抓取记录的元数据
// 所有字段均为尽力而为，允许缺失
type RecordMetadata struct {
	Author          string         `json:"author,omitempty"`
	Timestamp       string         `json:"timestamp,omitempty"` // 页面上的原始时间串
	LikesCount      int            `json:"likes_count"`
	CommentsCount   int            `json:"comments_count"`
	SharesCount     int            `json:"shares_count"`
	Reactions       map[string]int `json:"reactions,omitempty"`
	Links           []string       `json:"links,omitempty"`
	Images          []string       `json:"images,omitempty"`
	ExtractedFields []string       `json:"extracted_fields,omitempty"` // 原始记录携带的字段名
}

// FacebookDataModel 抓取到的 Facebook 数据模型
// 由抓取流水线创建后不再变更，仅随任务级联删除或保留期清理删除
type FacebookDataModel struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TaskID      string         `gorm:"type:varchar(36);not null;index" json:"task_id"` // 所属任务 ID
	DataType    DataType       `gorm:"type:varchar(50);not null;index" json:"data_type"`
	Content     string         `gorm:"type:text" json:"content"`    // 抓取到的正文内容
	Metadata    datatypes.JSON `gorm:"type:jsonb" json:"metadata"`  // 序列化后的 RecordMetadata
	SourceURL   string         `gorm:"type:text" json:"source_url"` // 数据来源 URL
	ExtractedAt time.Time      `gorm:"not null;index" json:"extracted_at"`
}

// TableName 指定表名
func (FacebookDataModel) TableName() string {
	return "facebook_data"
}

// Validate 验证数据模型
func (fd *FacebookDataModel) Validate() error {
	if fd.ID == "" {
		return errors.New("record ID is required")
	}
	if fd.TaskID == "" {
		return errors.New("record task ID is required")
	}
	if !fd.DataType.Valid() {
		return fmt.Errorf("invalid data type: %s", fd.DataType)
	}
	return nil
}

// GetMetadata 获取记录元数据
func (fd *FacebookDataModel) GetMetadata() (RecordMetadata, error) {
	var meta RecordMetadata
	if len(fd.Metadata) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(fd.Metadata, &meta); err != nil {
		return RecordMetadata{}, fmt.Errorf("failed to unmarshal record metadata: %w", err)
	}
	return meta, nil
}

// SetMetadata 设置记录元数据
func (fd *FacebookDataModel) SetMetadata(meta RecordMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal record metadata: %w", err)
	}
	fd.Metadata = data
	return nil
}
