package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

var dateFilterPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// DateFilter 抓取数据的日期过滤器
type DateFilter struct {
	StartDate string `json:"start_date,omitempty"` // 格式 YYYY-MM-DD
	EndDate   string `json:"end_date,omitempty"`   // 格式 YYYY-MM-DD
}

// TaskConfig 任务配置
// 显式定义所有可识别的配置项，未知字段在反序列化时直接拒绝
type TaskConfig struct {
	DataTypes        []DataType  `json:"data_types"`        // 要抓取的数据类型，按顺序执行
	MaxItems         int         `json:"max_items"`         // 全任务条目上限
	DelayMin         float64     `json:"delay_min"`         // 请求间最小间隔（秒）
	DelayMax         float64     `json:"delay_max"`         // 请求间最大间隔（秒）
	MaxRetries       int         `json:"max_retries"`       // 单次抓取的重试次数
	Timeout          int         `json:"timeout"`           // 抓取请求超时（秒）
	Headless         bool        `json:"headless"`          // 无界面模式
	DateFilter       *DateFilter `json:"date_filter,omitempty"`
	IncludeReactions bool        `json:"include_reactions"`
	IncludeShares    bool        `json:"include_shares"`
	ExtractLinks     bool        `json:"extract_links"`
	ExtractImages    bool        `json:"extract_images"`
}

// DefaultTaskConfig 返回默认任务配置
func DefaultTaskConfig() TaskConfig {
	return TaskConfig{
		DataTypes:        []DataType{DataTypePost, DataTypeComment},
		MaxItems:         100,
		DelayMin:         1,
		DelayMax:         3,
		MaxRetries:       3,
		Timeout:          30,
		Headless:         true,
		IncludeReactions: true,
		IncludeShares:    true,
		ExtractLinks:     false,
		ExtractImages:    false,
	}
}

// ParseTaskConfig 从 JSON 解析任务配置
// 未提供的字段取默认值，未知字段返回错误
func ParseTaskConfig(data []byte) (TaskConfig, error) {
	cfg := DefaultTaskConfig()
	if len(data) == 0 {
		return cfg, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return TaskConfig{}, fmt.Errorf("invalid task config: %w", err)
	}
	return cfg, nil
}

// Validate 验证任务配置
func (c *TaskConfig) Validate() error {
	if len(c.DataTypes) == 0 {
		return fmt.Errorf("至少需要选择一种数据类型")
	}
	for _, dt := range c.DataTypes {
		if !dt.Valid() {
			return fmt.Errorf("无效的数据类型: %s", dt)
		}
	}
	if c.MaxItems <= 0 {
		return fmt.Errorf("max_items 必须是正整数")
	}
	if c.MaxItems > 10000 {
		return fmt.Errorf("max_items 不能大于 10000")
	}
	if c.DelayMin < 0 {
		return fmt.Errorf("delay_min 不能为负数")
	}
	if c.DelayMax < 0 {
		return fmt.Errorf("delay_max 不能为负数")
	}
	if c.DelayMax < c.DelayMin {
		return fmt.Errorf("delay_max 必须大于或等于 delay_min")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries 不能为负数")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout 必须是正整数")
	}
	if c.DateFilter != nil {
		if c.DateFilter.StartDate != "" && !dateFilterPattern.MatchString(c.DateFilter.StartDate) {
			return fmt.Errorf("start_date 必须符合 YYYY-MM-DD 格式")
		}
		if c.DateFilter.EndDate != "" && !dateFilterPattern.MatchString(c.DateFilter.EndDate) {
			return fmt.Errorf("end_date 必须符合 YYYY-MM-DD 格式")
		}
	}
	return nil
}

// GetConfig 获取任务配置
// 配置为空时返回默认配置
func (tm *TaskModel) GetConfig() (TaskConfig, error) {
	return ParseTaskConfig(tm.Config)
}

// SetConfig 设置任务配置
func (tm *TaskModel) SetConfig(cfg TaskConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal task config: %w", err)
	}
	tm.Config = data
	return nil
}
