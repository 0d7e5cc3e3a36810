package scraper

import (
	"context"

	"github.com/devjogerio/web-scraping-facebook/internal/model"
)

// RawRecord 抓取能力返回的原始记录
// 所有字段均为尽力而为,缺失字段保持零值
type RawRecord struct {
	Content       string         `json:"content"`
	Author        string         `json:"author,omitempty"`
	Timestamp     string         `json:"timestamp,omitempty"` // 页面上的原始时间串
	LikesCount    int            `json:"likes_count"`
	CommentsCount int            `json:"comments_count"`
	SharesCount   int            `json:"shares_count"`
	Reactions     map[string]int `json:"reactions,omitempty"`
	Links         []string       `json:"links,omitempty"`
	Images        []string       `json:"images,omitempty"`
	SourceURL     string         `json:"source_url,omitempty"`
}

// Extractor 抓取能力接口
// 对上层而言抓取实现是不透明的:给定 URL 与类型,返回原始记录列表
type Extractor interface {
	// Extract 抓取指定类型的数据,最多返回 limit 条
	Extract(ctx context.Context, url string, dataType model.DataType, limit int, cfg model.TaskConfig) ([]RawRecord, error)

	// Stop 通知抓取器停止指定任务的抓取（协作式,不中断进行中的请求）
	Stop(taskID string)
}
