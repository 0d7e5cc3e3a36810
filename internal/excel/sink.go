package excel

import (
	"time"

	"github.com/devjogerio/web-scraping-facebook/internal/model"
)

// Record 写入工作簿的单条已整理记录
type Record struct {
	ID            string
	DataType      string
	Content       string
	Author        string
	Timestamp     string
	LikesCount    int
	CommentsCount int
	SharesCount   int
	SourceURL     string
	ExtractedAt   time.Time
}

// SummaryRow 汇总表的一行
type SummaryRow struct {
	Type  string
	Count int
	First *time.Time
	Last  *time.Time
}

// Dataset 整理后的导出数据集
type Dataset struct {
	Types   []model.DataType
	Records map[model.DataType][]Record
	Summary []SummaryRow
	Total   int
}

// TaskMeta 写入汇总表的任务元数据
type TaskMeta struct {
	ID             string
	Name           string
	URL            string
	Status         string
	ItemsProcessed int
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// Sink 工作簿渲染端口,返回生成文件的字节数
type Sink interface {
	Render(path string, meta TaskMeta, data Dataset, opts Options) (int64, error)
}
