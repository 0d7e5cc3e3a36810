package service

import (
	"github.com/devjogerio/web-scraping-facebook/internal/excel"
	"github.com/devjogerio/web-scraping-facebook/internal/model"
)

// OrganizeRecords 把原始抓取记录整理为导出数据集
// 按数据类型分组,组内保持抓取时间升序,并生成按类型的汇总行
func OrganizeRecords(records []*model.FacebookDataModel) excel.Dataset {
	dataset := excel.Dataset{
		Records: make(map[model.DataType][]excel.Record),
	}

	for _, rec := range records {
		meta, err := rec.GetMetadata()
		if err != nil {
			meta = model.RecordMetadata{}
		}

		if _, seen := dataset.Records[rec.DataType]; !seen {
			dataset.Types = append(dataset.Types, rec.DataType)
		}
		dataset.Records[rec.DataType] = append(dataset.Records[rec.DataType], excel.Record{
			ID:            rec.ID,
			DataType:      string(rec.DataType),
			Content:       rec.Content,
			Author:        meta.Author,
			Timestamp:     meta.Timestamp,
			LikesCount:    meta.LikesCount,
			CommentsCount: meta.CommentsCount,
			SharesCount:   meta.SharesCount,
			SourceURL:     rec.SourceURL,
			ExtractedAt:   rec.ExtractedAt,
		})
		dataset.Total++
	}

	// 记录已按 extracted_at 升序排列,首尾即时间范围
	for _, dt := range dataset.Types {
		bucket := dataset.Records[dt]
		first := bucket[0].ExtractedAt
		last := bucket[len(bucket)-1].ExtractedAt
		dataset.Summary = append(dataset.Summary, excel.SummaryRow{
			Type:  string(dt),
			Count: len(bucket),
			First: &first,
			Last:  &last,
		})
	}
	return dataset
}
