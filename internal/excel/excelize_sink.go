package excel

import (
	"fmt"
	"os"
	"strings"

	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const summarySheet = "Summary"

// dataHeaders 数据表的固定十列
var dataHeaders = []string{"ID", "Data Type", "Content", "Author", "Timestamp", "Likes", "Comments", "Shares", "Source URL", "Extracted At"}

// sheetTitles 每种数据类型对应的工作表名
var sheetTitles = map[model.DataType]string{
	model.DataTypePost:    "Posts",
	model.DataTypeComment: "Comments",
	model.DataTypeProfile: "Profiles",
	model.DataTypeLike:    "Likes",
	model.DataTypeShare:   "Shares",
}

// ExcelizeSink 基于 excelize 的工作簿渲染实现
type ExcelizeSink struct {
	logger *logrus.Logger
}

// NewExcelizeSink 创建工作簿渲染器
func NewExcelizeSink(logger *logrus.Logger) *ExcelizeSink {
	return &ExcelizeSink{logger: logger}
}

// Render 生成 Excel 工作簿并写入磁盘
func (s *ExcelizeSink) Render(path string, meta TaskMeta, data Dataset, opts Options) (int64, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, dateStyle, err := s.buildStyles(f, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to build styles: %w", err)
	}

	firstSheet := ""
	if opts.IncludeSummary {
		if err := s.writeSummary(f, meta, data, opts, headerStyle, dateStyle); err != nil {
			return 0, err
		}
		firstSheet = summarySheet
	}

	if opts.SeparateSheets {
		for _, dt := range data.Types {
			sheet := sheetTitles[dt]
			if sheet == "" {
				sheet = strings.ToUpper(string(dt)[:1]) + string(dt)[1:]
			}
			if err := s.writeDataSheet(f, sheet, data.Records[dt], opts, headerStyle, dateStyle); err != nil {
				return 0, err
			}
			if firstSheet == "" {
				firstSheet = sheet
			}
		}
	} else {
		var merged []Record
		for _, dt := range data.Types {
			merged = append(merged, data.Records[dt]...)
		}
		if err := s.writeCombinedSheet(f, merged, opts, headerStyle, dateStyle); err != nil {
			return 0, err
		}
		if firstSheet == "" {
			firstSheet = "Data"
		}
	}

	// excelize 默认创建 Sheet1,重命名为第一个业务表或删除
	if firstSheet != "" && firstSheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return 0, fmt.Errorf("failed to drop default sheet: %w", err)
		}
	}
	if idx, err := f.GetSheetIndex(firstSheet); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(path); err != nil {
		return 0, fmt.Errorf("failed to save workbook: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat workbook: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"path":      path,
		"file_size": info.Size(),
		"records":   data.Total,
	}).Info("workbook rendered")
	return info.Size(), nil
}

func (s *ExcelizeSink) buildStyles(f *excelize.File, opts Options) (header, date int, err error) {
	if opts.ApplyFormatting {
		header, err = f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
			Alignment: &excelize.Alignment{
				Horizontal: "center",
				Vertical:   "center",
			},
		})
		if err != nil {
			return 0, 0, err
		}
	}
	date, err = f.NewStyle(&excelize.Style{CustomNumFmt: &opts.DateFormat})
	if err != nil {
		return 0, 0, err
	}
	return header, date, nil
}

// writeSummary 写入汇总表: 任务元数据块 + 按类型统计 + 合计
func (s *ExcelizeSink) writeSummary(f *excelize.File, meta TaskMeta, data Dataset, opts Options, headerStyle, dateStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	row := 1
	if opts.IncludeMetadata {
		metaRows := [][]interface{}{
			{"Task Name", meta.Name},
			{"URL", meta.URL},
			{"Status", meta.Status},
			{"Items Processed", meta.ItemsProcessed},
			{"Created At", meta.CreatedAt},
		}
		if meta.StartedAt != nil {
			metaRows = append(metaRows, []interface{}{"Started At", *meta.StartedAt})
		}
		if meta.CompletedAt != nil {
			metaRows = append(metaRows, []interface{}{"Completed At", *meta.CompletedAt})
		}
		for _, r := range metaRows {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(summarySheet, cell, &r); err != nil {
				return fmt.Errorf("failed to write metadata row: %w", err)
			}
			row++
		}
		row++ // 空行分隔
	}

	headerRow := row
	headers := []interface{}{"Data Type", "Count", "Percentage", "First Record", "Last Record"}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(summarySheet, cell, &headers); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}
	if opts.ApplyFormatting {
		end, _ := excelize.CoordinatesToCellName(len(headers), row)
		_ = f.SetCellStyle(summarySheet, cell, end, headerStyle)
	}
	row++

	for _, sr := range data.Summary {
		pct := 0.0
		if data.Total > 0 {
			pct = float64(sr.Count) / float64(data.Total) * 100
		}
		values := []interface{}{sr.Type, sr.Count, fmt.Sprintf("%.1f%%", pct), "", ""}
		if sr.First != nil {
			values[3] = *sr.First
		}
		if sr.Last != nil {
			values[4] = *sr.Last
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
		start, _ := excelize.CoordinatesToCellName(4, row)
		end, _ := excelize.CoordinatesToCellName(5, row)
		_ = f.SetCellStyle(summarySheet, start, end, dateStyle)
		row++
	}

	total := []interface{}{"TOTAL", data.Total, "100.0%", "", ""}
	cell, _ = excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(summarySheet, cell, &total); err != nil {
		return fmt.Errorf("failed to write total row: %w", err)
	}

	if opts.IncludeCharts && len(data.Summary) > 0 {
		if err := s.addSummaryChart(f, headerRow, len(data.Summary)); err != nil {
			s.logger.WithError(err).Warn("failed to add summary chart")
		}
	}
	if opts.AutoFitColumns {
		_ = f.SetColWidth(summarySheet, "A", "A", 18)
		_ = f.SetColWidth(summarySheet, "B", "B", 40)
		_ = f.SetColWidth(summarySheet, "C", "E", 22)
	}
	return nil
}

func (s *ExcelizeSink) addSummaryChart(f *excelize.File, headerRow, count int) error {
	return f.AddChart(summarySheet, fmt.Sprintf("G%d", headerRow), &excelize.Chart{
		Type:  excelize.Col,
		Title: []excelize.RichTextRun{{Text: "Records by Data Type"}},
		Series: []excelize.ChartSeries{{
			Name:       "Count",
			Categories: fmt.Sprintf("%s!$A$%d:$A$%d", summarySheet, headerRow+1, headerRow+count),
			Values:     fmt.Sprintf("%s!$B$%d:$B$%d", summarySheet, headerRow+1, headerRow+count),
		}},
	})
}

// writeDataSheet 写入单一类型的数据表
func (s *ExcelizeSink) writeDataSheet(f *excelize.File, sheet string, records []Record, opts Options, headerStyle, dateStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	return s.fillSheet(f, sheet, records, opts, headerStyle, dateStyle)
}

// writeCombinedSheet 写入合并数据表
func (s *ExcelizeSink) writeCombinedSheet(f *excelize.File, records []Record, opts Options, headerStyle, dateStyle int) error {
	const sheet = "Data"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	return s.fillSheet(f, sheet, records, opts, headerStyle, dateStyle)
}

func (s *ExcelizeSink) fillSheet(f *excelize.File, sheet string, records []Record, opts Options, headerStyle, dateStyle int) error {
	headerCells := make([]interface{}, len(dataHeaders))
	for i, h := range dataHeaders {
		headerCells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerCells); err != nil {
		return fmt.Errorf("failed to write header on %s: %w", sheet, err)
	}
	if opts.ApplyFormatting {
		end, _ := excelize.CoordinatesToCellName(len(dataHeaders), 1)
		_ = f.SetCellStyle(sheet, "A1", end, headerStyle)
	}

	widths := make([]int, len(dataHeaders))
	for i, h := range dataHeaders {
		widths[i] = len(h)
	}

	for i, rec := range records {
		values := []interface{}{
			rec.ID,
			rec.DataType,
			truncate(rec.Content, opts.MaxContentLength),
			rec.Author,
			rec.Timestamp,
			rec.LikesCount,
			rec.CommentsCount,
			rec.SharesCount,
			rec.SourceURL,
			rec.ExtractedAt,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write data row on %s: %w", sheet, err)
		}
		dateCell, _ := excelize.CoordinatesToCellName(len(values), i+2)
		_ = f.SetCellStyle(sheet, dateCell, dateCell, dateStyle)

		for col, v := range values {
			if l := cellWidth(v); l > widths[col] {
				widths[col] = l
			}
		}
	}

	if opts.AutoFitColumns {
		for col, w := range widths {
			if w > 60 {
				w = 60
			}
			name, _ := excelize.ColumnNumberToName(col + 1)
			_ = f.SetColWidth(sheet, name, name, float64(w+2))
		}
	}
	if opts.FreezeHeaderRow {
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return fmt.Errorf("failed to freeze header on %s: %w", sheet, err)
		}
	}
	return nil
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func cellWidth(v interface{}) int {
	switch t := v.(type) {
	case string:
		if i := strings.IndexByte(t, '\n'); i >= 0 {
			return i
		}
		return len(t)
	default:
		return 12
	}
}
