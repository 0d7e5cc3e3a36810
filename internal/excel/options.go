package excel

// Options 导出格式选项
type Options struct {
	IncludeMetadata  bool   `json:"include_metadata"`
	IncludeSummary   bool   `json:"include_summary"`
	SeparateSheets   bool   `json:"separate_sheets"`
	ApplyFormatting  bool   `json:"apply_formatting"`
	IncludeCharts    bool   `json:"include_charts"`
	MaxContentLength int    `json:"max_content_length"`
	DateFormat       string `json:"date_format"`
	AutoFitColumns   bool   `json:"auto_fit_columns"`
	FreezeHeaderRow  bool   `json:"freeze_header_row"`
}

// DefaultOptions 返回默认导出选项
func DefaultOptions() Options {
	return Options{
		IncludeMetadata:  true,
		IncludeSummary:   true,
		SeparateSheets:   true,
		ApplyFormatting:  true,
		IncludeCharts:    false,
		MaxContentLength: 1000,
		DateFormat:       "dd/mm/yyyy hh:mm:ss",
		AutoFitColumns:   true,
		FreezeHeaderRow:  true,
	}
}

// Apply 用调用方提供的键覆盖选项,未知键直接忽略
func (o Options) Apply(overrides map[string]interface{}) Options {
	for key, value := range overrides {
		switch key {
		case "include_metadata":
			if v, ok := value.(bool); ok {
				o.IncludeMetadata = v
			}
		case "include_summary":
			if v, ok := value.(bool); ok {
				o.IncludeSummary = v
			}
		case "separate_sheets":
			if v, ok := value.(bool); ok {
				o.SeparateSheets = v
			}
		case "apply_formatting":
			if v, ok := value.(bool); ok {
				o.ApplyFormatting = v
			}
		case "include_charts":
			if v, ok := value.(bool); ok {
				o.IncludeCharts = v
			}
		case "max_content_length":
			switch v := value.(type) {
			case float64:
				o.MaxContentLength = int(v)
			case int:
				o.MaxContentLength = v
			}
		case "date_format":
			if v, ok := value.(string); ok && v != "" {
				o.DateFormat = v
			}
		case "auto_fit_columns":
			if v, ok := value.(bool); ok {
				o.AutoFitColumns = v
			}
		case "freeze_header_row":
			if v, ok := value.(bool); ok {
				o.FreezeHeaderRow = v
			}
		}
	}
	return o
}
