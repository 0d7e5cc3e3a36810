package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportJobLifecycle(t *testing.T) {
	job := &ExportJobModel{
		ID:       "export-1",
		TaskID:   "task-1",
		Filename: "export.xlsx",
		Status:   ExportStatusPending,
	}
	require.NoError(t, job.Validate())

	job.StartProcessing()
	assert.Equal(t, ExportStatusProcessing, job.Status)
	assert.Nil(t, job.CompletedAt)

	job.CompleteExport(2048)
	assert.Equal(t, ExportStatusCompleted, job.Status)
	require.NotNil(t, job.FileSize)
	assert.Equal(t, int64(2048), *job.FileSize)
	require.NotNil(t, job.CompletedAt)
}

func TestFailExport(t *testing.T) {
	job := &ExportJobModel{ID: "export-1", TaskID: "task-1", Filename: "export.xlsx", Status: ExportStatusProcessing}
	job.FailExport()
	assert.Equal(t, ExportStatusFailed, job.Status)
	require.NotNil(t, job.CompletedAt)
}

func TestGenerateExportFilename(t *testing.T) {
	now := time.Date(2025, 3, 15, 9, 30, 45, 0, time.UTC)

	tests := []struct {
		name     string
		taskName string
		taskID   string
		want     string
	}{
		{
			name:     "普通名称",
			taskName: "My Task",
			taskID:   "abcdef12-3456-7890-abcd-ef1234567890",
			want:     "My_Task_abcdef12_20250315_093045.xlsx",
		},
		{
			name:     "特殊字符被剔除",
			taskName: "Página/oficial: teste!",
			taskID:   "12345678",
			want:     "Pginaoficial_teste_12345678_20250315_093045.xlsx",
		},
		{
			name:     "全部非法字符回退默认名",
			taskName: "官方页面",
			taskID:   "12345678",
			want:     "export_12345678_20250315_093045.xlsx",
		},
		{
			name:     "短任务 ID 保留原样",
			taskName: "task",
			taskID:   "abc",
			want:     "task_abc_20250315_093045.xlsx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateExportFilename(tt.taskName, tt.taskID, now))
		})
	}
}

func TestFormattedFileSize(t *testing.T) {
	job := &ExportJobModel{}
	assert.Equal(t, "N/A", job.FormattedFileSize())

	size := int64(512)
	job.FileSize = &size
	assert.Equal(t, "512.0 B", job.FormattedFileSize())

	size = 1536
	job.FileSize = &size
	assert.Equal(t, "1.5 KB", job.FormattedFileSize())

	size = 5 * 1024 * 1024
	job.FileSize = &size
	assert.Equal(t, "5.0 MB", job.FormattedFileSize())
}

func TestFileExistsAndDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	job := &ExportJobModel{ID: "export-1", TaskID: "task-1", Filename: "export.xlsx", FilePath: path}
	assert.True(t, job.FileExists())
	require.NoError(t, job.DeleteFile())
	assert.False(t, job.FileExists())

	// 文件已不存在时删除是幂等的
	assert.NoError(t, job.DeleteFile())
}
