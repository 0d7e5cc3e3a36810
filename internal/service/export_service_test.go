package service

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/devjogerio/web-scraping-facebook/internal/excel"
	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSink 记录渲染调用并写一个占位文件
type stubSink struct {
	meta excel.TaskMeta
	data excel.Dataset
	opts excel.Options
	err  error
}

func (s *stubSink) Render(path string, meta excel.TaskMeta, data excel.Dataset, opts excel.Options) (int64, error) {
	s.meta = meta
	s.data = data
	s.opts = opts
	if s.err != nil {
		return 0, s.err
	}
	if err := os.WriteFile(path, []byte("workbook"), 0o644); err != nil {
		return 0, err
	}
	return int64(len("workbook")), nil
}

func newExportEnv(t *testing.T) (*testEnv, *stubSink, ExportService) {
	t.Helper()
	env := newTestEnv(t)
	sink := &stubSink{}
	svc := NewExportService(env.taskRepo, env.dataRepo, env.exportRepo, sink, t.TempDir(), env.logger)
	return env, sink, svc
}

func completedTaskWithData(t *testing.T, env *testEnv, records int) *model.TaskModel {
	t.Helper()
	task, err := env.taskSvc.CreateTask("export source", "https://www.facebook.com/src", nil)
	require.NoError(t, err)
	_, err = env.taskSvc.StartTask(task.ID)
	require.NoError(t, err)
	_, err = env.taskSvc.IncrementProgress(task.ID, records)
	require.NoError(t, err)
	task, err = env.taskSvc.CompleteTask(task.ID)
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < records; i++ {
		require.NoError(t, env.dataRepo.Create(&model.FacebookDataModel{
			ID:          uuid.New().String(),
			TaskID:      task.ID,
			DataType:    model.DataTypePost,
			Content:     "content",
			ExtractedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	return task
}

func TestRunExportHappyPath(t *testing.T) {
	env, sink, svc := newExportEnv(t)
	task := completedTaskWithData(t, env, 3)

	job, err := svc.RunExport(task.ID, map[string]interface{}{"separate_sheets": false})
	require.NoError(t, err)

	assert.Equal(t, model.ExportStatusCompleted, job.Status)
	require.NotNil(t, job.FileSize)
	assert.Equal(t, int64(8), *job.FileSize)
	assert.FileExists(t, job.FilePath)
	assert.Contains(t, job.Filename, ".xlsx")

	// 选项浅合并: 覆盖项生效,其余保持默认
	assert.False(t, sink.opts.SeparateSheets)
	assert.True(t, sink.opts.IncludeSummary)
	assert.Equal(t, 1000, sink.opts.MaxContentLength)

	// 渲染收到整理后的数据集和任务元数据
	assert.Equal(t, task.ID, sink.meta.ID)
	assert.Equal(t, 3, sink.data.Total)
}

func TestExportNotEligible(t *testing.T) {
	env, _, svc := newExportEnv(t)
	task, err := env.taskSvc.CreateTask("not done", "https://www.facebook.com/nd", nil)
	require.NoError(t, err)

	_, err = svc.RunExport(task.ID, nil)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestExportNoData(t *testing.T) {
	env, _, svc := newExportEnv(t)
	task, err := env.taskSvc.CreateTask("empty", "https://www.facebook.com/empty", nil)
	require.NoError(t, err)
	_, err = env.taskSvc.StartTask(task.ID)
	require.NoError(t, err)
	_, err = env.taskSvc.CompleteTask(task.ID)
	require.NoError(t, err)

	_, err = svc.RunExport(task.ID, nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestExportTaskNotFound(t *testing.T) {
	_, _, svc := newExportEnv(t)
	_, err := svc.RunExport("missing", nil)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

// blockingSink 首次渲染时阻塞,直到测试放行
type blockingSink struct {
	enterOnce sync.Once
	entered   chan struct{}
	resume    chan struct{}
}

func (s *blockingSink) Render(path string, _ excel.TaskMeta, _ excel.Dataset, _ excel.Options) (int64, error) {
	s.enterOnce.Do(func() { close(s.entered) })
	<-s.resume
	if err := os.WriteFile(path, []byte("workbook"), 0o644); err != nil {
		return 0, err
	}
	return 8, nil
}

func TestConcurrentExportRejected(t *testing.T) {
	env := newTestEnv(t)
	sink := &blockingSink{entered: make(chan struct{}), resume: make(chan struct{})}
	svc := NewExportService(env.taskRepo, env.dataRepo, env.exportRepo, sink, t.TempDir(), env.logger)
	task := completedTaskWithData(t, env, 1)

	job, err := svc.RequestExport(task.ID, nil)
	require.NoError(t, err)

	// 第一次导出还在渲染中,第二次请求必须立刻报忙碌
	select {
	case <-sink.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("export never reached the sink")
	}
	_, err = svc.RequestExport(task.ID, nil)
	assert.ErrorIs(t, err, ErrExportBusy)

	// 放行后导出完成,租约释放,可以再次导出
	close(sink.resume)
	require.Eventually(t, func() bool {
		stored, err := svc.GetExport(job.ID)
		return err == nil && stored.Status == model.ExportStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	var second *model.ExportJobModel
	require.Eventually(t, func() bool {
		j, err := svc.RequestExport(task.ID, nil)
		if err != nil {
			return false
		}
		second = j
		return true
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		stored, err := svc.GetExport(second.ID)
		return err == nil && stored.Status == model.ExportStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestExportBusy(t *testing.T) {
	env, _, svc := newExportEnv(t)
	task := completedTaskWithData(t, env, 1)

	// 已有 pending 导出时拒绝新导出
	require.NoError(t, env.exportRepo.Create(&model.ExportJobModel{
		ID:       uuid.New().String(),
		TaskID:   task.ID,
		Filename: "inflight.xlsx",
		FilePath: "/tmp/inflight.xlsx",
		Status:   model.ExportStatusPending,
	}))

	_, err := svc.RunExport(task.ID, nil)
	assert.ErrorIs(t, err, ErrExportBusy)
}

func TestExportSinkFailureMarksJobFailed(t *testing.T) {
	env, sink, svc := newExportEnv(t)
	sink.err = os.ErrPermission
	task := completedTaskWithData(t, env, 1)

	job, err := svc.RunExport(task.ID, nil)
	require.Error(t, err)
	require.NotNil(t, job)

	stored, err := svc.GetExport(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExportStatusFailed, stored.Status)
}

func TestValidateFileMarksMissing(t *testing.T) {
	env, _, svc := newExportEnv(t)
	task := completedTaskWithData(t, env, 1)

	job, err := svc.RunExport(task.ID, nil)
	require.NoError(t, err)

	// 文件还在时校验通过
	_, err = svc.ValidateFile(job.ID)
	require.NoError(t, err)

	// 文件被手工删掉后校验失败并落为 failed
	require.NoError(t, os.Remove(job.FilePath))
	_, err = svc.ValidateFile(job.ID)
	assert.ErrorIs(t, err, ErrFileMissing)

	stored, err := svc.GetExport(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExportStatusFailed, stored.Status)
}

func TestDeleteExportRemovesFile(t *testing.T) {
	env, _, svc := newExportEnv(t)
	task := completedTaskWithData(t, env, 1)

	job, err := svc.RunExport(task.ID, nil)
	require.NoError(t, err)
	require.FileExists(t, job.FilePath)

	require.NoError(t, svc.DeleteExport(job.ID))
	assert.NoFileExists(t, job.FilePath)

	_, err = svc.GetExport(job.ID)
	assert.ErrorIs(t, err, ErrExportNotFound)
}

func TestTaskHistory(t *testing.T) {
	env, _, svc := newExportEnv(t)
	task := completedTaskWithData(t, env, 1)

	_, err := svc.TaskHistory("missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	job, err := svc.RunExport(task.ID, nil)
	require.NoError(t, err)

	history, err := svc.TaskHistory(task.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, job.ID, history[0].ID)
}
