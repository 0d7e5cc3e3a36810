package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devjogerio/web-scraping-facebook/internal/config"
	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRetentionEnv(t *testing.T) (*testEnv, RetentionService) {
	t.Helper()
	env := newTestEnv(t)
	cfg := config.RetentionConfig{
		Enabled:          true,
		Schedule:         "0 3 * * *",
		TaskMaxAgeDays:   30,
		ExportMaxAgeDays: 7,
		StuckRunHours:    2,
	}
	svc := NewRetentionService(cfg, env.taskSvc, env.taskRepo, env.exportRepo, env.logger)
	return env, svc
}

// backdate 直接改库里的时间列,模拟历史数据
func backdate(t *testing.T, env *testEnv, table, id, column string, at time.Time) {
	t.Helper()
	err := env.db.Table(table).Where("id = ?", id).Update(column, at).Error
	require.NoError(t, err)
}

func TestRunOnceCancelsStuckRuns(t *testing.T) {
	env, svc := newRetentionEnv(t)

	task, err := env.taskSvc.CreateTask("stuck run", "https://www.facebook.com/stuck", nil)
	require.NoError(t, err)
	_, err = env.taskSvc.StartTask(task.ID)
	require.NoError(t, err)
	backdate(t, env, "scraping_tasks", task.ID, "started_at", time.Now().Add(-3*time.Hour))

	report, err := svc.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, report.StuckRunsCancelled)

	stored, err := env.taskSvc.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "执行超时")
}

func TestRunOnceSkipsLeasedStuckRun(t *testing.T) {
	env, svc := newRetentionEnv(t)

	task, err := env.taskSvc.CreateTask("still working", "https://www.facebook.com/busy", nil)
	require.NoError(t, err)
	_, err = env.taskSvc.StartTask(task.ID)
	require.NoError(t, err)
	backdate(t, env, "scraping_tasks", task.ID, "started_at", time.Now().Add(-3*time.Hour))

	// 持有租约说明任务还在真实执行
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, env.taskSvc.AcquireLease(task.ID, task.URL, cancel))
	defer env.taskSvc.ReleaseLease(task.ID)

	report, err := svc.RunOnce()
	require.NoError(t, err)
	assert.Zero(t, report.StuckRunsCancelled)

	stored, err := env.taskSvc.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusRunning, stored.Status)
}

func TestRunOnceDeletesOldTerminalTasks(t *testing.T) {
	env, svc := newRetentionEnv(t)

	oldDone, err := env.taskSvc.CreateTask("old done", "https://www.facebook.com/old", nil)
	require.NoError(t, err)
	_, err = env.taskSvc.StartTask(oldDone.ID)
	require.NoError(t, err)
	_, err = env.taskSvc.CompleteTask(oldDone.ID)
	require.NoError(t, err)
	backdate(t, env, "scraping_tasks", oldDone.ID, "created_at", time.Now().AddDate(0, 0, -40))

	// 过期但还是 pending 的任务不删
	oldPending, err := env.taskSvc.CreateTask("old pending", "https://www.facebook.com/pend", nil)
	require.NoError(t, err)
	backdate(t, env, "scraping_tasks", oldPending.ID, "created_at", time.Now().AddDate(0, 0, -40))

	report, err := svc.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, report.TasksDeleted)

	_, err = env.taskSvc.GetTask(oldDone.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = env.taskSvc.GetTask(oldPending.ID)
	assert.NoError(t, err)
}

func TestRunOnceCleansExports(t *testing.T) {
	env, svc := newRetentionEnv(t)
	dir := t.TempDir()

	task, err := env.taskSvc.CreateTask("export owner", "https://www.facebook.com/exp", nil)
	require.NoError(t, err)

	// 过期导出: 记录和文件都要删掉
	oldPath := filepath.Join(dir, "old.xlsx")
	require.NoError(t, os.WriteFile(oldPath, []byte("x"), 0o644))
	oldJob := &model.ExportJobModel{
		ID:       uuid.New().String(),
		TaskID:   task.ID,
		Filename: "old.xlsx",
		FilePath: oldPath,
		Status:   model.ExportStatusCompleted,
	}
	require.NoError(t, env.exportRepo.Create(oldJob))
	backdate(t, env, "export_jobs", oldJob.ID, "created_at", time.Now().AddDate(0, 0, -10))

	// 文件丢失的已完成导出: 标记为失败
	ghostJob := &model.ExportJobModel{
		ID:       uuid.New().String(),
		TaskID:   task.ID,
		Filename: "ghost.xlsx",
		FilePath: filepath.Join(dir, "ghost.xlsx"),
		Status:   model.ExportStatusCompleted,
	}
	require.NoError(t, env.exportRepo.Create(ghostJob))

	report, err := svc.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, report.ExportsDeleted)
	assert.Equal(t, 1, report.MissingFilesMarked)
	assert.NoFileExists(t, oldPath)

	stored, err := env.exportRepo.FindByID(ghostJob.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExportStatusFailed, stored.Status)
}

func TestRunOnceEmptyDatabase(t *testing.T) {
	_, svc := newRetentionEnv(t)
	report, err := svc.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, &RetentionReport{}, report)
}
