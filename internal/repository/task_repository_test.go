package repository

import (
	"testing"
	"time"

	"github.com/devjogerio/web-scraping-facebook/internal/database"
	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newTask(t *testing.T, repo TaskRepository, name string, status model.TaskStatus) *model.TaskModel {
	t.Helper()
	task := &model.TaskModel{
		ID:     uuid.New().String(),
		Name:   name,
		URL:    "https://www.facebook.com/" + name,
		Status: status,
	}
	require.NoError(t, task.SetConfig(model.DefaultTaskConfig()))
	require.NoError(t, repo.Create(task))
	return task
}

func TestTaskRepositoryCRUD(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)

	task := newTask(t, repo, "crud", model.TaskStatusPending)

	found, err := repo.FindByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Name, found.Name)
	assert.Equal(t, model.TaskStatusPending, found.Status)

	found.Name = "renamed"
	require.NoError(t, repo.Update(found))
	found, err = repo.FindByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", found.Name)

	_, err = repo.FindByID("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTaskRepositoryFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)

	newTask(t, repo, "alpha", model.TaskStatusPending)
	newTask(t, repo, "beta", model.TaskStatusRunning)
	newTask(t, repo, "alphabeta", model.TaskStatusCompleted)

	status := model.TaskStatusRunning
	tasks, err := repo.FindByFilter(&TaskFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "beta", tasks[0].Name)

	name := "alpha"
	tasks, err = repo.FindByFilter(&TaskFilter{Name: &name})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	active, err := repo.FindActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "beta", active[0].Name)
}

func TestTaskRepositoryCountByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)

	newTask(t, repo, "p1", model.TaskStatusPending)
	newTask(t, repo, "p2", model.TaskStatusPending)
	newTask(t, repo, "c1", model.TaskStatusCompleted)

	counts, err := repo.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[model.TaskStatusPending])
	assert.Equal(t, int64(1), counts[model.TaskStatusCompleted])
	assert.Zero(t, counts[model.TaskStatusFailed])

	total, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestTaskRepositoryFindStuckRunning(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)

	stale := newTask(t, repo, "stale", model.TaskStatusRunning)
	old := time.Now().Add(-3 * time.Hour)
	stale.StartedAt = &old
	require.NoError(t, repo.Update(stale))

	fresh := newTask(t, repo, "fresh", model.TaskStatusRunning)
	now := time.Now()
	fresh.StartedAt = &now
	require.NoError(t, repo.Update(fresh))

	stuck, err := repo.FindStuckRunning(time.Now().Add(-2 * time.Hour))
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, stale.ID, stuck[0].ID)
}

func TestTaskRepositoryDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	taskRepo := NewTaskRepository(db)
	dataRepo := NewFacebookDataRepository(db)
	exportRepo := NewExportJobRepository(db)

	task := newTask(t, taskRepo, "cascade", model.TaskStatusCompleted)
	require.NoError(t, dataRepo.Create(&model.FacebookDataModel{
		ID:          uuid.New().String(),
		TaskID:      task.ID,
		DataType:    model.DataTypePost,
		Content:     "hello",
		ExtractedAt: time.Now(),
	}))
	require.NoError(t, exportRepo.Create(&model.ExportJobModel{
		ID:       uuid.New().String(),
		TaskID:   task.ID,
		Filename: "f.xlsx",
		FilePath: "/tmp/f.xlsx",
		Status:   model.ExportStatusPending,
	}))

	require.NoError(t, taskRepo.Delete(task.ID))

	_, err := taskRepo.FindByID(task.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	count, err := dataRepo.CountByTaskID(task.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	jobs, err := exportRepo.FindByTaskID(task.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
