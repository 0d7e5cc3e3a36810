package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devjogerio/web-scraping-facebook/internal/database"
	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"github.com/devjogerio/web-scraping-facebook/internal/repository"
	"github.com/devjogerio/web-scraping-facebook/internal/scraper"
	"github.com/devjogerio/web-scraping-facebook/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// noopExtractor 测试用空抓取器
type noopExtractor struct{}

func (noopExtractor) Extract(context.Context, string, model.DataType, int, model.TaskConfig) ([]scraper.RawRecord, error) {
	return nil, nil
}

func (noopExtractor) Stop(string) {}

type apiEnv struct {
	router  *gin.Engine
	taskSvc service.TaskService
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	taskRepo := repository.NewTaskRepository(db)
	dataRepo := repository.NewFacebookDataRepository(db)
	exportRepo := repository.NewExportJobRepository(db)

	taskSvc := service.NewTaskService(taskRepo, dataRepo, logger)
	scrapeSvc := service.NewScrapeService(taskSvc, dataRepo, noopExtractor{}, nil, logger)
	statsSvc := service.NewStatisticsService(taskSvc, taskRepo, dataRepo, exportRepo, logger)

	ctrl := NewTaskController(taskSvc, scrapeSvc, statsSvc, dataRepo)

	router := gin.New()
	tasks := router.Group("/api/v1/tasks")
	{
		tasks.POST("", ctrl.Create)
		tasks.GET("", ctrl.List)
		tasks.GET("/:id", ctrl.Get)
		tasks.PUT("/:id", ctrl.Update)
		tasks.DELETE("/:id", ctrl.Delete)
		tasks.POST("/:id/stop", ctrl.Stop)
		tasks.GET("/:id/progress", ctrl.Progress)
		tasks.GET("/:id/data", ctrl.Data)
	}
	return &apiEnv{router: router, taskSvc: taskSvc}
}

func (e *apiEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestCreateTaskEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/tasks", gin.H{
		"name": "官方主页抓取",
		"url":  "facebook.com/mypage",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Code)

	task := resp.Data.(map[string]interface{})
	assert.Equal(t, "https://www.facebook.com/mypage", task["url"])
	assert.Equal(t, string(model.TaskStatusPending), task["status"])
}

func TestCreateTaskValidation(t *testing.T) {
	env := newAPIEnv(t)

	// 缺少必填字段
	w := env.do(t, http.MethodPost, "/api/v1/tasks", gin.H{"name": "没有 URL"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 名称太短
	w = env.do(t, http.MethodPost, "/api/v1/tasks", gin.H{
		"name": "ab",
		"url":  "https://www.facebook.com/mypage",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 配置携带未知字段
	w = env.do(t, http.MethodPost, "/api/v1/tasks", gin.H{
		"name":   "合法名称",
		"url":    "https://www.facebook.com/mypage",
		"config": gin.H{"bogus_field": 1},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTaskNotFound(t *testing.T) {
	env := newAPIEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/tasks/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeleteRunningTaskConflict(t *testing.T) {
	env := newAPIEnv(t)

	task, err := env.taskSvc.CreateTask("正在执行", "https://www.facebook.com/run", nil)
	require.NoError(t, err)
	_, err = env.taskSvc.StartTask(task.ID)
	require.NoError(t, err)

	w := env.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStopPendingTaskConflict(t *testing.T) {
	env := newAPIEnv(t)

	task, err := env.taskSvc.CreateTask("还没启动", "https://www.facebook.com/idle", nil)
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/stop", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListTasksInvalidStatus(t *testing.T) {
	env := newAPIEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/tasks?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTasksPagination(t *testing.T) {
	env := newAPIEnv(t)
	for i := 0; i < 3; i++ {
		_, err := env.taskSvc.CreateTask(
			fmt.Sprintf("任务 %d", i),
			fmt.Sprintf("https://www.facebook.com/page%d", i),
			nil,
		)
		require.NoError(t, err)
	}

	w := env.do(t, http.MethodGet, "/api/v1/tasks?page=1&page_size=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp PaginatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Pagination.Page)
	assert.Equal(t, 2, resp.Pagination.PageSize)
	assert.Len(t, resp.Data.([]interface{}), 2)
}

func TestTaskDataNotFoundFirst(t *testing.T) {
	env := newAPIEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/tasks/nope/data", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskDataInvalidType(t *testing.T) {
	env := newAPIEnv(t)
	task, err := env.taskSvc.CreateTask("带数据任务", "https://www.facebook.com/data", nil)
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID+"/data?type=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskProgressEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	task, err := env.taskSvc.CreateTask("进度任务", "https://www.facebook.com/prog", nil)
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID+"/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	progress := resp.Data.(map[string]interface{})
	assert.Equal(t, string(model.TaskStatusPending), progress["status"])
}
