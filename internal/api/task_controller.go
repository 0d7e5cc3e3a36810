package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"github.com/devjogerio/web-scraping-facebook/internal/repository"
	"github.com/devjogerio/web-scraping-facebook/internal/service"
	"github.com/gin-gonic/gin"
)

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	Name   string          `json:"name" binding:"required"`
	URL    string          `json:"url" binding:"required"`
	Config json.RawMessage `json:"config"`
}

// UpdateTaskRequest 更新任务请求
type UpdateTaskRequest struct {
	Name   *string         `json:"name"`
	URL    *string         `json:"url"`
	Config json.RawMessage `json:"config"`
}

// TaskController 任务控制器
type TaskController struct {
	taskSvc   service.TaskService
	scrapeSvc service.ScrapeService
	statsSvc  service.StatisticsService
	dataRepo  repository.FacebookDataRepository
}

// NewTaskController 创建任务控制器
func NewTaskController(taskSvc service.TaskService, scrapeSvc service.ScrapeService, statsSvc service.StatisticsService, dataRepo repository.FacebookDataRepository) *TaskController {
	return &TaskController{
		taskSvc:   taskSvc,
		scrapeSvc: scrapeSvc,
		statsSvc:  statsSvc,
		dataRepo:  dataRepo,
	}
}

// Create 创建抓取任务
func (ctrl *TaskController) Create(c *gin.Context) {
	// 1. 绑定请求参数
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "请求参数无效", err.Error())
		return
	}

	// 2. 解析任务配置,未知字段直接拒绝
	var cfg *model.TaskConfig
	if len(req.Config) > 0 {
		parsed, err := model.ParseTaskConfig(req.Config)
		if err != nil {
			Error(c, http.StatusBadRequest, "任务配置无效", err.Error())
			return
		}
		cfg = &parsed
	}

	// 3. 创建任务
	task, err := ctrl.taskSvc.CreateTask(req.Name, req.URL, cfg)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, task)
}

// List 查询任务列表
func (ctrl *TaskController) List(c *gin.Context) {
	// 1. 解析分页与过滤参数
	page, pageSize := parsePagination(c)
	filter := &repository.TaskFilter{
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status := model.TaskStatus(statusStr)
		if !status.Valid() {
			Error(c, http.StatusBadRequest, "无效的任务状态", statusStr)
			return
		}
		filter.Status = &status
	}
	if name := c.Query("name"); name != "" {
		filter.Name = &name
	}
	if rawURL := c.Query("url"); rawURL != "" {
		filter.URL = &rawURL
	}
	if startStr := c.Query("start_time"); startStr != "" {
		if t, err := time.Parse(time.RFC3339, startStr); err == nil {
			filter.StartTime = &t
		}
	}
	if endStr := c.Query("end_time"); endStr != "" {
		if t, err := time.Parse(time.RFC3339, endStr); err == nil {
			filter.EndTime = &t
		}
	}

	// 2. 查询
	tasks, err := ctrl.taskSvc.ListTasks(filter)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Paginated(c, tasks, PaginationInfo{
		Page:     page,
		PageSize: pageSize,
		Total:    int64(len(tasks)),
	})
}

// Get 获取任务详情
func (ctrl *TaskController) Get(c *gin.Context) {
	task, err := ctrl.taskSvc.GetTask(c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, task)
}

// Update 更新任务
func (ctrl *TaskController) Update(c *gin.Context) {
	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "请求参数无效", err.Error())
		return
	}

	var cfg *model.TaskConfig
	if len(req.Config) > 0 {
		parsed, err := model.ParseTaskConfig(req.Config)
		if err != nil {
			Error(c, http.StatusBadRequest, "任务配置无效", err.Error())
			return
		}
		cfg = &parsed
	}

	task, err := ctrl.taskSvc.UpdateTask(c.Param("id"), req.Name, req.URL, cfg)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, task)
}

// Delete 删除任务及其级联数据
func (ctrl *TaskController) Delete(c *gin.Context) {
	if err := ctrl.taskSvc.DeleteTask(c.Param("id")); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"deleted": true})
}

// Start 启动任务抓取
func (ctrl *TaskController) Start(c *gin.Context) {
	id := c.Param("id")
	if err := ctrl.scrapeSvc.RunAsync(id); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"task_id": id, "status": model.TaskStatusRunning})
}

// Stop 停止任务抓取
func (ctrl *TaskController) Stop(c *gin.Context) {
	id := c.Param("id")
	if err := ctrl.scrapeSvc.Stop(id); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"task_id": id, "stopping": true})
}

// Progress 获取任务进度
func (ctrl *TaskController) Progress(c *gin.Context) {
	progress, err := ctrl.taskSvc.GetProgress(c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, progress)
}

// Data 获取任务抓取到的数据
func (ctrl *TaskController) Data(c *gin.Context) {
	id := c.Param("id")

	// 404 优先于空列表
	if _, err := ctrl.taskSvc.GetTask(id); err != nil {
		ServiceError(c, err)
		return
	}

	page, pageSize := parsePagination(c)
	offset := (page - 1) * pageSize

	var records []*model.FacebookDataModel
	var err error
	if typeStr := c.Query("type"); typeStr != "" {
		dataType := model.DataType(typeStr)
		if !dataType.Valid() {
			Error(c, http.StatusBadRequest, "无效的数据类型", typeStr)
			return
		}
		records, err = ctrl.dataRepo.FindByTaskAndType(id, dataType, pageSize, offset)
	} else {
		records, err = ctrl.dataRepo.FindByTaskID(id, pageSize, offset)
	}
	if err != nil {
		ServiceError(c, err)
		return
	}

	total, err := ctrl.dataRepo.CountByTaskID(id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Paginated(c, records, PaginationInfo{
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

// Statistics 获取任务统计
func (ctrl *TaskController) Statistics(c *gin.Context) {
	stats, err := ctrl.statsSvc.TaskStatistics(c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, stats)
}

// parsePagination 解析分页参数
func parsePagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}
	return page, pageSize
}
