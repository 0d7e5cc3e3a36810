package api

import (
	"net/http"

	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"github.com/devjogerio/web-scraping-facebook/internal/service"
	"github.com/gin-gonic/gin"
)

// CreateExportRequest 创建导出请求
type CreateExportRequest struct {
	TaskID  string                 `json:"task_id" binding:"required"`
	Options map[string]interface{} `json:"options"`
}

// ExportController 导出控制器
type ExportController struct {
	exportSvc service.ExportService
}

// NewExportController 创建导出控制器
func NewExportController(exportSvc service.ExportService) *ExportController {
	return &ExportController{exportSvc: exportSvc}
}

// Create 创建导出任务,后台生成工作簿
func (ctrl *ExportController) Create(c *gin.Context) {
	var req CreateExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "请求参数无效", err.Error())
		return
	}

	job, err := ctrl.exportSvc.RequestExport(req.TaskID, req.Options)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, job)
}

// List 查询导出任务列表
func (ctrl *ExportController) List(c *gin.Context) {
	page, pageSize := parsePagination(c)
	jobs, err := ctrl.exportSvc.ListExports(pageSize, (page-1)*pageSize)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Paginated(c, jobs, PaginationInfo{
		Page:     page,
		PageSize: pageSize,
		Total:    int64(len(jobs)),
	})
}

// Get 获取导出任务详情
func (ctrl *ExportController) Get(c *gin.Context) {
	job, err := ctrl.exportSvc.GetExport(c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, job)
}

// Download 下载导出文件
// 文件已丢失时返回 422 并把导出标记为失败
func (ctrl *ExportController) Download(c *gin.Context) {
	job, err := ctrl.exportSvc.ValidateFile(c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	if job.Status != model.ExportStatusCompleted {
		Error(c, http.StatusUnprocessableEntity, "导出尚未完成", string(job.Status))
		return
	}
	c.FileAttachment(job.FilePath, job.Filename)
}

// Delete 删除导出任务及其文件
func (ctrl *ExportController) Delete(c *gin.Context) {
	if err := ctrl.exportSvc.DeleteExport(c.Param("id")); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"deleted": true})
}

// History 查询指定任务的导出历史
func (ctrl *ExportController) History(c *gin.Context) {
	jobs, err := ctrl.exportSvc.TaskHistory(c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, jobs)
}

// Statistics 导出统计
func (ctrl *ExportController) Statistics(c *gin.Context) {
	stats, err := ctrl.exportSvc.Statistics()
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, stats)
}
