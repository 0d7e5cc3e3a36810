package api

import (
	"github.com/devjogerio/web-scraping-facebook/internal/service"
	"github.com/gin-gonic/gin"
)

// DashboardController 仪表盘控制器
type DashboardController struct {
	statsSvc service.StatisticsService
}

// NewDashboardController 创建仪表盘控制器
func NewDashboardController(statsSvc service.StatisticsService) *DashboardController {
	return &DashboardController{statsSvc: statsSvc}
}

// Statistics 仪表盘统计数据
func (ctrl *DashboardController) Statistics(c *gin.Context) {
	stats, err := ctrl.statsSvc.Dashboard()
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, stats)
}
