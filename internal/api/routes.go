package api

import (
	"github.com/devjogerio/web-scraping-facebook/internal/config"
	"github.com/devjogerio/web-scraping-facebook/internal/metrics"
	"github.com/devjogerio/web-scraping-facebook/internal/websocket"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes 注册全部路由与中间件
func SetupRoutes(cfg *config.Config, db *gorm.DB, hub *websocket.Hub, taskCtrl *TaskController, exportCtrl *ExportController, dashCtrl *DashboardController) *gin.Engine {
	if config.IsProduction(cfg) {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(CORSMiddleware(cfg.CORS))
	router.Use(RateLimitMiddleware(100, 200))

	// 健康检查与指标
	healthCtrl := NewHealthController(db)
	router.GET("/health", healthCtrl.Check)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// 任务进度 WebSocket
	if hub != nil {
		router.GET("/ws/tasks/:id", websocket.TaskProgressHandler(hub, GetLogger()))
	}

	v1 := router.Group("/api/v1")
	{
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", taskCtrl.Create)
			tasks.GET("", taskCtrl.List)
			tasks.GET("/:id", taskCtrl.Get)
			tasks.PUT("/:id", taskCtrl.Update)
			tasks.DELETE("/:id", taskCtrl.Delete)
			tasks.POST("/:id/start", taskCtrl.Start)
			tasks.POST("/:id/stop", taskCtrl.Stop)
			tasks.GET("/:id/progress", taskCtrl.Progress)
			tasks.GET("/:id/data", taskCtrl.Data)
			tasks.GET("/:id/statistics", taskCtrl.Statistics)
			tasks.GET("/:id/exports", exportCtrl.History)
		}

		exports := v1.Group("/exports")
		{
			exports.POST("", exportCtrl.Create)
			exports.GET("", exportCtrl.List)
			exports.GET("/statistics", exportCtrl.Statistics)
			exports.GET("/:id", exportCtrl.Get)
			exports.GET("/:id/download", exportCtrl.Download)
			exports.DELETE("/:id", exportCtrl.Delete)
		}

		v1.GET("/dashboard/statistics", dashCtrl.Statistics)
	}

	return router
}
