package container

import (
	"context"
	"fmt"
	"time"

	"github.com/devjogerio/web-scraping-facebook/internal/api"
	"github.com/devjogerio/web-scraping-facebook/internal/config"
	"github.com/devjogerio/web-scraping-facebook/internal/database"
	"github.com/devjogerio/web-scraping-facebook/internal/excel"
	"github.com/devjogerio/web-scraping-facebook/internal/metrics"
	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"github.com/devjogerio/web-scraping-facebook/internal/repository"
	"github.com/devjogerio/web-scraping-facebook/internal/scraper"
	"github.com/devjogerio/web-scraping-facebook/internal/service"
	"github.com/devjogerio/web-scraping-facebook/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理数据库连接、仓储、服务和进度推送等全部依赖
type Container struct {
	cfg    *config.Config
	db     *gorm.DB
	logger *logrus.Logger

	taskRepo   repository.TaskRepository
	dataRepo   repository.FacebookDataRepository
	exportRepo repository.ExportJobRepository

	hub          *websocket.Hub
	extractor    scraper.Extractor
	taskSvc      service.TaskService
	scrapeSvc    service.ScrapeService
	exportSvc    service.ExportService
	statsSvc     service.StatisticsService
	retentionSvc service.RetentionService
	collector    *metrics.Collector
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. 初始化日志
	logger, err := api.NewLoggerFromConfig(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	api.SetLogger(logger)

	// 2. 初始化数据库（带重试机制）
	// 默认重试 3 次，初始间隔 1 秒，指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := database.CreateIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	// 3. 初始化仓储
	taskRepo := repository.NewTaskRepository(db)
	dataRepo := repository.NewFacebookDataRepository(db)
	exportRepo := repository.NewExportJobRepository(db)

	// 4. 初始化进度推送 Hub
	hub := websocket.NewHub()
	go hub.Run()

	// 5. 初始化抓取器与工作簿渲染器
	extractor := scraper.NewFacebookExtractor(cfg.Scraper, logger)
	sink := excel.NewExcelizeSink(logger)

	// 6. 初始化服务
	taskSvc := service.NewTaskService(taskRepo, dataRepo, logger)
	scrapeSvc := service.NewScrapeService(taskSvc, dataRepo, extractor, hub, logger)
	exportSvc := service.NewExportService(taskRepo, dataRepo, exportRepo, sink, cfg.Export.Dir, logger)
	statsSvc := service.NewStatisticsService(taskSvc, taskRepo, dataRepo, exportRepo, logger)
	retentionSvc := service.NewRetentionService(cfg.Retention, taskSvc, taskRepo, exportRepo, logger)

	// 7. 初始化指标收集器
	collector := metrics.NewCollector(db, func(_ context.Context) (map[model.TaskStatus]int64, error) {
		return taskRepo.CountByStatus()
	}, 15*time.Second)

	return &Container{
		cfg:          cfg,
		db:           db,
		logger:       logger,
		taskRepo:     taskRepo,
		dataRepo:     dataRepo,
		exportRepo:   exportRepo,
		hub:          hub,
		extractor:    extractor,
		taskSvc:      taskSvc,
		scrapeSvc:    scrapeSvc,
		exportSvc:    exportSvc,
		statsSvc:     statsSvc,
		retentionSvc: retentionSvc,
		collector:    collector,
	}, nil
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Logger 获取日志记录器
func (c *Container) Logger() *logrus.Logger {
	return c.logger
}

// Hub 获取进度推送 Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// TaskRepository 获取任务仓储
func (c *Container) TaskRepository() repository.TaskRepository {
	return c.taskRepo
}

// DataRepository 获取抓取数据仓储
func (c *Container) DataRepository() repository.FacebookDataRepository {
	return c.dataRepo
}

// ExportRepository 获取导出任务仓储
func (c *Container) ExportRepository() repository.ExportJobRepository {
	return c.exportRepo
}

// TaskService 获取任务服务
func (c *Container) TaskService() service.TaskService {
	return c.taskSvc
}

// ScrapeService 获取抓取执行服务
func (c *Container) ScrapeService() service.ScrapeService {
	return c.scrapeSvc
}

// ExportService 获取导出服务
func (c *Container) ExportService() service.ExportService {
	return c.exportSvc
}

// StatisticsService 获取统计服务
func (c *Container) StatisticsService() service.StatisticsService {
	return c.statsSvc
}

// RetentionService 获取数据保留服务
func (c *Container) RetentionService() service.RetentionService {
	return c.retentionSvc
}

// MetricsCollector 获取指标收集器
func (c *Container) MetricsCollector() *metrics.Collector {
	return c.collector
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
