package service

import (
	"context"
	"fmt"
	"time"

	"github.com/devjogerio/web-scraping-facebook/internal/metrics"
	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"github.com/devjogerio/web-scraping-facebook/internal/repository"
	"github.com/devjogerio/web-scraping-facebook/internal/scraper"
	"github.com/devjogerio/web-scraping-facebook/internal/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ProgressFunc 进度事件回调
type ProgressFunc func(event websocket.ProgressEvent)

// ScrapeService 抓取执行服务接口
type ScrapeService interface {
	Run(ctx context.Context, taskID string) error
	RunAsync(taskID string) error
	Stop(taskID string) error
	OnProgress(fn ProgressFunc)
}

// scrapeService 抓取执行服务实现
type scrapeService struct {
	taskSvc   TaskService
	dataRepo  repository.FacebookDataRepository
	extractor scraper.Extractor
	hub       *websocket.Hub
	logger    *logrus.Logger
	listeners []ProgressFunc
}

// NewScrapeService 创建抓取执行服务
func NewScrapeService(taskSvc TaskService, dataRepo repository.FacebookDataRepository, extractor scraper.Extractor, hub *websocket.Hub, logger *logrus.Logger) ScrapeService {
	return &scrapeService{
		taskSvc:   taskSvc,
		dataRepo:  dataRepo,
		extractor: extractor,
		hub:       hub,
		logger:    logger,
	}
}

// OnProgress 注册进度回调,用于终端适配器等额外监听方
func (s *scrapeService) OnProgress(fn ProgressFunc) {
	s.listeners = append(s.listeners, fn)
}

// RunAsync 异步执行任务
// 同步获取租约以便立刻报告忙碌,执行在后台进行
func (s *scrapeService) RunAsync(taskID string) error {
	task, err := s.taskSvc.GetTask(taskID)
	if err != nil {
		return err
	}
	if task.Status == model.TaskStatusRunning {
		return ErrTaskBusy
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.taskSvc.AcquireLease(taskID, task.URL, cancel); err != nil {
		cancel()
		return err
	}

	go func() {
		defer s.taskSvc.ReleaseLease(taskID)
		defer cancel()
		if err := s.execute(ctx, task); err != nil {
			s.logger.WithError(err).WithField("task_id", taskID).Error("scraping run failed")
		}
	}()
	return nil
}

// Run 同步执行任务,终端适配器使用
func (s *scrapeService) Run(ctx context.Context, taskID string) error {
	task, err := s.taskSvc.GetTask(taskID)
	if err != nil {
		return err
	}
	if task.Status == model.TaskStatusRunning {
		return ErrTaskBusy
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := s.taskSvc.AcquireLease(taskID, task.URL, cancel); err != nil {
		return err
	}
	defer s.taskSvc.ReleaseLease(taskID)

	return s.execute(runCtx, task)
}

// Stop 请求停止正在执行的任务
func (s *scrapeService) Stop(taskID string) error {
	if cancel, ok := s.taskSvc.LeaseCancel(taskID); ok {
		s.extractor.Stop(taskID)
		cancel()
		s.logger.WithField("task_id", taskID).Info("stop requested")
		return nil
	}

	// 无租约: 进程重启后遗留的 running 状态直接落为取消
	task, err := s.taskSvc.GetTask(taskID)
	if err != nil {
		return err
	}
	if task.Status == model.TaskStatusRunning {
		_, err := s.taskSvc.CancelTask(taskID)
		return err
	}
	return &InvalidTransitionError{TaskID: taskID, From: string(task.Status), To: string(model.TaskStatusCancelled)}
}

// execute 执行一次完整抓取
// 按数据类型依次抓取,单个类型失败不中断整体,类型之间检查取消信号
func (s *scrapeService) execute(ctx context.Context, task *model.TaskModel) error {
	cfg, err := task.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to parse task config: %w", err)
	}

	task, err = s.taskSvc.StartTask(task.ID)
	if err != nil {
		return err
	}
	s.publish(task, cfg, "", "scraping started")

	ctx = scraper.WithTaskID(ctx, task.ID)
	caps := splitLimit(cfg.MaxItems, len(cfg.DataTypes))

	var failed int
	for i, dataType := range cfg.DataTypes {
		// 类型之间是取消检查点
		select {
		case <-ctx.Done():
			if _, err := s.taskSvc.CancelTask(task.ID); err != nil {
				return err
			}
			s.publish(task, cfg, "", "scraping cancelled")
			s.logger.WithField("task_id", task.ID).Info("scraping cancelled")
			return nil
		default:
		}

		// 达到条数上限提前结束
		if task.ItemsProcessed >= cfg.MaxItems {
			break
		}

		records, err := s.extractor.Extract(ctx, task.URL, dataType, caps[i], cfg)
		if err != nil {
			if ctx.Err() != nil {
				if _, cerr := s.taskSvc.CancelTask(task.ID); cerr != nil {
					return cerr
				}
				s.publish(task, cfg, string(dataType), "scraping cancelled")
				return nil
			}
			// 单个类型失败只记录,继续抓取剩余类型
			failed++
			metrics.RecordExtractionError(string(dataType))
			s.logger.WithError(err).WithFields(logrus.Fields{
				"task_id":   task.ID,
				"data_type": dataType,
			}).Warn("extraction failed for data type")
			continue
		}

		stored := s.persist(task, dataType, records, cfg)
		metrics.RecordExtracted(string(dataType), stored)

		task, err = s.taskSvc.IncrementProgress(task.ID, stored)
		if err != nil {
			return s.failRun(task, cfg, fmt.Errorf("failed to update progress: %w", err))
		}
		s.publish(task, cfg, string(dataType), "")
	}

	task, err = s.taskSvc.CompleteTask(task.ID)
	if err != nil {
		return err
	}
	s.publish(task, cfg, "", "scraping completed")
	s.logger.WithFields(logrus.Fields{
		"task_id":         task.ID,
		"items_processed": task.ItemsProcessed,
		"failed_types":    failed,
	}).Info("scraping completed")
	return nil
}

// failRun 把整体执行错误落到任务上
func (s *scrapeService) failRun(task *model.TaskModel, cfg model.TaskConfig, cause error) error {
	if failed, err := s.taskSvc.FailTask(task.ID, cause.Error()); err == nil {
		s.publish(failed, cfg, "", cause.Error())
	} else {
		s.logger.WithError(err).WithField("task_id", task.ID).Error("failed to mark task failed")
	}
	return cause
}

// persist 持久化抓取结果,返回实际写入条数
func (s *scrapeService) persist(task *model.TaskModel, dataType model.DataType, records []scraper.RawRecord, cfg model.TaskConfig) int {
	stored := 0
	for _, raw := range records {
		if raw.Content == "" {
			continue
		}
		if !withinDateFilter(raw.Timestamp, cfg.DateFilter) {
			continue
		}

		record := &model.FacebookDataModel{
			ID:          uuid.New().String(),
			TaskID:      task.ID,
			DataType:    dataType,
			Content:     raw.Content,
			SourceURL:   raw.SourceURL,
			ExtractedAt: time.Now(),
		}
		meta := model.RecordMetadata{
			Author:        raw.Author,
			Timestamp:     raw.Timestamp,
			LikesCount:    raw.LikesCount,
			CommentsCount: raw.CommentsCount,
			SharesCount:   raw.SharesCount,
			Links:         raw.Links,
			Images:        raw.Images,
		}
		if cfg.IncludeReactions {
			meta.Reactions = raw.Reactions
		}
		if err := record.SetMetadata(meta); err != nil {
			s.logger.WithError(err).Warn("failed to encode record metadata")
			continue
		}
		if err := s.dataRepo.Create(record); err != nil {
			s.logger.WithError(err).WithField("task_id", task.ID).Warn("failed to store record")
			continue
		}
		stored++
	}
	return stored
}

// publish 推送进度事件到 WebSocket 与注册的回调
func (s *scrapeService) publish(task *model.TaskModel, cfg model.TaskConfig, currentType, message string) {
	event := websocket.ProgressEvent{
		TaskID:          task.ID,
		Status:          string(task.Status),
		ItemsProcessed:  task.ItemsProcessed,
		ProgressPercent: task.ProgressPercentage(cfg.MaxItems),
		CurrentDataType: currentType,
		Message:         message,
	}
	if s.hub != nil {
		s.hub.PublishProgress(event)
	}
	for _, fn := range s.listeners {
		fn(event)
	}
}

// splitLimit 把条数上限按数据类型平均分配,余数归最后一个类型
func splitLimit(max, types int) []int {
	if types <= 0 {
		return nil
	}
	per := max / types
	caps := make([]int, types)
	for i := range caps {
		caps[i] = per
	}
	caps[types-1] = max - per*(types-1)
	return caps
}

// withinDateFilter 检查记录时间戳是否落在日期过滤范围内
// 无法解析的时间戳不过滤
func withinDateFilter(timestamp string, filter *model.DateFilter) bool {
	if filter == nil || timestamp == "" {
		return true
	}
	ts, err := time.Parse("2006-01-02", timestamp)
	if err != nil {
		return true
	}
	if filter.StartDate != "" {
		if start, err := time.Parse("2006-01-02", filter.StartDate); err == nil && ts.Before(start) {
			return false
		}
	}
	if filter.EndDate != "" {
		if end, err := time.Parse("2006-01-02", filter.EndDate); err == nil && ts.After(end) {
			return false
		}
	}
	return true
}
