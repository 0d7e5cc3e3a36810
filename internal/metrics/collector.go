package metrics

import (
	"context"
	"time"

	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"gorm.io/gorm"
)

// StatusCounter 按状态统计任务数,由仓储层提供
type StatusCounter func(ctx context.Context) (map[model.TaskStatus]int64, error)

// Collector 指标收集器
// 定期刷新数据库连接数和任务状态分布
type Collector struct {
	db       *gorm.DB
	counter  StatusCounter
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, counter StatusCounter, interval time.Duration) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:       db,
		counter:  counter,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	go c.collect()
}

// Stop 停止指标收集器
func (c *Collector) Stop() {
	c.cancel()
	<-c.done
}

// collect 定期收集指标
func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			// 更新数据库连接数指标
			_ = UpdateDatabaseConnections(c.db)
			c.refreshTasksByState()
		}
	}
}

// refreshTasksByState 刷新任务状态分布
// 每种合法状态都必须写入,归零消失的状态
func (c *Collector) refreshTasksByState() {
	if c.counter == nil {
		return
	}
	counts, err := c.counter(c.ctx)
	if err != nil {
		return
	}
	for _, status := range model.ValidTaskStatuses {
		UpdateTasksByState(string(status), float64(counts[status]))
	}
}
