package scraper

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/devjogerio/web-scraping-facebook/internal/config"
	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"github.com/devjogerio/web-scraping-facebook/internal/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type contextKey string

const taskIDKey contextKey = "scraper_task_id"

// WithTaskID 将任务 ID 注入上下文,供抓取器登记在途请求
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey, taskID)
}

// TaskIDFromContext 从上下文取出任务 ID
func TaskIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(taskIDKey).(string); ok {
		return v
	}
	return ""
}

var numberPattern = regexp.MustCompile(`\d+`)

// 候选的帖子容器选择器,页面版本不同时依次尝试
var postSelectors = []string{
	"[data-testid=\"post\"]",
	"[role=\"article\"]",
	"div[data-ft]",
	".userContentWrapper",
}

// 候选的评论容器选择器
var commentSelectors = []string{
	"div[id^=\"comment_\"]",
	"[aria-label=\"Comment\"]",
	"[data-testid=\"comment\"]",
}

// FacebookExtractor 基于 HTTP + goquery 的 Facebook 抓取器
type FacebookExtractor struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	logger    *logrus.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc // 按任务 ID 登记的在途请求取消函数
}

// NewFacebookExtractor 创建 Facebook 抓取器
func NewFacebookExtractor(cfg config.ScraperConfig, logger *logrus.Logger) *FacebookExtractor {
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 0.5
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &FacebookExtractor{
		client:    &http.Client{Timeout: 60 * time.Second},
		userAgent: cfg.UserAgent,
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		logger:    logger,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Extract 抓取指定类型的数据
func (e *FacebookExtractor) Extract(ctx context.Context, url string, dataType model.DataType, limit int, cfg model.TaskConfig) ([]RawRecord, error) {
	switch dataType {
	case model.DataTypePost:
		return e.extractPosts(ctx, url, limit, cfg)
	case model.DataTypeComment:
		return e.extractComments(ctx, url, limit, cfg)
	case model.DataTypeProfile:
		return e.extractProfile(ctx, url, cfg)
	case model.DataTypeLike, model.DataTypeShare:
		// 点赞/分享列表需要登录态才能访问,当前版本不抓取
		e.logger.WithField("data_type", dataType).Info("extraction not supported for this data type")
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported data type: %s", dataType)
	}
}

// Stop 取消指定任务的在途请求
func (e *FacebookExtractor) Stop(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cancel, ok := e.cancels[taskID]; ok {
		cancel()
		delete(e.cancels, taskID)
		e.logger.WithField("task_id", taskID).Info("scraping stop requested")
	}
}

// fetchDocument 抓取页面并解析为文档
// 应用速率限制、任务级配置的单请求超时与重试
func (e *FacebookExtractor) fetchDocument(ctx context.Context, url string, cfg model.TaskConfig) (*goquery.Document, error) {
	// 登记在途请求,Stop 可以取消
	reqCtx := ctx
	if taskID := TaskIDFromContext(ctx); taskID != "" {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithCancel(ctx)
		e.mu.Lock()
		e.cancels[taskID] = cancel
		e.mu.Unlock()
		defer func() {
			e.mu.Lock()
			delete(e.cancels, taskID)
			e.mu.Unlock()
			cancel()
		}()
	}

	var lastErr error
	attempts := cfg.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		// 礼貌性限速: 任务配置的 delay 区间换算为最低请求间隔
		if err := e.limiter.Wait(reqCtx); err != nil {
			return nil, err
		}
		if cfg.DelayMin > 0 {
			select {
			case <-time.After(time.Duration(cfg.DelayMin * float64(time.Second))):
			case <-reqCtx.Done():
				return nil, reqCtx.Err()
			}
		}

		doc, err := e.fetchOnce(reqCtx, url, cfg)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if reqCtx.Err() != nil {
			return nil, reqCtx.Err()
		}
		e.logger.WithError(err).WithFields(logrus.Fields{
			"url":     url,
			"attempt": attempt + 1,
		}).Warn("fetch failed, retrying")
	}
	return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", url, attempts, lastErr)
}

func (e *FacebookExtractor) fetchOnce(ctx context.Context, url string, cfg model.TaskConfig) (*goquery.Document, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// extractPosts 抓取页面帖子
func (e *FacebookExtractor) extractPosts(ctx context.Context, url string, limit int, cfg model.TaskConfig) ([]RawRecord, error) {
	doc, err := e.fetchDocument(ctx, url, cfg)
	if err != nil {
		return nil, err
	}

	elements := selectFirst(doc, postSelectors)
	records := make([]RawRecord, 0, limit)

	elements.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		content := utils.SanitizeContent(sel.Text())
		// 过滤无正文的占位节点
		if len(content) <= 10 {
			return true
		}

		rec := RawRecord{
			Content:   content,
			SourceURL: url,
			Author:    strings.TrimSpace(sel.Find("strong a, h3 a, h5 a").First().Text()),
			Timestamp: strings.TrimSpace(sel.Find("abbr").First().Text()),
		}
		rec.LikesCount = parseCount(sel.Find("[aria-label*=\"Like\"], [data-testid=\"like_count\"], .like_def").First().Text())
		rec.CommentsCount = parseCount(sel.Find("[aria-label*=\"Comment\"], [data-testid=\"comment_count\"], .cmt_def").First().Text())
		rec.SharesCount = parseCount(sel.Find("[aria-label*=\"Share\"], [data-testid=\"share_count\"]").First().Text())

		if cfg.IncludeReactions {
			rec.Reactions = map[string]int{"like": rec.LikesCount}
		}
		if cfg.ExtractLinks {
			rec.Links = collectAttrs(sel.Find("a[href]"), "href", 10)
		}
		if cfg.ExtractImages {
			rec.Images = collectAttrs(sel.Find("img[src]"), "src", 10)
		}

		records = append(records, rec)
		return len(records) < limit
	})

	e.logger.WithFields(logrus.Fields{"url": url, "count": len(records)}).Info("posts extracted")
	return records, nil
}

// extractComments 抓取页面评论
func (e *FacebookExtractor) extractComments(ctx context.Context, url string, limit int, cfg model.TaskConfig) ([]RawRecord, error) {
	doc, err := e.fetchDocument(ctx, url, cfg)
	if err != nil {
		return nil, err
	}

	elements := selectFirst(doc, commentSelectors)
	records := make([]RawRecord, 0, limit)

	elements.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		content := utils.SanitizeContent(sel.Find("div > div").First().Text())
		if content == "" {
			content = utils.SanitizeContent(sel.Text())
		}
		if content == "" {
			return true
		}

		records = append(records, RawRecord{
			Content:    content,
			SourceURL:  url,
			Author:     strings.TrimSpace(sel.Find("a").First().Text()),
			Timestamp:  strings.TrimSpace(sel.Find("abbr").First().Text()),
			LikesCount: parseCount(sel.Find("[aria-label*=\"Like\"]").First().Text()),
		})
		return len(records) < limit
	})

	e.logger.WithFields(logrus.Fields{"url": url, "count": len(records)}).Info("comments extracted")
	return records, nil
}

// extractProfile 抓取主页信息,始终返回至多一条记录
func (e *FacebookExtractor) extractProfile(ctx context.Context, url string, cfg model.TaskConfig) ([]RawRecord, error) {
	doc, err := e.fetchDocument(ctx, url, cfg)
	if err != nil {
		return nil, err
	}

	name := utils.SanitizeContent(doc.Find("title").First().Text())
	var sections []string
	doc.Find("#bio, #about, [data-testid=\"profile_intro_card\"], div#objects_container div").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		text := utils.SanitizeContent(sel.Text())
		if len(text) > 20 {
			sections = append(sections, text)
		}
		return len(sections) < 5
	})

	content := name
	if len(sections) > 0 {
		content = utils.CollapseLines(name + "\n" + strings.Join(sections, "\n"))
	}
	if content == "" {
		return nil, nil
	}

	return []RawRecord{{
		Content:   content,
		Author:    name,
		SourceURL: url,
	}}, nil
}

// selectFirst 依次尝试选择器,返回第一个命中的集合
func selectFirst(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, s := range selectors {
		sel := doc.Find(s)
		if sel.Length() > 0 {
			return sel
		}
	}
	return doc.Find(selectors[len(selectors)-1])
}

// parseCount 从文本中提取第一个数字
func parseCount(text string) int {
	cleaned := strings.NewReplacer(".", "", ",", "").Replace(text)
	match := numberPattern.FindString(cleaned)
	if match == "" {
		return 0
	}
	var n int
	_, _ = fmt.Sscanf(match, "%d", &n)
	return n
}

// collectAttrs 收集元素属性值,去重并限制数量
func collectAttrs(sel *goquery.Selection, attr string, max int) []string {
	seen := make(map[string]struct{})
	var values []string
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, ok := s.Attr(attr)
		if !ok || v == "" {
			return true
		}
		if _, dup := seen[v]; dup {
			return true
		}
		seen[v] = struct{}{}
		values = append(values, v)
		return len(values) < max
	})
	return values
}
