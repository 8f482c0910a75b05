// Package batch 将同类别的并发请求聚合成批次并行执行
// 每个类别由常驻 worker 负责,聚合窗口限定了单个调用方的最长等待
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"backend/internal/logger"
	"backend/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrQueueOverflow 类别队列已满,立即失败向调用方传递背压
var ErrQueueOverflow = errors.New("batch queue overflow")

// ErrShuttingDown 聚合器正在关闭,未处理的请求以此错误解除阻塞
var ErrShuttingDown = errors.New("batch aggregator shutting down")

// Invocation 批次成员的执行闭包
type Invocation func(ctx context.Context) (any, error)

// outcome 单次赋值的结果槽内容
type outcome struct {
	value any
	err   error
}

// request 入队的批量请求
type request struct {
	id         string
	fn         Invocation
	enqueuedAt time.Time
	result     chan outcome // 容量 1,恰好写入一次
}

// Config 聚合配置
type Config struct {
	BatchSize    int           // 单批最大请求数
	BatchWindow  time.Duration // 聚合窗口
	MaxQueueSize int           // 单类别队列上限
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		BatchSize:    10,
		BatchWindow:  100 * time.Millisecond,
		MaxQueueSize: 1000,
	}
}

// Stats 运行统计快照
type Stats struct {
	TotalRequests   int64   `json:"total_requests"`
	BatchesExecuted int64   `json:"batches_executed"`
	AvgBatchSize    float64 `json:"avg_batch_size"`
	QueueOverflows  int64   `json:"queue_overflows"`
	MeanWaitMs      float64 `json:"mean_wait_ms"`
}

// Aggregator 批量聚合器
// 每个类别持有一个常驻 worker goroutine,由聚合器统一监督其生命周期
type Aggregator struct {
	cfg *Config

	mu      sync.Mutex
	queues  map[string][]*request
	wakes   map[string]chan struct{}
	closed  bool
	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// 统计
	totalRequests   int64
	batchesExecuted int64
	batchedRequests int64
	queueOverflows  int64
	cumulativeWait  time.Duration
}

// NewAggregator 创建聚合器
func NewAggregator(cfg *Config) *Aggregator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BatchWindow <= 0 {
		cfg.BatchWindow = 100 * time.Millisecond
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Aggregator{
		cfg:     cfg,
		queues:  make(map[string][]*request),
		wakes:   make(map[string]chan struct{}),
		rootCtx: ctx,
		cancel:  cancel,
	}
}

// Submit 提交请求并阻塞当前调用方直到自身结果就绪
// 队列已满时立即返回 ErrQueueOverflow,不阻塞其他并发调用方
func (a *Aggregator) Submit(ctx context.Context, category string, fn Invocation) (any, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrShuttingDown
	}

	queue := a.queues[category]
	if len(queue) >= a.cfg.MaxQueueSize {
		a.queueOverflows++
		a.mu.Unlock()
		metrics.BatchRequestsTotal.WithLabelValues(category, "overflow").Inc()
		return nil, ErrQueueOverflow
	}

	req := &request{
		id:         uuid.NewString(),
		fn:         fn,
		enqueuedAt: time.Now(),
		result:     make(chan outcome, 1),
	}
	a.queues[category] = append(queue, req)
	a.totalRequests++
	metrics.BatchQueueDepth.WithLabelValues(category).Set(float64(len(a.queues[category])))

	// 该类别的常驻 worker 在首次提交时启动
	wake, ok := a.wakes[category]
	if !ok {
		wake = make(chan struct{}, 1)
		a.wakes[category] = wake
		a.wg.Add(1)
		go a.runWorker(category, wake)
	}
	a.mu.Unlock()

	// 唤醒信号,容量 1,已有待处理信号时无须再发
	select {
	case wake <- struct{}{}:
	default:
	}

	select {
	case out := <-req.result:
		return out.value, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runWorker 类别 worker 主循环
// 空闲时阻塞在唤醒信号上;被唤醒后反复执行 聚合窗口→取批→并行执行,
// 直到队列清空或聚合器关闭
func (a *Aggregator) runWorker(category string, wake chan struct{}) {
	defer a.wg.Done()

	for {
		select {
		case <-a.rootCtx.Done():
			return
		case <-wake:
		}

		for {
			timer := time.NewTimer(a.cfg.BatchWindow)
			select {
			case <-a.rootCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			members := a.take(category)
			if len(members) == 0 {
				break
			}
			a.execute(category, members)

			// 队列非空则立即进入下一个聚合周期
			if a.queueLen(category) == 0 {
				break
			}
		}
	}
}

// take 原子地取出最早入队的至多 BatchSize 个请求（FIFO）
func (a *Aggregator) take(category string) []*request {
	a.mu.Lock()
	defer a.mu.Unlock()

	queue := a.queues[category]
	if len(queue) == 0 {
		return nil
	}

	n := a.cfg.BatchSize
	if n > len(queue) {
		n = len(queue)
	}
	members := queue[:n]
	remaining := make([]*request, len(queue)-n)
	copy(remaining, queue[n:])
	a.queues[category] = remaining

	now := time.Now()
	for _, req := range members {
		a.cumulativeWait += now.Sub(req.enqueuedAt)
	}
	a.batchesExecuted++
	a.batchedRequests += int64(n)

	metrics.BatchQueueDepth.WithLabelValues(category).Set(float64(len(remaining)))
	metrics.BatchSizeObserved.WithLabelValues(category).Observe(float64(n))

	return members
}

// execute 并行执行批次成员
// 单个成员失败只解析自己的结果槽,不影响同批其他成员
func (a *Aggregator) execute(category string, members []*request) {
	var wg sync.WaitGroup
	for _, req := range members {
		wg.Add(1)
		go func(req *request) {
			defer wg.Done()
			value, err := req.fn(a.rootCtx)
			if err != nil {
				metrics.BatchRequestsTotal.WithLabelValues(category, "error").Inc()
				logger.Get().Debug("批次成员执行失败",
					zap.String("category", category),
					zap.String("request_id", req.id),
					zap.Error(err))
			} else {
				metrics.BatchRequestsTotal.WithLabelValues(category, "ok").Inc()
			}
			req.result <- outcome{value: value, err: err}
		}(req)
	}
	wg.Wait()
}

// queueLen 当前队列长度
func (a *Aggregator) queueLen(category string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queues[category])
}

// GetStats 统计快照
func (a *Aggregator) GetStats() *Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := &Stats{
		TotalRequests:   a.totalRequests,
		BatchesExecuted: a.batchesExecuted,
		QueueOverflows:  a.queueOverflows,
	}
	if a.batchesExecuted > 0 {
		st.AvgBatchSize = float64(a.batchedRequests) / float64(a.batchesExecuted)
	}
	if a.batchedRequests > 0 {
		st.MeanWaitMs = float64(a.cumulativeWait.Milliseconds()) / float64(a.batchedRequests)
	}
	return st
}

// Shutdown 关闭聚合器
// 取消进行中的 worker 周期,所有仍在排队的请求以 ErrShuttingDown 解除阻塞,
// 不会留下永远悬空的结果槽
func (a *Aggregator) Shutdown() {
	a.cancel()

	a.mu.Lock()
	a.closed = true
	for category, queue := range a.queues {
		for _, req := range queue {
			req.result <- outcome{err: ErrShuttingDown}
		}
		a.queues[category] = nil
		metrics.BatchQueueDepth.WithLabelValues(category).Set(0)
	}
	a.mu.Unlock()

	a.wg.Wait()
}
