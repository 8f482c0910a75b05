// Package metrics 提供编排核心的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 缓存指标
var (
	// CacheHitsTotal 缓存命中总数（按层级）
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planflow_cache_hits_total",
			Help: "响应缓存命中总数",
		},
		[]string{"level"},
	)

	// CacheMissesTotal 缓存未命中总数
	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planflow_cache_misses_total",
			Help: "响应缓存未命中总数",
		},
	)

	// CacheWriteErrorsTotal 缓存写入失败总数（写入失败不影响调用方）
	CacheWriteErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planflow_cache_write_errors_total",
			Help: "响应缓存写入失败总数",
		},
	)
)

// 执行指标
var (
	// ExecutionsTotal 执行总数
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planflow_executions_total",
			Help: "AI 执行总数",
		},
		[]string{"usage_type", "status"},
	)

	// ExecutionDuration 执行耗时（秒）
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planflow_execution_duration_seconds",
			Help:    "AI 执行耗时分布",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"usage_type"},
	)

	// ExecutionRetriesTotal 重试总数
	ExecutionRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planflow_execution_retries_total",
			Help: "执行重试总数",
		},
		[]string{"model"},
	)

	// TokensTotal Token 消耗总数
	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planflow_tokens_total",
			Help: "Token 消耗总数",
		},
		[]string{"model", "direction"}, // direction: input / output
	)

	// CostTotal 花费总额（美元）
	CostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planflow_cost_usd_total",
			Help: "模型调用花费总额（美元）",
		},
		[]string{"model"},
	)
)

// 批量聚合指标
var (
	// BatchRequestsTotal 批量请求总数
	BatchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planflow_batch_requests_total",
			Help: "批量聚合请求总数",
		},
		[]string{"category", "result"}, // result: ok / error / overflow
	)

	// BatchQueueDepth 各类别当前队列深度
	BatchQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "planflow_batch_queue_depth",
			Help: "批量聚合各类别当前队列深度",
		},
		[]string{"category"},
	)

	// BatchSizeObserved 实际批次大小分布
	BatchSizeObserved = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planflow_batch_size",
			Help:    "实际执行批次大小分布",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		},
		[]string{"category"},
	)
)
