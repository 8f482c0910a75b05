// Package executor 实现 AI 调用的执行编排
// 完整管道: 前置钩子 → 缓存查询 → 重试与后备调用 → 校验 → 后置钩子 → 缓存回写
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status 执行状态
type Status string

const (
	StatusPending   Status = "pending"   // 已创建,尚未执行
	StatusExecuting Status = "executing" // 执行中
	StatusSuccess   Status = "success"   // 模型调用成功
	StatusFailed    Status = "failed"    // 按策略耗尽后失败
	StatusCached    Status = "cached"    // 命中缓存,未调用模型
)

// Hook 执行前后钩子
// 钩子失败只记日志,绝不中断业务执行
type Hook func(ctx context.Context, ec *ExecutionContext) error

// ExecutionContext 单次逻辑调用的执行上下文
// 由策略创建,仅被执行器的状态迁移方法修改,不跨并发单元共享
type ExecutionContext struct {
	ID string `json:"id"`

	// 输入
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	UsageType    string  `json:"usage_type"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
	Model        string  `json:"model,omitempty"`

	// 关联标识
	ProjectID   string `json:"project_id,omitempty"`
	InterviewID string `json:"interview_id,omitempty"`
	TaskID      string `json:"task_id,omitempty"`

	// 重试状态
	Attempt     int `json:"attempt"`
	MaxAttempts int `json:"max_attempts"`

	// 结果
	Status       Status  `json:"status"`
	Response     string  `json:"response,omitempty"`
	Err          error   `json:"-"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost"`

	// 缓存与校验
	CacheHit         bool     `json:"cache_hit"`
	CacheLevel       string   `json:"cache_level,omitempty"`
	QualityScore     *float64 `json:"quality_score,omitempty"`
	ValidationPassed bool     `json:"validation_passed"`

	// 计时
	CreatedAt time.Time  `json:"created_at"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// 策略配置
	Strategy       string   `json:"strategy"`
	EnableCache    bool     `json:"enable_cache"`
	EnableRetry    bool     `json:"enable_retry"`
	EnableFallback bool     `json:"enable_fallback"`
	FallbackModels []string `json:"fallback_models,omitempty"`

	PreHooks  []Hook `json:"-"`
	PostHooks []Hook `json:"-"`
}

// newExecutionContext 创建处于 pending 状态的上下文
func newExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		ID:        uuid.NewString(),
		Attempt:   1,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}

// Validate 校验不变量
func (ec *ExecutionContext) Validate() error {
	if ec.Prompt == "" {
		return fmt.Errorf("prompt 不能为空")
	}
	if ec.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts 必须大于等于 1, 当前为 %d", ec.MaxAttempts)
	}
	if ec.Temperature < 0 || ec.Temperature > 2 {
		return fmt.Errorf("temperature 必须在 [0,2] 区间, 当前为 %f", ec.Temperature)
	}
	return nil
}

// MarkStarted 进入执行状态
func (ec *ExecutionContext) MarkStarted() {
	now := time.Now()
	ec.Status = StatusExecuting
	ec.StartTime = &now
}

// MarkSuccess 标记执行成功并记录用量
func (ec *ExecutionContext) MarkSuccess(response string, inputTokens, outputTokens int, cost float64) {
	now := time.Now()
	ec.Status = StatusSuccess
	ec.Response = response
	ec.InputTokens = inputTokens
	ec.OutputTokens = outputTokens
	ec.TotalTokens = inputTokens + outputTokens
	ec.Cost = cost
	ec.EndTime = &now
}

// MarkFailed 标记执行失败
func (ec *ExecutionContext) MarkFailed(err error) {
	now := time.Now()
	ec.Status = StatusFailed
	ec.Err = err
	ec.EndTime = &now
}

// MarkCached 标记缓存命中,花费为零,未调用任何模型
func (ec *ExecutionContext) MarkCached(response, level string) {
	now := time.Now()
	ec.Status = StatusCached
	ec.Response = response
	ec.CacheHit = true
	ec.CacheLevel = level
	ec.Cost = 0
	ec.EndTime = &now
}

// IncrementAttempt 进入下一次尝试
func (ec *ExecutionContext) IncrementAttempt() {
	ec.Attempt++
}

// CanRetry 是否还能重试
func (ec *ExecutionContext) CanRetry() bool {
	return ec.EnableRetry && ec.Attempt < ec.MaxAttempts
}

// IsSuccess 是否成功
func (ec *ExecutionContext) IsSuccess() bool { return ec.Status == StatusSuccess }

// IsFailed 是否失败
func (ec *ExecutionContext) IsFailed() bool { return ec.Status == StatusFailed }

// IsCached 是否命中缓存
func (ec *ExecutionContext) IsCached() bool { return ec.Status == StatusCached }

// Duration 执行耗时,未结束时返回 0
// 缓存命中没有 StartTime,从创建时刻起算
func (ec *ExecutionContext) Duration() time.Duration {
	if ec.EndTime == nil {
		return 0
	}
	start := ec.CreatedAt
	if ec.StartTime != nil {
		start = *ec.StartTime
	}
	return ec.EndTime.Sub(start)
}
