// Package audit 定义执行审计记录与落地接口
// 持久化由外部协作方负责,本核心只负责生成并交付结构化记录
package audit

import (
	"context"
	"time"
)

// Record 单次执行的审计记录
type Record struct {
	ExecutionID      string    `json:"execution_id"`
	UsageType        string    `json:"usage_type"`
	Model            string    `json:"model"`
	Status           string    `json:"status"`
	Attempts         int       `json:"attempts"`
	CacheHit         bool      `json:"cache_hit"`
	CacheLevel       string    `json:"cache_level,omitempty"`
	InputTokens      int       `json:"input_tokens"`
	OutputTokens     int       `json:"output_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Cost             float64   `json:"cost"`
	QualityScore     *float64  `json:"quality_score,omitempty"`
	ValidationPassed bool      `json:"validation_passed"`
	DurationMs       int64     `json:"duration_ms"`
	ProjectID        string    `json:"project_id,omitempty"`
	InterviewID      string    `json:"interview_id,omitempty"`
	TaskID           string    `json:"task_id,omitempty"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Sink 审计落地接口
// 写入失败不得影响调用方的执行结果,由执行器记日志后吞掉
type Sink interface {
	Write(ctx context.Context, record *Record) error
}
