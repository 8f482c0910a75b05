package audit

import (
	"context"

	"backend/internal/logger"

	"go.uber.org/zap"
)

// ZapSink 把审计记录以结构化日志形式输出
// 适用于开发环境和日志采集管道兜底
type ZapSink struct{}

// NewZapSink 创建日志审计落地
func NewZapSink() *ZapSink {
	return &ZapSink{}
}

// Write 输出审计记录
func (s *ZapSink) Write(ctx context.Context, record *Record) error {
	fields := []zap.Field{
		zap.String("execution_id", record.ExecutionID),
		zap.String("usage_type", record.UsageType),
		zap.String("model", record.Model),
		zap.String("status", record.Status),
		zap.Int("attempts", record.Attempts),
		zap.Bool("cache_hit", record.CacheHit),
		zap.Int("input_tokens", record.InputTokens),
		zap.Int("output_tokens", record.OutputTokens),
		zap.Float64("cost", record.Cost),
		zap.Bool("validation_passed", record.ValidationPassed),
		zap.Int64("duration_ms", record.DurationMs),
	}
	if record.CacheLevel != "" {
		fields = append(fields, zap.String("cache_level", record.CacheLevel))
	}
	if record.QualityScore != nil {
		fields = append(fields, zap.Float64("quality_score", *record.QualityScore))
	}
	if record.ProjectID != "" {
		fields = append(fields, zap.String("project_id", record.ProjectID))
	}
	if record.Error != "" {
		fields = append(fields, zap.String("error", record.Error))
	}

	logger.WithContext(ctx).Info("执行审计", fields...)
	return nil
}

// NopSink 丢弃所有审计记录,用于测试
type NopSink struct{}

// Write 丢弃记录
func (s *NopSink) Write(ctx context.Context, record *Record) error {
	return nil
}
