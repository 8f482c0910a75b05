package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend/internal/aicache"
	"backend/internal/audit"
	"backend/internal/catalog"
	"backend/internal/logger"
	"backend/internal/metrics"
	"backend/internal/validation"
	"backend/pkg/aiinterface"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ClientResolver 按模型名称解析对应提供商的客户端
type ClientResolver interface {
	ClientFor(model string) (aiinterface.ModelClient, error)
}

// TokenEstimator 在提供商未返回用量时估算 Token 数
type TokenEstimator interface {
	Estimate(model, text string) int
}

// Config 执行器配置
// Cache 为 nil 时缓存整体禁用（能力注入,不做运行时探测）
type Config struct {
	Cache      *aicache.Service
	Validators *validation.Registry
	Sink       audit.Sink
	Estimator  TokenEstimator
	Strategies map[string]*Strategy // 留空使用内置预设
}

// Executor AI 执行编排器
// 每次逻辑调用独占一个 ExecutionContext,执行器自身无共享可变状态,可并发使用
type Executor struct {
	resolver   ClientResolver
	catalog    *catalog.Catalog
	selector   *catalog.Selector
	cache      *aicache.Service
	validators *validation.Registry
	sink       audit.Sink
	estimator  TokenEstimator
	strategies map[string]*Strategy
	sleep      func(ctx context.Context, d time.Duration) error
	tracer     trace.Tracer
}

// New 创建执行器
func New(resolver ClientResolver, cat *catalog.Catalog, sel *catalog.Selector, cfg *Config) *Executor {
	if cfg == nil {
		cfg = &Config{}
	}
	validators := cfg.Validators
	if validators == nil {
		validators = validation.NewRegistry()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = audit.NewZapSink()
	}
	strategies := cfg.Strategies
	if len(strategies) == 0 {
		strategies = PresetStrategies()
	}

	return &Executor{
		resolver:   resolver,
		catalog:    cat,
		selector:   sel,
		cache:      cfg.Cache,
		validators: validators,
		sink:       sink,
		estimator:  cfg.Estimator,
		strategies: strategies,
		sleep:      sleepContext,
		tracer:     otel.Tracer("backend/internal/executor"),
	}
}

// Execute 执行完整管道
// 调用方最终得到一个成功的上下文（可能来自缓存或后备模型）,
// 或一个类型明确的终止错误,绝不处于部分完成的模糊状态
func (e *Executor) Execute(ctx context.Context, ec *ExecutionContext) (*ExecutionContext, error) {
	if err := ec.Validate(); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "executor.Execute", trace.WithAttributes(
		attribute.String("execution.id", ec.ID),
		attribute.String("execution.usage_type", ec.UsageType),
		attribute.String("execution.strategy", ec.Strategy),
	))
	defer span.End()

	// 1. 前置钩子（尽力而为）
	e.runHooks(ctx, ec, ec.PreHooks, "pre")

	// 缓存键在模型选择前定格,留空模型的请求查写两侧才能对上同一指纹
	cacheReq := cacheRequest(ec)

	// 2. 缓存查询,命中则不调用任何模型,花费为零
	if ec.EnableCache && e.cache != nil {
		if entry, ok := e.cache.Get(ctx, cacheReq); ok {
			ec.MarkCached(entry.Response, string(entry.Level))
			ec.Model = entry.Model
			ec.InputTokens = entry.InputTokens
			ec.OutputTokens = entry.OutputTokens
			ec.TotalTokens = entry.InputTokens + entry.OutputTokens
			ec.QualityScore = entry.QualityScore
			ec.ValidationPassed = entry.ValidationPassed

			e.runHooks(ctx, ec, ec.PostHooks, "post")
			e.finish(ctx, ec, span)
			return ec, nil
		}
	}

	// 3. 模型选择,约束无解立即向调用方暴露,重试无意义
	if err := e.ensureModels(ec); err != nil {
		ec.MarkFailed(err)
		e.runHooks(ctx, ec, ec.PostHooks, "post")
		e.finish(ctx, ec, span)
		return ec, err
	}

	// 4. 重试循环
	ec.MarkStarted()
	lastErr := e.retryLoop(ctx, ec)

	if ec.IsFailed() {
		execErr := &ExhaustedError{Attempts: ec.Attempt, Model: ec.Model, Err: lastErr}
		ec.Err = execErr
		span.SetStatus(codes.Error, execErr.Error())

		e.runHooks(ctx, ec, ec.PostHooks, "post")
		e.finish(ctx, ec, span)
		return ec, execErr
	}

	// 5. 校验,结果只记录不抛出
	result := e.validators.ForUsageType(ec.UsageType).Validate(ctx, &validation.Input{
		Response:  ec.Response,
		UsageType: ec.UsageType,
		MaxTokens: ec.MaxTokens,
	})
	ec.ValidationPassed = result.Passed
	score := result.Score
	ec.QualityScore = &score
	if !result.Passed {
		logger.WithContext(ctx).Warn("响应校验未通过",
			zap.String("execution_id", ec.ID),
			zap.String("usage_type", ec.UsageType),
			zap.Strings("errors", result.Errors))
	}

	// 6. 后置钩子
	e.runHooks(ctx, ec, ec.PostHooks, "post")

	// 7. 缓存回写（尽力而为,失败不影响结果）
	if ec.EnableCache && e.cache != nil {
		e.cache.Set(ctx, cacheReq, &aicache.Entry{
			Response:         ec.Response,
			Model:            ec.Model,
			InputTokens:      ec.InputTokens,
			OutputTokens:     ec.OutputTokens,
			Cost:             ec.Cost,
			QualityScore:     ec.QualityScore,
			ValidationPassed: ec.ValidationPassed,
		})
	}

	e.finish(ctx, ec, span)
	return ec, nil
}

// retryLoop 带退避和后备模型的重试循环
// 单个上下文内的尝试严格串行,返回最后一次底层错误
func (e *Executor) retryLoop(ctx context.Context, ec *ExecutionContext) error {
	var lastErr error
	for {
		// 第二次尝试起插入指数退避: 1,2,4,8,16,30,30,... 秒
		if ec.Attempt > 1 {
			metrics.ExecutionRetriesTotal.WithLabelValues(ec.Model).Inc()
			if err := e.sleep(ctx, backoffDelay(ec.Attempt)); err != nil {
				ec.MarkFailed(err)
				return err
			}
		}

		// 最后一次尝试切换到首个后备模型
		if ec.Attempt == ec.MaxAttempts && ec.EnableFallback && len(ec.FallbackModels) > 0 {
			if ec.Model != ec.FallbackModels[0] {
				logger.WithContext(ctx).Info("最后一次尝试,切换后备模型",
					zap.String("execution_id", ec.ID),
					zap.String("from", ec.Model),
					zap.String("to", ec.FallbackModels[0]))
				ec.Model = ec.FallbackModels[0]
			}
		}

		res, err := e.invoke(ctx, ec)
		if err == nil {
			inputTokens, outputTokens := e.resolveUsage(ec, res)
			ec.MarkSuccess(res.Text, inputTokens, outputTokens, e.computeCost(ec.Model, inputTokens, outputTokens))
			return nil
		}
		lastErr = err

		// 认证、参数类错误重试无意义,立即终止
		var clientErr *aiinterface.ClientError
		if errors.As(err, &clientErr) && !clientErr.IsRetryable() {
			ec.MarkFailed(err)
			return lastErr
		}

		if !ec.CanRetry() {
			ec.MarkFailed(err)
			return lastErr
		}
		ec.IncrementAttempt()
	}
}

// invoke 解析客户端并执行单次模型调用
func (e *Executor) invoke(ctx context.Context, ec *ExecutionContext) (*aiinterface.InvocationResult, error) {
	client, err := e.resolver.ClientFor(ec.Model)
	if err != nil {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeInvalidParams,
			Message: fmt.Sprintf("模型 %s 没有可用的客户端", ec.Model),
			Err:     err,
		}
	}

	return client.Invoke(ctx, &aiinterface.InvocationRequest{
		Model:        ec.Model,
		Prompt:       ec.Prompt,
		SystemPrompt: ec.SystemPrompt,
		MaxTokens:    ec.MaxTokens,
		Temperature:  ec.Temperature,
	})
}

// ensureModels 补全主模型和后备模型
func (e *Executor) ensureModels(ec *ExecutionContext) error {
	strat := e.strategies[ec.Strategy]

	optimize := catalog.OptimizeBalanced
	fallbackOptimize := catalog.OptimizeCost
	if strat != nil {
		if strat.OptimizeFor != "" {
			optimize = strat.OptimizeFor
		}
		if strat.FallbackOptimize != "" {
			fallbackOptimize = strat.FallbackOptimize
		}
	}

	inputTokens := e.estimateInput(ec)

	if ec.Model == "" {
		name, err := e.selector.Select(&catalog.SelectionRequest{
			EstimatedInputTokens:  inputTokens,
			EstimatedOutputTokens: ec.MaxTokens,
			OptimizeFor:           optimize,
		})
		if err != nil {
			return err
		}
		ec.Model = name
	}

	// 后备模型缺省时由选择器挑选（排除主模型）,选不出则静默放弃后备能力
	if ec.EnableFallback && len(ec.FallbackModels) == 0 {
		name, err := e.selector.Select(&catalog.SelectionRequest{
			EstimatedInputTokens:  inputTokens,
			EstimatedOutputTokens: ec.MaxTokens,
			OptimizeFor:           fallbackOptimize,
			ExcludeModels:         []string{ec.Model},
		})
		if err == nil {
			ec.FallbackModels = []string{name}
		}
	}

	return nil
}

// resolveUsage 确定 Token 用量,提供商未返回时退回估算
func (e *Executor) resolveUsage(ec *ExecutionContext, res *aiinterface.InvocationResult) (int, int) {
	inputTokens := res.InputTokens
	outputTokens := res.OutputTokens
	if inputTokens == 0 {
		inputTokens = e.estimateInput(ec)
	}
	if outputTokens == 0 {
		outputTokens = e.estimateText(ec.Model, res.Text)
	}
	return inputTokens, outputTokens
}

// estimateInput 估算输入 Token 数
func (e *Executor) estimateInput(ec *ExecutionContext) int {
	text := ec.Prompt
	if ec.SystemPrompt != "" {
		text = ec.SystemPrompt + "\n" + text
	}
	return e.estimateText(ec.Model, text)
}

// estimateText 估算文本 Token 数,无估算器时用 chars/4 启发式
func (e *Executor) estimateText(model, text string) int {
	if text == "" {
		return 0
	}
	if e.estimator != nil {
		return e.estimator.Estimate(model, text)
	}
	return len(text)/4 + 1
}

// computeCost 按目录价格计算花费,目录外模型按零计
func (e *Executor) computeCost(model string, inputTokens, outputTokens int) float64 {
	profile := e.catalog.Get(model)
	if profile == nil {
		return 0
	}
	return profile.EstimateCost(inputTokens, outputTokens)
}

// runHooks 依次运行钩子,单个钩子的错误或 panic 只记日志
func (e *Executor) runHooks(ctx context.Context, ec *ExecutionContext, hooks []Hook, phase string) {
	for i, hook := range hooks {
		if err := runHookSafe(ctx, ec, hook); err != nil {
			logger.WithContext(ctx).Warn("执行钩子失败,已跳过",
				zap.String("execution_id", ec.ID),
				zap.String("phase", phase),
				zap.Int("index", i),
				zap.Error(err))
		}
	}
}

// runHookSafe 运行单个钩子并吸收 panic
func runHookSafe(ctx context.Context, ec *ExecutionContext, hook Hook) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panic: %v", r)
		}
	}()
	return hook(ctx, ec)
}

// finish 审计、指标与日志收尾
func (e *Executor) finish(ctx context.Context, ec *ExecutionContext, span trace.Span) {
	record := &audit.Record{
		ExecutionID:      ec.ID,
		UsageType:        ec.UsageType,
		Model:            ec.Model,
		Status:           string(ec.Status),
		Attempts:         ec.Attempt,
		CacheHit:         ec.CacheHit,
		CacheLevel:       ec.CacheLevel,
		InputTokens:      ec.InputTokens,
		OutputTokens:     ec.OutputTokens,
		TotalTokens:      ec.TotalTokens,
		Cost:             ec.Cost,
		QualityScore:     ec.QualityScore,
		ValidationPassed: ec.ValidationPassed,
		DurationMs:       ec.Duration().Milliseconds(),
		ProjectID:        ec.ProjectID,
		InterviewID:      ec.InterviewID,
		TaskID:           ec.TaskID,
		CreatedAt:        time.Now(),
	}
	if ec.Err != nil {
		record.Error = ec.Err.Error()
	}
	if err := e.sink.Write(ctx, record); err != nil {
		logger.WithContext(ctx).Warn("审计写入失败",
			zap.String("execution_id", ec.ID), zap.Error(err))
	}

	metrics.ExecutionsTotal.WithLabelValues(ec.UsageType, string(ec.Status)).Inc()
	metrics.ExecutionDuration.WithLabelValues(ec.UsageType).Observe(ec.Duration().Seconds())
	if ec.IsSuccess() {
		metrics.TokensTotal.WithLabelValues(ec.Model, "input").Add(float64(ec.InputTokens))
		metrics.TokensTotal.WithLabelValues(ec.Model, "output").Add(float64(ec.OutputTokens))
		metrics.CostTotal.WithLabelValues(ec.Model).Add(ec.Cost)
	}

	span.SetAttributes(
		attribute.String("execution.status", string(ec.Status)),
		attribute.Int("execution.attempts", ec.Attempt),
		attribute.Bool("execution.cache_hit", ec.CacheHit),
		attribute.Float64("execution.cost", ec.Cost),
	)
}

// cacheRequest 从上下文构造缓存查询请求
func cacheRequest(ec *ExecutionContext) *aicache.Request {
	return &aicache.Request{
		Prompt:       ec.Prompt,
		SystemPrompt: ec.SystemPrompt,
		UsageType:    ec.UsageType,
		Model:        ec.Model,
		Temperature:  ec.Temperature,
	}
}

// backoffDelay 第 attempt 次尝试前的退避时长
// 序列为 1,2,4,8,16,30,30,... 秒,上限 30 秒
func backoffDelay(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	shift := attempt - 2
	if shift > 5 {
		return 30 * time.Second
	}
	delay := time.Duration(1<<uint(shift)) * time.Second
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}

// sleepContext 可被上下文取消的休眠
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
