package executor

import (
	"fmt"

	"backend/internal/catalog"
)

// 策略名称
const (
	StrategyDefault = "default"
	StrategyFast    = "fast"
	StrategyQuality = "quality"
	StrategyCost    = "cost"
)

// Strategy 执行策略预设
// 为未显式配置的上下文填充默认值
type Strategy struct {
	Name             string
	OptimizeFor      string  // 主模型的选择目标
	FallbackOptimize string  // 后备模型的选择目标
	Temperature      float64
	MaxTokens        int
	MaxAttempts      int
	EnableCache      bool
	EnableRetry      bool
	EnableFallback   bool
}

// PresetStrategies 内置策略预设
func PresetStrategies() map[string]*Strategy {
	return map[string]*Strategy{
		StrategyDefault: {
			Name:             StrategyDefault,
			OptimizeFor:      catalog.OptimizeBalanced,
			FallbackOptimize: catalog.OptimizeCost, // 降级到更便宜的模型
			Temperature:      0.7,
			MaxTokens:        4000,
			MaxAttempts:      3,
			EnableCache:      true,
			EnableRetry:      true,
			EnableFallback:   true,
		},
		StrategyFast: {
			Name:        StrategyFast,
			OptimizeFor: catalog.OptimizeLatency,
			Temperature: 0.8,
			MaxTokens:   2000,
			MaxAttempts: 1,
			EnableCache: true,
			EnableRetry: true,
		},
		StrategyQuality: {
			Name:             StrategyQuality,
			OptimizeFor:      catalog.OptimizeQuality,
			FallbackOptimize: catalog.OptimizeQuality, // 后备仍保持高质量
			Temperature:      0.3,
			MaxTokens:        8000,
			MaxAttempts:      3,
			EnableRetry:      true,
			EnableFallback:   true,
		},
		StrategyCost: {
			Name:        StrategyCost,
			OptimizeFor: catalog.OptimizeCost,
			Temperature: 0.7,
			MaxTokens:   2000,
			MaxAttempts: 2,
			EnableCache: true,
			EnableRetry: true,
		},
	}
}

// Request 一次逻辑调用的输入
// 零值字段由策略预设填充
type Request struct {
	Prompt       string
	SystemPrompt string
	UsageType    string
	Model        string   // 指定模型,留空由选择器决定
	MaxTokens    int      // 0 使用策略默认值
	Temperature  *float64 // nil 使用策略默认值

	ProjectID   string
	InterviewID string
	TaskID      string

	FallbackModels []string
	PreHooks       []Hook
	PostHooks      []Hook
}

// NewContext 按策略构造执行上下文
func (e *Executor) NewContext(strategyName string, req *Request) (*ExecutionContext, error) {
	if strategyName == "" {
		strategyName = StrategyDefault
	}
	strat, ok := e.strategies[strategyName]
	if !ok {
		return nil, fmt.Errorf("未知的执行策略: %s", strategyName)
	}

	ec := newExecutionContext()
	ec.Prompt = req.Prompt
	ec.SystemPrompt = req.SystemPrompt
	ec.UsageType = req.UsageType
	ec.Model = req.Model
	ec.ProjectID = req.ProjectID
	ec.InterviewID = req.InterviewID
	ec.TaskID = req.TaskID
	ec.FallbackModels = req.FallbackModels
	ec.PreHooks = req.PreHooks
	ec.PostHooks = req.PostHooks

	ec.Strategy = strat.Name
	ec.MaxTokens = strat.MaxTokens
	if req.MaxTokens > 0 {
		ec.MaxTokens = req.MaxTokens
	}
	ec.Temperature = strat.Temperature
	if req.Temperature != nil {
		ec.Temperature = *req.Temperature
	}
	ec.MaxAttempts = strat.MaxAttempts
	ec.EnableCache = strat.EnableCache
	ec.EnableRetry = strat.EnableRetry
	ec.EnableFallback = strat.EnableFallback

	if err := ec.Validate(); err != nil {
		return nil, err
	}
	return ec, nil
}
