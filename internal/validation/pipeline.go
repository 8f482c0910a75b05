// Package validation 对模型生成的响应进行打分和校验
// 校验永不返回错误,失败只是被记录的结果,如何处置由调用方决定
package validation

import "context"

// Result 校验结果
type Result struct {
	Passed   bool           `json:"passed"`
	Score    float64        `json:"score"` // 连续质量评分（0-1）
	Errors   []string       `json:"errors,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Input 校验输入的上下文信息
type Input struct {
	Response  string // 待校验的生成内容
	UsageType string // 调用类别
	MaxTokens int    // 请求的 Token 预算（截断启发式用）
}

// Validator 单项校验器
type Validator interface {
	// Name 校验器名称
	Name() string

	// Validate 校验响应并打分
	Validate(ctx context.Context, in *Input) *Result
}

// weightedValidator 带权重的校验器
type weightedValidator struct {
	validator Validator
	weight    float64
}

// Pipeline 校验管道
// 各校验器独立打分,整体 passed 为全部通过,整体评分按权重归一平均
type Pipeline struct {
	validators []weightedValidator
}

// NewPipeline 创建空管道
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Add 追加校验器,weight<=0 时按 1 处理,返回自身便于链式构造
func (p *Pipeline) Add(v Validator, weight float64) *Pipeline {
	if weight <= 0 {
		weight = 1
	}
	p.validators = append(p.validators, weightedValidator{validator: v, weight: weight})
	return p
}

// Validate 运行全部校验器并聚合
func (p *Pipeline) Validate(ctx context.Context, in *Input) *Result {
	overall := &Result{
		Passed:   true,
		Score:    1.0,
		Metadata: make(map[string]any),
	}
	if len(p.validators) == 0 {
		return overall
	}

	var weightedSum, totalWeight float64
	for _, wv := range p.validators {
		r := wv.validator.Validate(ctx, in)

		overall.Passed = overall.Passed && r.Passed
		weightedSum += r.Score * wv.weight
		totalWeight += wv.weight
		overall.Errors = append(overall.Errors, r.Errors...)
		overall.Warnings = append(overall.Warnings, r.Warnings...)
		for k, v := range r.Metadata {
			overall.Metadata[wv.validator.Name()+"."+k] = v
		}
	}

	overall.Score = weightedSum / totalWeight
	return overall
}

// pass 构造通过结果
func pass(score float64) *Result {
	return &Result{Passed: true, Score: score}
}

// fail 构造失败结果
func fail(score float64, msg string) *Result {
	return &Result{Passed: false, Score: score, Errors: []string{msg}}
}
