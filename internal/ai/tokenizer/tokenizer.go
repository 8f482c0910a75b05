// Package tokenizer 基于 tiktoken 估算文本的 Token 数
package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding 未知模型的兜底编码
const fallbackEncoding = "cl100k_base"

// Estimator Token 估算器
// 按模型缓存编码器,tiktoken 初始化有一次性开销
type Estimator struct {
	mu       sync.RWMutex
	encoders map[string]*tiktoken.Tiktoken
}

// NewEstimator 创建估算器
func NewEstimator() *Estimator {
	return &Estimator{
		encoders: make(map[string]*tiktoken.Tiktoken),
	}
}

// Estimate 估算文本的 Token 数
// 编码器不可用时退回 chars/4 启发式,估算永不失败
func (e *Estimator) Estimate(model, text string) int {
	if text == "" {
		return 0
	}

	enc := e.encoderFor(model)
	if enc == nil {
		return len(text)/4 + 1
	}
	return len(enc.Encode(text, nil, nil))
}

// encoderFor 获取模型对应的编码器,失败时返回 nil
func (e *Estimator) encoderFor(model string) *tiktoken.Tiktoken {
	e.mu.RLock()
	enc, ok := e.encoders[model]
	e.mu.RUnlock()
	if ok {
		return enc
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if enc, ok := e.encoders[model]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			enc = nil
		}
	}
	e.encoders[model] = enc
	return enc
}
