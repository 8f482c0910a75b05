package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog([]*ModelProfile{
		{
			Name: "cheap-fast", Provider: "openai",
			InputPricePerMTok: 0.1, OutputPricePerMTok: 0.4,
			QualityScore: 0.6, AvgLatencyMs: 300,
			MaxInputTokens: 128000, MaxOutputTokens: 16000,
			Available: true,
		},
		{
			Name: "mid", Provider: "openai",
			InputPricePerMTok: 2, OutputPricePerMTok: 8,
			QualityScore: 0.85, AvgLatencyMs: 900,
			MaxInputTokens: 128000, MaxOutputTokens: 16000,
			Available: true,
		},
		{
			Name: "premium", Provider: "anthropic",
			InputPricePerMTok: 5, OutputPricePerMTok: 20,
			QualityScore: 0.95, AvgLatencyMs: 2000,
			MaxInputTokens: 200000, MaxOutputTokens: 64000,
			Available: true,
		},
		{
			Name: "offline", Provider: "openai",
			InputPricePerMTok: 0.01, OutputPricePerMTok: 0.01,
			QualityScore: 0.9, AvgLatencyMs: 100,
			MaxInputTokens: 128000, MaxOutputTokens: 16000,
			Available: false,
		},
	})
	require.NoError(t, err)
	return c
}

func TestSelectorOptimizeTargets(t *testing.T) {
	s := NewSelector(testCatalog(t), DefaultWeights())

	t.Run("成功_成本优化选最便宜", func(t *testing.T) {
		name, err := s.Select(&SelectionRequest{
			EstimatedInputTokens:  1000,
			EstimatedOutputTokens: 1000,
			OptimizeFor:           OptimizeCost,
		})
		require.NoError(t, err)
		assert.Equal(t, "cheap-fast", name)
	})

	t.Run("成功_质量优化选最高分", func(t *testing.T) {
		name, err := s.Select(&SelectionRequest{
			EstimatedInputTokens:  1000,
			EstimatedOutputTokens: 1000,
			OptimizeFor:           OptimizeQuality,
		})
		require.NoError(t, err)
		assert.Equal(t, "premium", name)
	})

	t.Run("成功_延迟优化选最快", func(t *testing.T) {
		name, err := s.Select(&SelectionRequest{
			EstimatedInputTokens:  1000,
			EstimatedOutputTokens: 1000,
			OptimizeFor:           OptimizeLatency,
		})
		require.NoError(t, err)
		assert.Equal(t, "cheap-fast", name)
	})

	t.Run("成功_留空默认balanced", func(t *testing.T) {
		name, err := s.Select(&SelectionRequest{
			EstimatedInputTokens:  1000,
			EstimatedOutputTokens: 1000,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, name)
	})

	t.Run("失败_不支持的优化目标", func(t *testing.T) {
		_, err := s.Select(&SelectionRequest{OptimizeFor: "speed"})
		assert.Error(t, err)
	})
}

func TestSelectorConstraints(t *testing.T) {
	s := NewSelector(testCatalog(t), DefaultWeights())

	t.Run("成功_最大花费约束过滤高价模型", func(t *testing.T) {
		// 1000/1000 tokens: cheap-fast=0.0005, mid=0.01, premium=0.025
		name, err := s.Select(&SelectionRequest{
			EstimatedInputTokens:  1000,
			EstimatedOutputTokens: 1000,
			MaxCost:               floatPtr(0.02),
			OptimizeFor:           OptimizeQuality,
		})
		require.NoError(t, err)
		assert.Equal(t, "mid", name)
	})

	t.Run("成功_最低质量约束", func(t *testing.T) {
		name, err := s.Select(&SelectionRequest{
			EstimatedInputTokens:  1000,
			EstimatedOutputTokens: 1000,
			MinQuality:            floatPtr(0.9),
			OptimizeFor:           OptimizeCost,
		})
		require.NoError(t, err)
		assert.Equal(t, "premium", name)
	})

	t.Run("成功_最大延迟约束", func(t *testing.T) {
		name, err := s.Select(&SelectionRequest{
			EstimatedInputTokens:  1000,
			EstimatedOutputTokens: 1000,
			MaxLatencyMs:          intPtr(1000),
			OptimizeFor:           OptimizeQuality,
		})
		require.NoError(t, err)
		assert.Equal(t, "mid", name)
	})

	t.Run("成功_超出上下文窗口的模型被过滤", func(t *testing.T) {
		name, err := s.Select(&SelectionRequest{
			EstimatedInputTokens:  150000,
			EstimatedOutputTokens: 1000,
			OptimizeFor:           OptimizeCost,
		})
		require.NoError(t, err)
		assert.Equal(t, "premium", name)
	})

	t.Run("成功_排除指定模型", func(t *testing.T) {
		name, err := s.Select(&SelectionRequest{
			EstimatedInputTokens:  1000,
			EstimatedOutputTokens: 1000,
			OptimizeFor:           OptimizeCost,
			ExcludeModels:         []string{"cheap-fast"},
		})
		require.NoError(t, err)
		assert.Equal(t, "mid", name)
	})

	t.Run("成功_不可用模型不参与候选", func(t *testing.T) {
		// offline 各项指标都最优,但 Available=false
		name, err := s.Select(&SelectionRequest{
			EstimatedInputTokens:  1000,
			EstimatedOutputTokens: 1000,
			OptimizeFor:           OptimizeLatency,
		})
		require.NoError(t, err)
		assert.NotEqual(t, "offline", name)
	})

	t.Run("失败_约束无解返回哨兵错误", func(t *testing.T) {
		_, err := s.Select(&SelectionRequest{
			EstimatedInputTokens:  1000,
			EstimatedOutputTokens: 1000,
			MaxCost:               floatPtr(0),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConstraintUnsatisfiable))
	})
}

func TestSelectorBalanced(t *testing.T) {
	t.Run("成功_权重偏向质量时选高质量模型", func(t *testing.T) {
		s := NewSelector(testCatalog(t), Weights{Cost: 0.05, Quality: 0.9, Latency: 0.05})
		name, err := s.Select(&SelectionRequest{
			EstimatedInputTokens:  1000,
			EstimatedOutputTokens: 1000,
			OptimizeFor:           OptimizeBalanced,
		})
		require.NoError(t, err)
		assert.Equal(t, "premium", name)
	})

	t.Run("成功_权重偏向成本时选便宜模型", func(t *testing.T) {
		s := NewSelector(testCatalog(t), Weights{Cost: 0.9, Quality: 0.05, Latency: 0.05})
		name, err := s.Select(&SelectionRequest{
			EstimatedInputTokens:  1000,
			EstimatedOutputTokens: 1000,
			OptimizeFor:           OptimizeBalanced,
		})
		require.NoError(t, err)
		assert.Equal(t, "cheap-fast", name)
	})

	t.Run("成功_单一候选直接胜出", func(t *testing.T) {
		c, err := NewCatalog([]*ModelProfile{
			{
				Name: "only", Provider: "openai",
				InputPricePerMTok: 1, OutputPricePerMTok: 2,
				QualityScore: 0.8, AvgLatencyMs: 500,
				MaxInputTokens: 100000, MaxOutputTokens: 8000,
				Available: true,
			},
		})
		require.NoError(t, err)

		s := NewSelector(c, DefaultWeights())
		name, err := s.Select(&SelectionRequest{
			EstimatedInputTokens:  100,
			EstimatedOutputTokens: 100,
			OptimizeFor:           OptimizeBalanced,
		})
		require.NoError(t, err)
		assert.Equal(t, "only", name)
	})

	t.Run("成功_非法权重回退默认值", func(t *testing.T) {
		s := NewSelector(testCatalog(t), Weights{})
		name, err := s.Select(&SelectionRequest{
			EstimatedInputTokens:  1000,
			EstimatedOutputTokens: 1000,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, name)
	})
}
