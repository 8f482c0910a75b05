package catalog

import (
	"errors"
	"fmt"
)

// 优化目标
const (
	OptimizeCost     = "cost"     // 最小化预估花费
	OptimizeQuality  = "quality"  // 最大化质量评分
	OptimizeLatency  = "latency"  // 最小化平均延迟
	OptimizeBalanced = "balanced" // 三者加权（默认）
)

// ErrConstraintUnsatisfiable 没有任何模型满足全部约束
// 由调用方决定是否放宽约束,重试无意义
var ErrConstraintUnsatisfiable = errors.New("no model satisfies constraints")

// SelectionRequest 模型选择请求
// 指针字段为 nil 表示不施加该约束
type SelectionRequest struct {
	EstimatedInputTokens  int      // 预估输入 Token 数
	EstimatedOutputTokens int      // 预估输出 Token 数
	MaxCost               *float64 // 最大预估花费（美元）
	MinQuality            *float64 // 最低质量评分
	MaxLatencyMs          *int     // 最大平均延迟（毫秒）
	OptimizeFor           string   // 优化目标,留空为 balanced
	ExcludeModels         []string // 排除的模型
}

// Weights balanced 优化目标的加权系数
type Weights struct {
	Cost    float64
	Quality float64
	Latency float64
}

// DefaultWeights 默认加权系数
func DefaultWeights() Weights {
	return Weights{Cost: 0.33, Quality: 0.34, Latency: 0.33}
}

// Selector 模型选择器
// 对目录和请求的纯函数,无隐藏状态
type Selector struct {
	catalog *Catalog
	weights Weights
}

// NewSelector 创建选择器
func NewSelector(c *Catalog, weights Weights) *Selector {
	if weights.Cost+weights.Quality+weights.Latency <= 0 {
		weights = DefaultWeights()
	}
	return &Selector{catalog: c, weights: weights}
}

// candidate 打分用的候选模型
type candidate struct {
	profile *ModelProfile
	cost    float64
}

// Select 在目录中选择唯一一个满足约束的模型名称
func (s *Selector) Select(req *SelectionRequest) (string, error) {
	excluded := make(map[string]struct{}, len(req.ExcludeModels))
	for _, name := range req.ExcludeModels {
		excluded[name] = struct{}{}
	}

	// 1. 过滤候选集
	var candidates []candidate
	for _, p := range s.catalog.All() {
		if !p.Available {
			continue
		}
		if _, skip := excluded[p.Name]; skip {
			continue
		}

		cost := p.EstimateCost(req.EstimatedInputTokens, req.EstimatedOutputTokens)

		if req.MaxCost != nil && cost > *req.MaxCost {
			continue
		}
		if req.MinQuality != nil && p.QualityScore < *req.MinQuality {
			continue
		}
		if req.MaxLatencyMs != nil && p.AvgLatencyMs > *req.MaxLatencyMs {
			continue
		}
		if req.EstimatedInputTokens > p.MaxInputTokens {
			continue
		}
		if req.EstimatedOutputTokens > p.MaxOutputTokens {
			continue
		}

		candidates = append(candidates, candidate{profile: p, cost: cost})
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: 候选模型 %d 个全部被约束过滤", ErrConstraintUnsatisfiable, s.catalog.Len())
	}

	// 2. 按优化目标排名
	optimize := req.OptimizeFor
	if optimize == "" {
		optimize = OptimizeBalanced
	}

	var best candidate
	switch optimize {
	case OptimizeCost:
		best = candidates[0]
		for _, c := range candidates[1:] {
			if c.cost < best.cost {
				best = c
			}
		}

	case OptimizeQuality:
		best = candidates[0]
		for _, c := range candidates[1:] {
			if c.profile.QualityScore > best.profile.QualityScore {
				best = c
			}
		}

	case OptimizeLatency:
		best = candidates[0]
		for _, c := range candidates[1:] {
			if c.profile.AvgLatencyMs < best.profile.AvgLatencyMs {
				best = c
			}
		}

	case OptimizeBalanced:
		best = s.pickBalanced(candidates)

	default:
		return "", fmt.Errorf("不支持的优化目标: %s", optimize)
	}

	return best.profile.Name, nil
}

// pickBalanced 按加权归一化评分选择
// 花费与延迟取反向归一（越小越好映射到 1.0）,某指标 min==max 时全体取 0.5
func (s *Selector) pickBalanced(candidates []candidate) candidate {
	minCost, maxCost := candidates[0].cost, candidates[0].cost
	minQ, maxQ := candidates[0].profile.QualityScore, candidates[0].profile.QualityScore
	minLat, maxLat := candidates[0].profile.AvgLatencyMs, candidates[0].profile.AvgLatencyMs

	for _, c := range candidates[1:] {
		if c.cost < minCost {
			minCost = c.cost
		}
		if c.cost > maxCost {
			maxCost = c.cost
		}
		if c.profile.QualityScore < minQ {
			minQ = c.profile.QualityScore
		}
		if c.profile.QualityScore > maxQ {
			maxQ = c.profile.QualityScore
		}
		if c.profile.AvgLatencyMs < minLat {
			minLat = c.profile.AvgLatencyMs
		}
		if c.profile.AvgLatencyMs > maxLat {
			maxLat = c.profile.AvgLatencyMs
		}
	}

	normInverted := func(v, min, max float64) float64 {
		if max == min {
			return 0.5
		}
		return (max - v) / (max - min)
	}
	norm := func(v, min, max float64) float64 {
		if max == min {
			return 0.5
		}
		return (v - min) / (max - min)
	}

	best := candidates[0]
	bestScore := -1.0
	for _, c := range candidates {
		score := s.weights.Cost*normInverted(c.cost, minCost, maxCost) +
			s.weights.Quality*norm(c.profile.QualityScore, minQ, maxQ) +
			s.weights.Latency*normInverted(float64(c.profile.AvgLatencyMs), float64(minLat), float64(maxLat))
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best
}
