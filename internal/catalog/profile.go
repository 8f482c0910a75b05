// Package catalog 维护模型档案目录并按约束选择模型
package catalog

// ModelProfile 模型档案
// 进程启动时加载,全程只读
type ModelProfile struct {
	Name               string  `yaml:"name" json:"name"`                                   // 模型标识
	Provider           string  `yaml:"provider" json:"provider"`                           // 提供商（openai, anthropic, ...）
	InputPricePerMTok  float64 `yaml:"input_price_per_mtok" json:"input_price_per_mtok"`   // 每百万输入 Token 价格（美元）
	OutputPricePerMTok float64 `yaml:"output_price_per_mtok" json:"output_price_per_mtok"` // 每百万输出 Token 价格（美元）
	QualityScore       float64 `yaml:"quality_score" json:"quality_score"`                 // 质量评分（0-1）
	AvgLatencyMs       int     `yaml:"avg_latency_ms" json:"avg_latency_ms"`               // 平均延迟（毫秒）
	MaxInputTokens     int     `yaml:"max_input_tokens" json:"max_input_tokens"`           // 最大输入 Token 数
	MaxOutputTokens    int     `yaml:"max_output_tokens" json:"max_output_tokens"`         // 最大输出 Token 数
	Available          bool    `yaml:"available" json:"available"`                         // 是否可用
}

// EstimateCost 按预估 Token 用量计算预估花费（美元）
func (p *ModelProfile) EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*p.InputPricePerMTok +
		float64(outputTokens)/1e6*p.OutputPricePerMTok
}
