package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog 模型档案目录
// 构造后不可变,可被任意多个 goroutine 并发读取
type Catalog struct {
	profiles map[string]*ModelProfile
	order    []string // 保持加载顺序,使选择结果可复现
}

// NewCatalog 从给定档案构造目录
func NewCatalog(profiles []*ModelProfile) (*Catalog, error) {
	c := &Catalog{
		profiles: make(map[string]*ModelProfile, len(profiles)),
	}
	for _, p := range profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("模型档案缺少 name 字段")
		}
		if p.QualityScore < 0 || p.QualityScore > 1 {
			return nil, fmt.Errorf("模型 %s 的 quality_score 必须在 [0,1] 区间", p.Name)
		}
		if _, exists := c.profiles[p.Name]; exists {
			return nil, fmt.Errorf("模型 %s 重复定义", p.Name)
		}
		c.profiles[p.Name] = p
		c.order = append(c.order, p.Name)
	}
	return c, nil
}

// LoadFromYAML 从 YAML 文件加载模型目录
func LoadFromYAML(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取模型目录文件失败: %w", err)
	}

	var doc struct {
		Models []*ModelProfile `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("解析模型目录文件失败: %w", err)
	}
	if len(doc.Models) == 0 {
		return nil, fmt.Errorf("模型目录文件 %s 未定义任何模型", path)
	}

	return NewCatalog(doc.Models)
}

// Default 内置模型目录
// 价格与能力参数对应各提供商公开报价,部署方应以 YAML 覆盖
func Default() *Catalog {
	c, _ := NewCatalog([]*ModelProfile{
		{
			Name: "gpt-4o", Provider: "openai",
			InputPricePerMTok: 2.5, OutputPricePerMTok: 10,
			QualityScore: 0.92, AvgLatencyMs: 1200,
			MaxInputTokens: 128000, MaxOutputTokens: 16384,
			Available: true,
		},
		{
			Name: "gpt-4o-mini", Provider: "openai",
			InputPricePerMTok: 0.15, OutputPricePerMTok: 0.6,
			QualityScore: 0.78, AvgLatencyMs: 600,
			MaxInputTokens: 128000, MaxOutputTokens: 16384,
			Available: true,
		},
		{
			Name: "claude-sonnet-4-20250514", Provider: "anthropic",
			InputPricePerMTok: 3, OutputPricePerMTok: 15,
			QualityScore: 0.95, AvgLatencyMs: 1500,
			MaxInputTokens: 200000, MaxOutputTokens: 64000,
			Available: true,
		},
		{
			Name: "claude-3-5-haiku-20241022", Provider: "anthropic",
			InputPricePerMTok: 0.8, OutputPricePerMTok: 4,
			QualityScore: 0.72, AvgLatencyMs: 500,
			MaxInputTokens: 200000, MaxOutputTokens: 8192,
			Available: true,
		},
	})
	return c
}

// Get 按名称获取模型档案,不存在返回 nil
func (c *Catalog) Get(name string) *ModelProfile {
	return c.profiles[name]
}

// All 按加载顺序返回所有模型档案
func (c *Catalog) All() []*ModelProfile {
	out := make([]*ModelProfile, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.profiles[name])
	}
	return out
}

// Len 目录中的模型数量
func (c *Catalog) Len() int {
	return len(c.profiles)
}
