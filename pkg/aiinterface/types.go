// Package aiinterface 定义 AI 模型调用的统一契约
// 执行编排核心通过这些接口与各模型提供商交互,不依赖任何具体 SDK
package aiinterface

import "context"

// InvocationRequest 模型调用请求
type InvocationRequest struct {
	Model        string  `json:"model"`                   // 模型标识
	Prompt       string  `json:"prompt"`                  // 用户提示词
	SystemPrompt string  `json:"system_prompt,omitempty"` // 系统提示词（可选）
	MaxTokens    int     `json:"max_tokens"`              // 最大输出 Token 数
	Temperature  float64 `json:"temperature"`             // 温度参数（0-2）
}

// InvocationResult 模型调用结果
// 成功但内容为空的响应与调用失败通过错误类型区分
type InvocationResult struct {
	Text         string `json:"text"`          // 生成的内容
	InputTokens  int    `json:"input_tokens"`  // 输入 Token 数
	OutputTokens int    `json:"output_tokens"` // 输出 Token 数
}

// ModelClient AI 模型客户端统一接口（每个提供商一个实现）
type ModelClient interface {
	// Invoke 执行一次模型调用
	// 客户端自身负责单次调用的超时控制,重试由上层编排器负责
	Invoke(ctx context.Context, req *InvocationRequest) (*InvocationResult, error)

	// Name 返回客户端名称（如 "openai", "anthropic"）
	Name() string

	// Close 关闭客户端连接
	Close() error
}

// EmbeddingProvider 文本向量化提供者
// 语义缓存仅在配置了 EmbeddingProvider 时启用
type EmbeddingProvider interface {
	// Embed 单条文本向量化
	Embed(ctx context.Context, text string) ([]float32, error)

	// GetModel 获取向量化模型名称
	GetModel() string
}

// ClientConfig 客户端配置
type ClientConfig struct {
	Provider string         // 提供商（openai, anthropic, custom）
	APIKey   string         // API Key
	BaseURL  string         // 基础 URL
	OrgID    string         // 组织 ID（OpenAI）
	Timeout  int            // 单次调用超时时间（秒）
	Extra    map[string]any // 提供商特有配置
}
