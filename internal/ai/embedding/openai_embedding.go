// Package embedding 提供文本向量化实现,供语义缓存使用
package embedding

import (
	"context"

	"backend/pkg/aiinterface"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedding 基于 OpenAI Embeddings API 的向量化提供者
type OpenAIEmbedding struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedding 创建 OpenAI 向量化提供者
// model 留空使用 text-embedding-3-small
func NewOpenAIEmbedding(config *aiinterface.ClientConfig, model string) (*OpenAIEmbedding, error) {
	if config.APIKey == "" {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeAuth,
			Message: "OpenAI API Key 不能为空",
		}
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIEmbedding{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// Embed 单条文本向量化
func (e *OpenAIEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeServerError,
			Message: "向量化请求失败",
			Err:     err,
		}
	}
	if len(resp.Data) == 0 {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeServerError,
			Message: "向量化返回空结果",
		}
	}

	return resp.Data[0].Embedding, nil
}

// GetModel 获取向量化模型名称
func (e *OpenAIEmbedding) GetModel() string {
	return e.model
}
