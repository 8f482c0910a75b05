// Package openai 提供 OpenAI 系列模型的客户端适配
package openai

import (
	"context"
	"strings"

	"backend/pkg/aiinterface"

	openai "github.com/sashabaranov/go-openai"
)

// Client OpenAI 客户端适配器
// 只做单次调用,重试与退避由上层执行器统一负责
type Client struct {
	client *openai.Client
}

// NewClient 创建 OpenAI 客户端
func NewClient(config *aiinterface.ClientConfig) (*Client, error) {
	// 验证配置
	if config.APIKey == "" {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeAuth,
			Message: "OpenAI API Key 不能为空",
		}
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.OrgID != "" {
		clientConfig.OrgID = config.OrgID
	}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

// Invoke 执行一次对话补全
func (c *Client) Invoke(ctx context.Context, req *aiinterface.InvocationRequest) (*aiinterface.InvocationResult, error) {
	// 转换消息格式
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeServerError,
			Message: "API 返回空响应",
		}
	}

	return &aiinterface.InvocationResult{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Name 返回客户端名称
func (c *Client) Name() string {
	return "openai"
}

// Close 关闭客户端
func (c *Client) Close() error {
	// OpenAI 客户端无需显式关闭
	return nil
}

// wrapError 把 SDK 错误映射为统一的客户端错误
func wrapError(err error) *aiinterface.ClientError {
	errMsg := strings.ToLower(err.Error())

	var errType aiinterface.ErrorType
	switch {
	case strings.Contains(errMsg, "401") || strings.Contains(errMsg, "403"):
		errType = aiinterface.ErrorTypeAuth
	case strings.Contains(errMsg, "rate limit") || strings.Contains(errMsg, "429"):
		errType = aiinterface.ErrorTypeRateLimit
	case strings.Contains(errMsg, "400") || strings.Contains(errMsg, "invalid"):
		errType = aiinterface.ErrorTypeInvalidParams
	case strings.Contains(errMsg, "500") || strings.Contains(errMsg, "502") ||
		strings.Contains(errMsg, "503") || strings.Contains(errMsg, "504"):
		errType = aiinterface.ErrorTypeServerError
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "connection"):
		errType = aiinterface.ErrorTypeNetwork
	default:
		errType = aiinterface.ErrorTypeUnknown
	}

	return &aiinterface.ClientError{
		Type:    errType,
		Message: "OpenAI API 错误",
		Err:     err,
	}
}
