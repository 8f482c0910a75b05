// Package ai 按模型档案把调用路由到对应提供商的客户端
package ai

import (
	"fmt"
	"sync"

	"backend/internal/catalog"
	"backend/internal/logger"
	"backend/pkg/aiinterface"

	"go.uber.org/zap"
)

// Router 模型到客户端的路由器
// 启动时按提供商注册客户端,运行期通过模型目录查找提供商
type Router struct {
	mu      sync.RWMutex
	catalog *catalog.Catalog
	clients map[string]aiinterface.ModelClient // provider -> client
}

// NewRouter 创建路由器
func NewRouter(c *catalog.Catalog) *Router {
	return &Router{
		catalog: c,
		clients: make(map[string]aiinterface.ModelClient),
	}
}

// Register 注册提供商客户端,重复注册时覆盖旧客户端
func (r *Router) Register(provider string, client aiinterface.ModelClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.clients[provider]; ok {
		if err := old.Close(); err != nil {
			logger.Get().Warn("关闭旧客户端失败",
				zap.String("provider", provider), zap.Error(err))
		}
	}
	r.clients[provider] = client
}

// ClientFor 按模型名称解析客户端
func (r *Router) ClientFor(model string) (aiinterface.ModelClient, error) {
	profile := r.catalog.Get(model)
	if profile == nil {
		return nil, fmt.Errorf("模型 %s 不在目录中", model)
	}

	r.mu.RLock()
	client, ok := r.clients[profile.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("提供商 %s 未注册客户端", profile.Provider)
	}
	return client, nil
}

// Close 关闭所有已注册的客户端
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for provider, client := range r.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("关闭 %s 客户端失败: %w", provider, err)
		}
	}
	r.clients = make(map[string]aiinterface.ModelClient)
	return firstErr
}
