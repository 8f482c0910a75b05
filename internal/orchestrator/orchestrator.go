// Package orchestrator 是执行编排核心的组装根
// 按配置把目录、路由、缓存、批量聚合和执行器装配成一个可用整体,
// 供上层 API 进程在启动时创建并持有
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"backend/internal/ai"
	"backend/internal/ai/anthropic"
	"backend/internal/ai/embedding"
	"backend/internal/ai/openai"
	"backend/internal/ai/tokenizer"
	"backend/internal/aicache"
	"backend/internal/audit"
	"backend/internal/batch"
	"backend/internal/catalog"
	"backend/internal/config"
	"backend/internal/executor"
	"backend/internal/infra"
	"backend/internal/kvstore"
	"backend/internal/logger"
	"backend/internal/validation"
	"backend/pkg/aiinterface"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Core 执行编排核心的全部组件
type Core struct {
	Config   *config.Config
	Catalog  *catalog.Catalog
	Selector *catalog.Selector
	Router   *ai.Router
	Cache    *aicache.Service // 缓存禁用时为 nil
	Batch    *batch.Aggregator
	Executor *executor.Executor

	redisClient redis.UniversalClient // 未接 Redis 时为 nil
}

// New 按配置装配核心
// Redis 不可达时降级为进程内存储,缓存和计数能力保留,跨实例共享丢失
func New(cfg *config.Config) (*Core, error) {
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	core := &Core{Config: cfg}

	// 1. 模型目录与选择器
	cat, err := buildCatalog(&cfg.Catalog)
	if err != nil {
		return nil, err
	}
	core.Catalog = cat
	core.Selector = catalog.NewSelector(cat, catalog.Weights{
		Cost:    cfg.Catalog.CostWeight,
		Quality: cfg.Catalog.QualityWeight,
		Latency: cfg.Catalog.LatencyWeight,
	})

	// 2. 提供商客户端路由
	core.Router = ai.NewRouter(cat)
	if err := registerClients(core.Router, &cfg.AI); err != nil {
		return nil, err
	}

	// 3. 键值存储与响应缓存
	store := buildStore(&cfg.Redis, core)
	if cfg.Cache.Enabled {
		core.Cache = aicache.NewService(store, buildEmbedder(&cfg.AI), &aicache.Config{
			Prefix:              cfg.Cache.Prefix,
			ExactTTL:            config.ParseTTL(cfg.Cache.ExactTTL, aicache.DefaultConfig().ExactTTL),
			SemanticTTL:         config.ParseTTL(cfg.Cache.SemanticTTL, aicache.DefaultConfig().SemanticTTL),
			TemplateTTL:         config.ParseTTL(cfg.Cache.TemplateTTL, aicache.DefaultConfig().TemplateTTL),
			SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		})
	}

	// 4. 批量聚合器
	core.Batch = batch.NewAggregator(&batch.Config{
		BatchSize:    cfg.Batch.BatchSize,
		BatchWindow:  batchWindow(cfg.Batch.BatchWindowMs),
		MaxQueueSize: cfg.Batch.MaxQueueSize,
	})

	// 5. 执行器
	core.Executor = executor.New(core.Router, cat, core.Selector, &executor.Config{
		Cache:      core.Cache,
		Validators: validation.NewRegistry(),
		Sink:       audit.NewZapSink(),
		Estimator:  tokenizer.NewEstimator(),
		Strategies: buildStrategies(&cfg.Executor),
	})

	logger.Info("执行编排核心装配完成",
		zap.Int("models", cat.Len()),
		zap.Bool("cache_enabled", core.Cache != nil),
		zap.Bool("redis", core.redisClient != nil))
	return core, nil
}

// Shutdown 按依赖反序关停
// 先解除批量聚合的阻塞调用方,再断开外部连接
func (c *Core) Shutdown(ctx context.Context) error {
	c.Batch.Shutdown()

	var firstErr error
	if err := c.Router.Close(); err != nil {
		firstErr = err
	}
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	logger.Sync()
	return firstErr
}

// buildCatalog 加载模型目录,未配置路径时使用内置档案
func buildCatalog(cfg *config.CatalogConfig) (*catalog.Catalog, error) {
	if cfg.Path == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFromYAML(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("加载模型目录失败: %w", err)
	}
	return cat, nil
}

// registerClients 按配置注册提供商客户端,未配置密钥的提供商跳过
func registerClients(router *ai.Router, cfg *config.AIConfig) error {
	if cfg.OpenAI.APIKey != "" {
		client, err := openai.NewClient(&aiinterface.ClientConfig{
			Provider: "openai",
			APIKey:   cfg.OpenAI.APIKey,
			BaseURL:  cfg.OpenAI.BaseURL,
			OrgID:    cfg.OpenAI.OrgID,
			Timeout:  cfg.OpenAI.Timeout,
		})
		if err != nil {
			return fmt.Errorf("创建 OpenAI 客户端失败: %w", err)
		}
		router.Register("openai", client)
	}

	if cfg.Anthropic.APIKey != "" {
		client, err := anthropic.NewClient(&aiinterface.ClientConfig{
			Provider: "anthropic",
			APIKey:   cfg.Anthropic.APIKey,
			BaseURL:  cfg.Anthropic.BaseURL,
			Timeout:  cfg.Anthropic.Timeout,
		})
		if err != nil {
			return fmt.Errorf("创建 Anthropic 客户端失败: %w", err)
		}
		router.Register("anthropic", client)
	}

	return nil
}

// buildStore 构建键值存储,Redis 不可达时降级为内存存储
func buildStore(cfg *config.RedisConfig, core *Core) kvstore.Store {
	client, err := infra.InitRedis(cfg)
	if err != nil {
		logger.Warn("Redis 不可达,降级为进程内存储", zap.Error(err))
		return kvstore.NewMemoryStore()
	}
	core.redisClient = client
	return kvstore.NewRedisStore(client)
}

// buildEmbedder 构建语义缓存的向量化提供者,未配置时返回 nil（语义层禁用）
func buildEmbedder(cfg *config.AIConfig) aiinterface.EmbeddingProvider {
	if cfg.Embedding.Provider != "openai" || cfg.OpenAI.APIKey == "" {
		return nil
	}
	provider, err := embedding.NewOpenAIEmbedding(&aiinterface.ClientConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
	}, cfg.Embedding.Model)
	if err != nil {
		logger.Warn("创建向量化提供者失败,语义缓存禁用", zap.Error(err))
		return nil
	}
	return provider
}

// buildStrategies 在内置预设上套用配置覆盖
func buildStrategies(cfg *config.ExecutorConfig) map[string]*executor.Strategy {
	strategies := executor.PresetStrategies()
	for name, strat := range strategies {
		if attempts, ok := cfg.MaxAttempts[name]; ok && attempts >= 1 {
			strat.MaxAttempts = attempts
		}
		// 全局开关只做关闭,不强行打开预设已禁用的能力
		if !cfg.EnableCache {
			strat.EnableCache = false
		}
		if !cfg.EnableRetry {
			strat.EnableRetry = false
		}
		if !cfg.EnableFallback {
			strat.EnableFallback = false
		}
	}
	return strategies
}

// batchWindow 毫秒配置转时长,非法值交给聚合器回退默认
func batchWindow(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
