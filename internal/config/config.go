package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	AI       AIConfig       `mapstructure:"ai"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Executor ExecutorConfig `mapstructure:"executor"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 连接模式: standalone(单节点), sentinel(哨兵), cluster(集群)
	Mode string `mapstructure:"mode"`

	// 单节点模式配置
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// 哨兵模式配置
	MasterName       string   `mapstructure:"master_name"`
	SentinelAddrs    []string `mapstructure:"sentinel_addrs"`
	SentinelPassword string   `mapstructure:"sentinel_password"`

	// 集群模式配置
	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	// 通用配置
	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// AIConfig AI 模型配置
type AIConfig struct {
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// OpenAIConfig OpenAI 配置
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	OrgID   string `mapstructure:"org_id"`
	Timeout int    `mapstructure:"timeout"` // 单次调用超时（秒）
}

// AnthropicConfig Anthropic 配置
type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"`
}

// EmbeddingConfig 向量化配置（留空则禁用语义缓存）
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"` // openai 或留空
	Model    string `mapstructure:"model"`    // 如 text-embedding-3-small
}

// CatalogConfig 模型目录配置
type CatalogConfig struct {
	Path string `mapstructure:"path"` // 模型档案 YAML 路径,留空使用内置档案

	// balanced 优化目标的加权系数,默认 0.33/0.34/0.33
	CostWeight    float64 `mapstructure:"cost_weight"`
	QualityWeight float64 `mapstructure:"quality_weight"`
	LatencyWeight float64 `mapstructure:"latency_weight"`
}

// CacheConfig 响应缓存配置
type CacheConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	Prefix              string  `mapstructure:"prefix"`               // 缓存键前缀
	ExactTTL            string  `mapstructure:"exact_ttl"`            // 精确层 TTL,默认 168h
	SemanticTTL         string  `mapstructure:"semantic_ttl"`         // 语义层 TTL,默认 24h
	TemplateTTL         string  `mapstructure:"template_ttl"`         // 模板层 TTL,默认 720h
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"` // 语义相似度阈值,默认 0.95
}

// BatchConfig 批量聚合配置
type BatchConfig struct {
	BatchSize     int `mapstructure:"batch_size"`      // 单批最大请求数,默认 10
	BatchWindowMs int `mapstructure:"batch_window_ms"` // 聚合窗口（毫秒）,默认 100
	MaxQueueSize  int `mapstructure:"max_queue_size"`  // 单类别队列上限,默认 1000
}

// ExecutorConfig 执行器配置
type ExecutorConfig struct {
	EnableCache    bool `mapstructure:"enable_cache"`
	EnableRetry    bool `mapstructure:"enable_retry"`
	EnableFallback bool `mapstructure:"enable_fallback"`

	// 各策略最大尝试次数覆盖,键为策略名（default/fast/quality/cost）
	MaxAttempts map[string]int `mapstructure:"max_attempts"`
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件名和路径
	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	setDefaults(v)

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP") // 环境变量前缀：APP_
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_REDIS_HOST

	// 配置文件可缺省,全部走默认值和环境变量
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// setDefaults 设置默认配置
func setDefaults(v *viper.Viper) {
	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("catalog.cost_weight", 0.33)
	v.SetDefault("catalog.quality_weight", 0.34)
	v.SetDefault("catalog.latency_weight", 0.33)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.prefix", "aicache:")
	v.SetDefault("cache.exact_ttl", "168h")    // 7 天
	v.SetDefault("cache.semantic_ttl", "24h")  // 1 天
	v.SetDefault("cache.template_ttl", "720h") // 30 天
	v.SetDefault("cache.similarity_threshold", 0.95)

	v.SetDefault("batch.batch_size", 10)
	v.SetDefault("batch.batch_window_ms", 100)
	v.SetDefault("batch.max_queue_size", 1000)

	v.SetDefault("executor.enable_cache", true)
	v.SetDefault("executor.enable_retry", true)
	v.SetDefault("executor.enable_fallback", true)
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// ParseTTL 解析 TTL 字符串,非法值回退到给定默认值
func ParseTTL(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// LoadEnvFile 依次尝试从当前目录向上查找并加载 .env 文件
func LoadEnvFile() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 8; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
