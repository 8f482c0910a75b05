package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("成功_无配置文件时使用默认值", func(t *testing.T) {
		cfg, err := Load("nonexistent-env", "")
		require.NoError(t, err)

		assert.Equal(t, "standalone", cfg.Redis.Mode)
		assert.Equal(t, "localhost", cfg.Redis.Host)
		assert.Equal(t, 6379, cfg.Redis.Port)
		assert.Equal(t, "info", cfg.Log.Level)

		assert.True(t, cfg.Cache.Enabled)
		assert.Equal(t, "168h", cfg.Cache.ExactTTL)
		assert.InDelta(t, 0.95, cfg.Cache.SimilarityThreshold, 1e-9)

		assert.Equal(t, 10, cfg.Batch.BatchSize)
		assert.Equal(t, 100, cfg.Batch.BatchWindowMs)
		assert.Equal(t, 1000, cfg.Batch.MaxQueueSize)

		assert.True(t, cfg.Executor.EnableCache)
		assert.True(t, cfg.Executor.EnableRetry)
		assert.True(t, cfg.Executor.EnableFallback)

		assert.InDelta(t, 0.34, cfg.Catalog.QualityWeight, 1e-9)
	})

	t.Run("成功_从YAML文件加载", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.yaml")
		content := `redis:
  host: redis.internal
  port: 6380
cache:
  enabled: false
  similarity_threshold: 0.9
batch:
  batch_size: 32
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := Load("test", path)
		require.NoError(t, err)

		assert.Equal(t, "redis.internal", cfg.Redis.Host)
		assert.Equal(t, 6380, cfg.Redis.Port)
		assert.False(t, cfg.Cache.Enabled)
		assert.InDelta(t, 0.9, cfg.Cache.SimilarityThreshold, 1e-9)
		assert.Equal(t, 32, cfg.Batch.BatchSize)
		// 未覆盖的键保持默认值
		assert.Equal(t, 1000, cfg.Batch.MaxQueueSize)
	})

	t.Run("成功_环境变量覆盖配置文件", func(t *testing.T) {
		t.Setenv("APP_REDIS_HOST", "env.redis")

		cfg, err := Load("nonexistent-env", "")
		require.NoError(t, err)
		assert.Equal(t, "env.redis", cfg.Redis.Host)
	})

	t.Run("失败_配置文件语法错误", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("redis: [not: valid"), 0o644))

		_, err := Load("test", path)
		assert.Error(t, err)
	})
}

func TestParseTTL(t *testing.T) {
	assert.Equal(t, 168*time.Hour, ParseTTL("168h", time.Hour))
	assert.Equal(t, 90*time.Second, ParseTTL("90s", time.Hour))

	// 空串、非法格式、非正值都回退默认
	assert.Equal(t, time.Hour, ParseTTL("", time.Hour))
	assert.Equal(t, time.Hour, ParseTTL("7days", time.Hour))
	assert.Equal(t, time.Hour, ParseTTL("-5m", time.Hour))
	assert.Equal(t, time.Hour, ParseTTL("0s", time.Hour))
}
