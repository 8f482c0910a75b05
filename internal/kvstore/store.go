// Package kvstore 提供缓存与计数所依赖的键值存储抽象
// 提供 Redis 与进程内两种实现,缓存逻辑本身不感知底层存储
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound 键不存在
var ErrNotFound = errors.New("key not found")

// Store 键值存储接口
// 所有实现必须保证单键操作的原子性,Incr 用于跨执行器实例的共享计数
type Store interface {
	// Get 读取键值,键不存在或已过期返回 ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入键值,ttl<=0 表示永不过期
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Incr 原子增加计数器并返回新值
	Incr(ctx context.Context, key string, delta int64) (int64, error)

	// Keys 按通配模式列出键（用于语义层扫描）
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Delete 删除若干键,不存在的键忽略
	Delete(ctx context.Context, keys ...string) error
}
