package kvstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreBasic(t *testing.T) {
	ctx := context.Background()

	t.Run("成功_写入后读取", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))

		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)
	})

	t.Run("失败_键不存在返回哨兵错误", func(t *testing.T) {
		s := NewMemoryStore()
		_, err := s.Get(ctx, "missing")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("成功_读取结果是副本", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Set(ctx, "k", []byte("abc"), 0))

		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		got[0] = 'z'

		again, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), again)
	})

	t.Run("成功_删除多个键", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
		require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))

		require.NoError(t, s.Delete(ctx, "a", "b", "missing"))
		assert.Zero(t, s.Len())
	})
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()

	t.Run("成功_过期键读取返回未找到", func(t *testing.T) {
		s := NewMemoryStore()
		now := time.Now()
		s.SetClock(func() time.Time { return now })

		require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

		_, err := s.Get(ctx, "k")
		require.NoError(t, err)

		// 时间跳到 TTL 之后
		s.SetClock(func() time.Time { return now.Add(2 * time.Minute) })
		_, err = s.Get(ctx, "k")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("成功_零TTL永不过期", func(t *testing.T) {
		s := NewMemoryStore()
		now := time.Now()
		s.SetClock(func() time.Time { return now })

		require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))

		s.SetClock(func() time.Time { return now.Add(1000 * time.Hour) })
		_, err := s.Get(ctx, "k")
		assert.NoError(t, err)
	})

	t.Run("成功_Sweep清理过期键", func(t *testing.T) {
		s := NewMemoryStore()
		now := time.Now()
		s.SetClock(func() time.Time { return now })

		require.NoError(t, s.Set(ctx, "short", []byte("1"), time.Second))
		require.NoError(t, s.Set(ctx, "long", []byte("2"), time.Hour))

		s.SetClock(func() time.Time { return now.Add(time.Minute) })
		removed := s.Sweep()

		assert.Equal(t, 1, removed)
		assert.Equal(t, 1, s.Len())
	})
}

func TestMemoryStoreIncr(t *testing.T) {
	ctx := context.Background()

	t.Run("成功_从零开始累加", func(t *testing.T) {
		s := NewMemoryStore()

		n, err := s.Incr(ctx, "counter", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.Incr(ctx, "counter", 5)
		require.NoError(t, err)
		assert.Equal(t, int64(6), n)

		// 与 Redis 一致,计数器以十进制字符串存储
		raw, err := s.Get(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, []byte("6"), raw)
	})

	t.Run("失败_非数字值不能累加", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Set(ctx, "k", []byte("not-a-number"), 0))

		_, err := s.Incr(ctx, "k", 1)
		assert.Error(t, err)
	})

	t.Run("成功_并发累加不丢计数", func(t *testing.T) {
		s := NewMemoryStore()

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = s.Incr(ctx, "counter", 1)
			}()
		}
		wg.Wait()

		n, err := s.Incr(ctx, "counter", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(50), n)
	})
}

func TestMemoryStoreKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "cache:exact:a", []byte("1"), 0))
	require.NoError(t, s.Set(ctx, "cache:exact:b", []byte("2"), 0))
	require.NoError(t, s.Set(ctx, "cache:sem:a", []byte("3"), 0))

	keys, err := s.Keys(ctx, "cache:exact:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cache:exact:a", "cache:exact:b"}, keys)

	keys, err = s.Keys(ctx, "other:*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
