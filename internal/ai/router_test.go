package ai

import (
	"context"
	"testing"

	"backend/internal/catalog"
	"backend/pkg/aiinterface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopClient struct {
	name   string
	closed bool
}

func (c *nopClient) Invoke(ctx context.Context, req *aiinterface.InvocationRequest) (*aiinterface.InvocationResult, error) {
	return &aiinterface.InvocationResult{Text: "ok"}, nil
}

func (c *nopClient) Name() string { return c.name }

func (c *nopClient) Close() error {
	c.closed = true
	return nil
}

func TestRouter(t *testing.T) {
	t.Run("成功_按目录路由到提供商", func(t *testing.T) {
		r := NewRouter(catalog.Default())
		openaiClient := &nopClient{name: "openai"}
		anthropicClient := &nopClient{name: "anthropic"}
		r.Register("openai", openaiClient)
		r.Register("anthropic", anthropicClient)

		c, err := r.ClientFor("gpt-4o-mini")
		require.NoError(t, err)
		assert.Same(t, aiinterface.ModelClient(openaiClient), c)

		c, err = r.ClientFor("claude-sonnet-4-20250514")
		require.NoError(t, err)
		assert.Same(t, aiinterface.ModelClient(anthropicClient), c)
	})

	t.Run("失败_模型不在目录", func(t *testing.T) {
		r := NewRouter(catalog.Default())
		r.Register("openai", &nopClient{name: "openai"})

		_, err := r.ClientFor("unknown-model")
		assert.Error(t, err)
	})

	t.Run("失败_提供商未注册", func(t *testing.T) {
		r := NewRouter(catalog.Default())
		_, err := r.ClientFor("gpt-4o-mini")
		assert.Error(t, err)
	})

	t.Run("成功_重复注册关闭旧客户端", func(t *testing.T) {
		r := NewRouter(catalog.Default())
		old := &nopClient{name: "openai"}
		r.Register("openai", old)
		r.Register("openai", &nopClient{name: "openai"})
		assert.True(t, old.closed)
	})

	t.Run("成功_Close关闭全部客户端", func(t *testing.T) {
		r := NewRouter(catalog.Default())
		a := &nopClient{name: "openai"}
		b := &nopClient{name: "anthropic"}
		r.Register("openai", a)
		r.Register("anthropic", b)

		require.NoError(t, r.Close())
		assert.True(t, a.closed)
		assert.True(t, b.closed)

		_, err := r.ClientFor("gpt-4o-mini")
		assert.Error(t, err)
	})
}
