package validation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyValidator(t *testing.T) {
	v := &EmptyValidator{}
	ctx := context.Background()

	t.Run("成功_非空响应通过", func(t *testing.T) {
		r := v.Validate(ctx, &Input{Response: "内容"})
		assert.True(t, r.Passed)
		assert.Equal(t, 1.0, r.Score)
	})

	t.Run("失败_纯空白视为空", func(t *testing.T) {
		r := v.Validate(ctx, &Input{Response: "  \n\t "})
		assert.False(t, r.Passed)
		assert.Zero(t, r.Score)
	})
}

func TestLengthValidator(t *testing.T) {
	ctx := context.Background()

	t.Run("失败_过短按比例扣分", func(t *testing.T) {
		v := &LengthValidator{MinLength: 100}
		r := v.Validate(ctx, &Input{Response: strings.Repeat("a", 50)})
		assert.False(t, r.Passed)
		assert.InDelta(t, 0.5, r.Score, 1e-9)
	})

	t.Run("失败_超出上限", func(t *testing.T) {
		v := &LengthValidator{MinLength: 1, MaxLength: 10}
		r := v.Validate(ctx, &Input{Response: strings.Repeat("a", 20)})
		assert.False(t, r.Passed)
		assert.InDelta(t, 0.5, r.Score, 1e-9)
	})

	t.Run("成功_区间内满分并记录长度", func(t *testing.T) {
		v := &LengthValidator{MinLength: 5, MaxLength: 100}
		r := v.Validate(ctx, &Input{Response: strings.Repeat("a", 50)})
		assert.True(t, r.Passed)
		assert.Equal(t, 50, r.Metadata["length"])
	})
}

func TestJSONValidator(t *testing.T) {
	ctx := context.Background()

	t.Run("成功_纯JSON满分", func(t *testing.T) {
		v := &JSONValidator{}
		r := v.Validate(ctx, &Input{Response: `{"tasks": []}`})
		assert.True(t, r.Passed)
		assert.Equal(t, 1.0, r.Score)
		assert.Empty(t, r.Warnings)
	})

	t.Run("成功_代码块包裹的JSON记警告并扣分", func(t *testing.T) {
		v := &JSONValidator{}
		r := v.Validate(ctx, &Input{Response: "```json\n{\"tasks\": []}\n```"})
		assert.True(t, r.Passed)
		assert.InDelta(t, 0.8, r.Score, 1e-9)
		assert.NotEmpty(t, r.Warnings)
	})

	t.Run("失败_非JSON", func(t *testing.T) {
		v := &JSONValidator{}
		r := v.Validate(ctx, &Input{Response: "这不是 JSON"})
		assert.False(t, r.Passed)
		assert.Zero(t, r.Score)
	})

	t.Run("失败_缺少必需字段", func(t *testing.T) {
		v := &JSONValidator{RequiredFields: []string{"tasks", "summary"}}
		r := v.Validate(ctx, &Input{Response: `{"tasks": []}`})
		assert.False(t, r.Passed)
		assert.InDelta(t, 0.5, r.Score, 1e-9)
		require.NotEmpty(t, r.Errors)
		assert.Contains(t, r.Errors[0], "summary")
	})

	t.Run("成功_必需字段齐全", func(t *testing.T) {
		v := &JSONValidator{RequiredFields: []string{"tasks"}}
		r := v.Validate(ctx, &Input{Response: `{"tasks": [{"title": "t1"}]}`})
		assert.True(t, r.Passed)
	})
}

func TestExtractFencedBlock(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractFencedBlock("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractFencedBlock("前缀说明\n```\n{\"a\":1}\n```\n后缀"))
	// 未闭合的围栏取到结尾
	assert.Equal(t, `{"a":1}`, extractFencedBlock("```json\n{\"a\":1}"))
	assert.Empty(t, extractFencedBlock("没有代码块"))
}

func TestTruncationValidator(t *testing.T) {
	v := &TruncationValidator{}
	ctx := context.Background()

	t.Run("失败_以截断标记结尾", func(t *testing.T) {
		for _, text := range []string{"未完成的内容...", "未完成的内容…", "内容 [truncated]"} {
			r := v.Validate(ctx, &Input{Response: text})
			assert.False(t, r.Passed, "文本 %q 应判为截断", text)
			assert.InDelta(t, 0.3, r.Score, 1e-9)
		}
	})

	t.Run("成功_接近Token预算只警告", func(t *testing.T) {
		// 400 字符 ≈ 100 tokens,预算 100
		r := v.Validate(ctx, &Input{Response: strings.Repeat("a", 400), MaxTokens: 100})
		assert.True(t, r.Passed)
		assert.InDelta(t, 0.9, r.Score, 1e-9)
		assert.NotEmpty(t, r.Warnings)
	})

	t.Run("成功_正常内容满分", func(t *testing.T) {
		r := v.Validate(ctx, &Input{Response: "完整的回答。", MaxTokens: 1000})
		assert.True(t, r.Passed)
		assert.Equal(t, 1.0, r.Score)
	})
}

func TestFormatValidator(t *testing.T) {
	ctx := context.Background()

	t.Run("成功_期望JSON形态不符只警告", func(t *testing.T) {
		v := &FormatValidator{Expected: "json"}
		r := v.Validate(ctx, &Input{Response: "普通文字"})
		assert.True(t, r.Passed)
		assert.InDelta(t, 0.7, r.Score, 1e-9)
		assert.NotEmpty(t, r.Warnings)
	})

	t.Run("成功_JSON形态满分", func(t *testing.T) {
		v := &FormatValidator{Expected: "json"}
		r := v.Validate(ctx, &Input{Response: `{"a": 1}`})
		assert.True(t, r.Passed)
		assert.Equal(t, 1.0, r.Score)
	})

	t.Run("成功_Markdown形态检查", func(t *testing.T) {
		v := &FormatValidator{Expected: "markdown"}

		r := v.Validate(ctx, &Input{Response: "# 标题\n\n- 要点"})
		assert.Equal(t, 1.0, r.Score)

		r = v.Validate(ctx, &Input{Response: "没有任何标记的文字"})
		assert.InDelta(t, 0.7, r.Score, 1e-9)
	})

	t.Run("成功_纯文本形态检查", func(t *testing.T) {
		v := &FormatValidator{Expected: "plain"}

		r := v.Validate(ctx, &Input{Response: "普通句子。"})
		assert.Equal(t, 1.0, r.Score)

		r = v.Validate(ctx, &Input{Response: "带代码块 ```go``` 的文字"})
		assert.InDelta(t, 0.7, r.Score, 1e-9)
	})
}
