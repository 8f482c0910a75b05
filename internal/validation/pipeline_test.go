package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubValidator 返回固定结果
type stubValidator struct {
	name   string
	result *Result
}

func (s *stubValidator) Name() string { return s.name }

func (s *stubValidator) Validate(ctx context.Context, in *Input) *Result { return s.result }

func TestPipelineAggregation(t *testing.T) {
	ctx := context.Background()

	t.Run("成功_空管道默认通过", func(t *testing.T) {
		r := NewPipeline().Validate(ctx, &Input{Response: "x"})
		assert.True(t, r.Passed)
		assert.Equal(t, 1.0, r.Score)
	})

	t.Run("成功_整体通过取决于全部校验器", func(t *testing.T) {
		p := NewPipeline().
			Add(&stubValidator{name: "a", result: &Result{Passed: true, Score: 1}}, 1).
			Add(&stubValidator{name: "b", result: &Result{Passed: false, Score: 0, Errors: []string{"bad"}}}, 1)

		r := p.Validate(ctx, &Input{})
		assert.False(t, r.Passed)
		assert.Equal(t, []string{"bad"}, r.Errors)
	})

	t.Run("成功_评分按权重归一", func(t *testing.T) {
		p := NewPipeline().
			Add(&stubValidator{name: "a", result: &Result{Passed: true, Score: 1}}, 3).
			Add(&stubValidator{name: "b", result: &Result{Passed: true, Score: 0}}, 1)

		r := p.Validate(ctx, &Input{})
		assert.InDelta(t, 0.75, r.Score, 1e-9)
	})

	t.Run("成功_非法权重按1处理", func(t *testing.T) {
		p := NewPipeline().
			Add(&stubValidator{name: "a", result: &Result{Passed: true, Score: 1}}, 0).
			Add(&stubValidator{name: "b", result: &Result{Passed: true, Score: 0}}, -2)

		r := p.Validate(ctx, &Input{})
		assert.InDelta(t, 0.5, r.Score, 1e-9)
	})

	t.Run("成功_元数据按校验器名称命名空间", func(t *testing.T) {
		p := NewPipeline().
			Add(&stubValidator{name: "length", result: &Result{Passed: true, Score: 1, Metadata: map[string]any{"length": 42}}}, 1)

		r := p.Validate(ctx, &Input{})
		assert.Equal(t, 42, r.Metadata["length.length"])
	})
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	t.Run("成功_任务生成管道要求tasks字段", func(t *testing.T) {
		p := r.ForUsageType(UsageTaskGeneration)

		good := p.Validate(ctx, &Input{
			Response:  `{"tasks": [{"title": "调研竞品", "description": "整理 5 家竞品的功能矩阵和定价"}]}`,
			UsageType: UsageTaskGeneration,
			MaxTokens: 4000,
		})
		assert.True(t, good.Passed)

		bad := p.Validate(ctx, &Input{
			Response:  `{"items": [{"title": "调研竞品", "description": "整理 5 家竞品的功能矩阵和定价"}]}`,
			UsageType: UsageTaskGeneration,
			MaxTokens: 4000,
		})
		assert.False(t, bad.Passed)
	})

	t.Run("成功_访谈管道不要求JSON", func(t *testing.T) {
		p := r.ForUsageType(UsageInterview)
		result := p.Validate(ctx, &Input{
			Response:  "这个项目的目标用户主要是中小团队。",
			UsageType: UsageInterview,
			MaxTokens: 2000,
		})
		assert.True(t, result.Passed)
	})

	t.Run("成功_未注册类别回退基线管道", func(t *testing.T) {
		p := r.ForUsageType("unknown_type")
		require.NotNil(t, p)

		result := p.Validate(ctx, &Input{Response: "任意内容", MaxTokens: 1000})
		assert.True(t, result.Passed)
	})

	t.Run("成功_注册自定义管道覆盖内置", func(t *testing.T) {
		custom := NewPipeline().Add(&EmptyValidator{}, 1)
		r.Register(UsageInterview, custom)
		assert.Same(t, custom, r.ForUsageType(UsageInterview))
	})
}
