package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ============================================================================
// 空响应校验
// ============================================================================

// EmptyValidator 空响应校验器
type EmptyValidator struct{}

func (v *EmptyValidator) Name() string { return "empty" }

func (v *EmptyValidator) Validate(ctx context.Context, in *Input) *Result {
	if strings.TrimSpace(in.Response) == "" {
		return fail(0, "响应内容为空")
	}
	return pass(1.0)
}

// ============================================================================
// 长度校验
// ============================================================================

// LengthValidator 长度校验器
// 短于 MinLength 按比例扣分,超出 MaxLength（非 0 时）判失败
type LengthValidator struct {
	MinLength int
	MaxLength int // 0 表示不限
}

func (v *LengthValidator) Name() string { return "length" }

func (v *LengthValidator) Validate(ctx context.Context, in *Input) *Result {
	length := len(in.Response)

	if v.MinLength > 0 && length < v.MinLength {
		r := fail(float64(length)/float64(v.MinLength),
			fmt.Sprintf("响应长度 %d 小于最小要求 %d", length, v.MinLength))
		r.Metadata = map[string]any{"length": length}
		return r
	}
	if v.MaxLength > 0 && length > v.MaxLength {
		r := fail(0.5, fmt.Sprintf("响应长度 %d 超过上限 %d", length, v.MaxLength))
		r.Metadata = map[string]any{"length": length}
		return r
	}

	r := pass(1.0)
	r.Metadata = map[string]any{"length": length}
	return r
}

// ============================================================================
// JSON 校验
// ============================================================================

// JSONValidator JSON 校验器
// 直接解析失败时尝试剥离 Markdown 代码块再解析（记警告并小幅扣分）,
// 指定 RequiredFields 时逐一检查顶层字段
type JSONValidator struct {
	RequiredFields []string
}

func (v *JSONValidator) Name() string { return "json" }

func (v *JSONValidator) Validate(ctx context.Context, in *Input) *Result {
	text := strings.TrimSpace(in.Response)
	score := 1.0
	var warnings []string

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		// 尝试从代码块中提取
		block := extractFencedBlock(text)
		if block == "" {
			return fail(0, fmt.Sprintf("响应不是有效 JSON: %v", err))
		}
		if err := json.Unmarshal([]byte(block), &parsed); err != nil {
			return fail(0, fmt.Sprintf("代码块内容不是有效 JSON: %v", err))
		}
		warnings = append(warnings, "JSON 被包裹在 Markdown 代码块中")
		score = 0.8
	}

	// 检查必需字段
	var missing []string
	for _, field := range v.RequiredFields {
		if _, ok := parsed[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		r := fail(0.5, fmt.Sprintf("缺少必需字段: %s", strings.Join(missing, ", ")))
		r.Warnings = warnings
		return r
	}

	return &Result{Passed: true, Score: score, Warnings: warnings}
}

// extractFencedBlock 提取首个 Markdown 代码块的内容
// 剥离 ```json / ``` 围栏,无代码块时返回空串
func extractFencedBlock(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return ""
	}
	rest := text[start+3:]

	// 跳过语言标记行（如 json）
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}

	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// ============================================================================
// 截断校验
// ============================================================================

// 截断标记,响应以其中之一结尾视为被截断
var truncationMarkers = []string{"...", "…", "[truncated]", "[TRUNCATED]", "[续]"}

// TruncationValidator 截断校验器
// 除显式标记外,按 chars/4 估算 Token 数,接近预算上限时发出警告
type TruncationValidator struct{}

func (v *TruncationValidator) Name() string { return "truncation" }

func (v *TruncationValidator) Validate(ctx context.Context, in *Input) *Result {
	text := strings.TrimSpace(in.Response)

	for _, marker := range truncationMarkers {
		if strings.HasSuffix(text, marker) {
			return fail(0.3, fmt.Sprintf("响应以截断标记 %q 结尾", marker))
		}
	}

	// 启发式: 估算 Token ≈ 字符数/4,达到预算的 95% 说明可能被硬截断
	if in.MaxTokens > 0 {
		estimatedTokens := len(text) / 4
		if float64(estimatedTokens) >= 0.95*float64(in.MaxTokens) {
			return &Result{
				Passed:   true,
				Score:    0.9,
				Warnings: []string{fmt.Sprintf("响应长度接近 Token 预算（约 %d/%d）,可能被截断", estimatedTokens, in.MaxTokens)},
			}
		}
	}

	return pass(1.0)
}

// ============================================================================
// 格式校验
// ============================================================================

// FormatValidator 响应形态校验器
// 形态不符一般只发警告不判失败
type FormatValidator struct {
	Expected string // json, markdown, plain
}

func (v *FormatValidator) Name() string { return "format" }

func (v *FormatValidator) Validate(ctx context.Context, in *Input) *Result {
	text := strings.TrimSpace(in.Response)

	warn := func(msg string) *Result {
		return &Result{Passed: true, Score: 0.7, Warnings: []string{msg}}
	}

	switch v.Expected {
	case "json":
		if strings.HasPrefix(text, "```") {
			return warn("期望纯 JSON,但响应被 Markdown 代码块包裹")
		}
		if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
			return warn("期望 JSON,但响应不以 { 或 [ 开头")
		}

	case "markdown":
		if !containsMarkdown(text) {
			return warn("期望 Markdown,但响应未包含任何 Markdown 标记")
		}

	case "plain":
		if strings.Contains(text, "```") || containsMarkdown(text) {
			return warn("期望纯文本,但响应包含 Markdown 或代码块标记")
		}
	}

	return pass(1.0)
}

// containsMarkdown 粗略判断是否包含 Markdown 标记
func containsMarkdown(text string) bool {
	for _, marker := range []string{"# ", "## ", "- ", "* ", "**", "```", "> "} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
