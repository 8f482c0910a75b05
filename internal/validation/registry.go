package validation

import "sync"

// 内置调用类别
const (
	UsageTaskGeneration = "task_generation"
	UsageInterview      = "interview"
)

// Registry 按调用类别选择校验管道
type Registry struct {
	mu        sync.RWMutex
	pipelines map[string]*Pipeline
	fallback  *Pipeline
}

// NewRegistry 创建注册表并装配内置管道
func NewRegistry() *Registry {
	r := &Registry{
		pipelines: make(map[string]*Pipeline),
	}

	// 任务生成: 要求 JSON 且包含 tasks 字段,内容足够充实
	r.pipelines[UsageTaskGeneration] = NewPipeline().
		Add(&EmptyValidator{}, 1).
		Add(&LengthValidator{MinLength: 50}, 1).
		Add(&JSONValidator{RequiredFields: []string{"tasks"}}, 2).
		Add(&FormatValidator{Expected: "json"}, 1).
		Add(&TruncationValidator{}, 1)

	// 访谈问答: 短文本即可,不要求 JSON
	r.pipelines[UsageInterview] = NewPipeline().
		Add(&EmptyValidator{}, 1).
		Add(&LengthValidator{MinLength: 10}, 1).
		Add(&TruncationValidator{}, 1)

	// 兜底: 仅做基线检查
	r.fallback = NewPipeline().
		Add(&EmptyValidator{}, 1).
		Add(&LengthValidator{MinLength: 1}, 1).
		Add(&TruncationValidator{}, 1)

	return r
}

// Register 注册或覆盖某类别的管道
func (r *Registry) Register(usageType string, p *Pipeline) {
	r.mu.Lock()
	r.pipelines[usageType] = p
	r.mu.Unlock()
}

// ForUsageType 获取类别对应的管道,未注册的类别使用兜底管道
func (r *Registry) ForUsageType(usageType string) *Pipeline {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.pipelines[usageType]; ok {
		return p
	}
	return r.fallback
}
