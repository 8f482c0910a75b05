package aicache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"backend/internal/kvstore"
	"backend/internal/logger"
	"backend/internal/metrics"
	"backend/pkg/aiinterface"

	"go.uber.org/zap"
)

// Level 缓存层级
type Level string

const (
	LevelExact    Level = "exact"    // 精确匹配
	LevelSemantic Level = "semantic" // 语义相似
	LevelTemplate Level = "template" // 确定性模板（仅 temperature==0）
)

// Request 缓存查询请求,五个字段共同构成指纹
type Request struct {
	Prompt       string
	SystemPrompt string
	UsageType    string
	Model        string
	Temperature  float64
}

// Entry 缓存条目
// ValidationPassed 记录写入时的校验结论,命中后随条目一起恢复
type Entry struct {
	Response         string    `json:"response"`
	Model            string    `json:"model"`
	InputTokens      int       `json:"input_tokens"`
	OutputTokens     int       `json:"output_tokens"`
	Cost             float64   `json:"cost"`
	QualityScore     *float64  `json:"quality_score,omitempty"`
	ValidationPassed bool      `json:"validation_passed"`
	Level            Level     `json:"level"`
	UsageType        string    `json:"usage_type"`
	Embedding        []float32 `json:"embedding,omitempty"` // 仅语义层条目
	CreatedAt        time.Time `json:"created_at"`
	HitCount         int64     `json:"hit_count"`
}

// Config 缓存配置
type Config struct {
	Prefix              string        // 缓存键前缀
	ExactTTL            time.Duration // 精确层 TTL
	SemanticTTL         time.Duration // 语义层 TTL
	TemplateTTL         time.Duration // 模板层 TTL
	SimilarityThreshold float64       // 语义相似度阈值
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Prefix:              "aicache:",
		ExactTTL:            7 * 24 * time.Hour,
		SemanticTTL:         24 * time.Hour,
		TemplateTTL:         30 * 24 * time.Hour,
		SimilarityThreshold: 0.95,
	}
}

// Service 三层响应缓存
// 缓存只是优化,任何存储故障都记日志后按未命中处理,绝不影响调用方
type Service struct {
	store    kvstore.Store
	embedder aiinterface.EmbeddingProvider // nil 表示语义层禁用
	cfg      *Config
	now      func() time.Time
}

// NewService 创建缓存服务
// embedder 为 nil 时语义层完全不参与查询和写入
func NewService(store kvstore.Store, embedder aiinterface.EmbeddingProvider, cfg *Config) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "aicache:"
	}
	return &Service{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock 注入时钟（仅测试用）
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Get 查询缓存,按 精确 → 语义 → 模板 顺序
// 命中时返回条目（Level 字段标记命中层级）,任何错误都视为未命中
func (s *Service) Get(ctx context.Context, req *Request) (*Entry, bool) {
	s.incr(ctx, "total_requests")

	fp := Fingerprint(req)

	// 1. 精确层
	if entry, ok := s.lookup(ctx, s.exactKey(fp), s.cfg.ExactTTL); ok {
		return s.hit(ctx, entry, LevelExact, s.exactKey(fp)), true
	}

	// 2. 语义层（仅配置了向量化后端时参与）
	if s.embedder != nil {
		if entry, key, ok := s.semanticLookup(ctx, req); ok {
			return s.hit(ctx, entry, LevelSemantic, key), true
		}
	}

	// 3. 模板层（仅完全确定性请求）
	if req.Temperature == 0 {
		if entry, ok := s.lookup(ctx, s.templateKey(fp), s.cfg.TemplateTTL); ok {
			return s.hit(ctx, entry, LevelTemplate, s.templateKey(fp)), true
		}
	}

	s.incr(ctx, "misses")
	metrics.CacheMissesTotal.Inc()
	return nil, false
}

// Set 写入缓存,尽力而为
// 精确层总是写入;语义层在配置了向量化后端时写入;模板层仅 temperature==0 时写入
func (s *Service) Set(ctx context.Context, req *Request, entry *Entry) {
	fp := Fingerprint(req)
	entry.UsageType = req.UsageType
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	s.write(ctx, s.exactKey(fp), entry, LevelExact, s.cfg.ExactTTL)

	if s.embedder != nil {
		s.semanticWrite(ctx, req, fp, entry)
	}

	if req.Temperature == 0 {
		s.write(ctx, s.templateKey(fp), entry, LevelTemplate, s.cfg.TemplateTTL)
	}
}

// Clear 清空全部缓存条目与计数器
func (s *Service) Clear(ctx context.Context) error {
	keys, err := s.store.Keys(ctx, s.cfg.Prefix+"*")
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, keys...)
}

// Stats 缓存统计快照
type Stats struct {
	TotalRequests int64   `json:"total_requests"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	ExactHits     int64   `json:"exact_hits"`
	SemanticHits  int64   `json:"semantic_hits"`
	TemplateHits  int64   `json:"template_hits"`
	HitRate       float64 `json:"hit_rate"`
}

// GetStats 读取聚合计数器
func (s *Service) GetStats(ctx context.Context) *Stats {
	st := &Stats{
		TotalRequests: s.readCounter(ctx, "total_requests"),
		Hits:          s.readCounter(ctx, "hits"),
		Misses:        s.readCounter(ctx, "misses"),
		ExactHits:     s.readCounter(ctx, "exact_hits"),
		SemanticHits:  s.readCounter(ctx, "semantic_hits"),
		TemplateHits:  s.readCounter(ctx, "template_hits"),
	}
	if st.TotalRequests > 0 {
		st.HitRate = float64(st.Hits) / float64(st.TotalRequests) * 100
	}
	return st
}

// ============================================================================
// 内部方法
// ============================================================================

func (s *Service) exactKey(fp string) string    { return s.cfg.Prefix + "exact:" + fp }
func (s *Service) templateKey(fp string) string { return s.cfg.Prefix + "tmpl:" + fp }
func (s *Service) hitCountKey(key string) string {
	return s.cfg.Prefix + "hitc:" + key
}
func (s *Service) counterKey(name string) string {
	return s.cfg.Prefix + "stats:" + name
}

// lookup 按键读取并做惰性 TTL 复核,过期条目当场删除
func (s *Service) lookup(ctx context.Context, key string, ttl time.Duration) (*Entry, bool) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			logger.WithContext(ctx).Warn("缓存读取失败,按未命中处理",
				zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		logger.WithContext(ctx).Warn("缓存条目解析失败,按未命中处理",
			zap.String("key", key), zap.Error(err))
		return nil, false
	}

	// 存储层 TTL 之外再做一次创建时间复核,容忍不支持过期的存储实现
	if ttl > 0 && entry.CreatedAt.Add(ttl).Before(s.now()) {
		_ = s.store.Delete(ctx, key)
		return nil, false
	}

	return &entry, true
}

// hit 命中记账: 条目命中计数、层级计数、聚合计数
func (s *Service) hit(ctx context.Context, entry *Entry, level Level, key string) *Entry {
	entry.Level = level

	if count, err := s.store.Incr(ctx, s.hitCountKey(key), 1); err == nil {
		entry.HitCount = count
	}
	s.incr(ctx, "hits")
	s.incr(ctx, string(level)+"_hits")
	metrics.CacheHitsTotal.WithLabelValues(string(level)).Inc()

	return entry
}

// write 序列化并写入单层,失败仅记日志
func (s *Service) write(ctx context.Context, key string, entry *Entry, level Level, ttl time.Duration) {
	stored := *entry
	stored.Level = level
	if level != LevelSemantic {
		stored.Embedding = nil
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		logger.WithContext(ctx).Warn("缓存条目序列化失败", zap.Error(err))
		metrics.CacheWriteErrorsTotal.Inc()
		return
	}
	if err := s.store.Set(ctx, key, data, ttl); err != nil {
		logger.WithContext(ctx).Warn("缓存写入失败",
			zap.String("key", key), zap.String("level", string(level)), zap.Error(err))
		metrics.CacheWriteErrorsTotal.Inc()
	}
}

// incr 聚合计数器自增,跨执行器实例原子
func (s *Service) incr(ctx context.Context, name string) {
	if _, err := s.store.Incr(ctx, s.counterKey(name), 1); err != nil {
		logger.WithContext(ctx).Debug("缓存计数器更新失败", zap.String("counter", name), zap.Error(err))
	}
}

// readCounter 读取聚合计数器
func (s *Service) readCounter(ctx context.Context, name string) int64 {
	data, err := s.store.Get(ctx, s.counterKey(name))
	if err != nil {
		return 0
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
