package aicache

import (
	"context"
	"math"

	"backend/internal/logger"

	"go.uber.org/zap"
)

// semanticKey 语义层键,按 usage_type 分区以缩小扫描范围
func (s *Service) semanticKey(usageType, fp string) string {
	return s.cfg.Prefix + "sem:" + canonicalize(usageType) + ":" + fp
}

// semanticLookup 在同 usage_type 分区内扫描,取相似度最高且达到阈值的条目
// 向量化或扫描失败仅记日志,按未命中处理
func (s *Service) semanticLookup(ctx context.Context, req *Request) (*Entry, string, bool) {
	vector, err := s.embedder.Embed(ctx, req.Prompt)
	if err != nil {
		logger.WithContext(ctx).Warn("语义缓存向量化失败,跳过语义层", zap.Error(err))
		return nil, "", false
	}

	pattern := s.cfg.Prefix + "sem:" + canonicalize(req.UsageType) + ":*"
	keys, err := s.store.Keys(ctx, pattern)
	if err != nil {
		logger.WithContext(ctx).Warn("语义缓存扫描失败,跳过语义层", zap.Error(err))
		return nil, "", false
	}

	var (
		best    *Entry
		bestKey string
		bestSim float64
	)
	for _, key := range keys {
		entry, ok := s.lookup(ctx, key, s.cfg.SemanticTTL)
		if !ok || len(entry.Embedding) == 0 {
			continue
		}
		sim := cosineSimilarity(vector, entry.Embedding)
		if sim >= s.cfg.SimilarityThreshold && sim > bestSim {
			best = entry
			bestKey = key
			bestSim = sim
		}
	}

	if best == nil {
		return nil, "", false
	}
	return best, bestKey, true
}

// semanticWrite 写入语义层条目（携带提示词向量）
func (s *Service) semanticWrite(ctx context.Context, req *Request, fp string, entry *Entry) {
	vector, err := s.embedder.Embed(ctx, req.Prompt)
	if err != nil {
		logger.WithContext(ctx).Warn("语义缓存向量化失败,跳过语义层写入", zap.Error(err))
		return
	}

	stored := *entry
	stored.Embedding = vector
	s.write(ctx, s.semanticKey(req.UsageType, fp), &stored, LevelSemantic, s.cfg.SemanticTTL)
}

// cosineSimilarity 余弦相似度
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
