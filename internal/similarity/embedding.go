package similarity

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"job-recommender/internal/constants"
	"job-recommender/internal/logger"
	"job-recommender/internal/metrics"
	"job-recommender/internal/tracing"
)

var similarityTracer = otel.Tracer("job-recommender/similarity")

const probeText = "software engineer"

// VectorCache 单文本向量的外部缓存（Redis）
// 未命中时返回 nil, nil
type VectorCache interface {
	GetVector(ctx context.Context, key string) ([]float64, error)
	SetVector(ctx context.Context, key string, vector []float64, ttl time.Duration) error
}

// EmbeddingOption 向量策略的配置选项
type EmbeddingOption func(*EmbeddingBackend)

// WithModel 设置模型名，同时作为请求参数与缓存键的一部分
func WithModel(model string) EmbeddingOption {
	return func(b *EmbeddingBackend) {
		if model != "" {
			b.model = model
		}
	}
}

// WithCacheCapacity 设置文本对缓存容量
func WithCacheCapacity(capacity int) EmbeddingOption {
	return func(b *EmbeddingBackend) {
		b.pairs = NewPairCache(capacity)
	}
}

// WithVectorCache 设置单文本向量缓存，ttl <= 0 时不写入
func WithVectorCache(cache VectorCache, ttl time.Duration) EmbeddingOption {
	return func(b *EmbeddingBackend) {
		b.vectors = cache
		b.vectorTTL = ttl
	}
}

// WithLogger 设置日志记录器
func WithLogger(l zerolog.Logger) EmbeddingOption {
	return func(b *EmbeddingBackend) {
		b.logger = l
	}
}

// EmbeddingBackend 向量余弦相似度
type EmbeddingBackend struct {
	embedder  embedding.Embedder
	model     string
	pairs     *PairCache
	vectors   VectorCache
	vectorTTL time.Duration
	logger    zerolog.Logger
}

// NewEmbeddingBackend 创建向量策略
func NewEmbeddingBackend(embedder embedding.Embedder, opts ...EmbeddingOption) *EmbeddingBackend {
	b := &EmbeddingBackend{
		embedder: embedder,
		model:    "all-MiniLM-L6-v2",
		pairs:    NewPairCache(1000),
		logger:   logger.Component("similarity"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *EmbeddingBackend) Name() string { return NameEmbedding }

// Reset 清空文本对缓存，Redis中的单文本向量按TTL自然过期
func (b *EmbeddingBackend) Reset() {
	b.pairs.Reset()
}

// CacheLen 文本对缓存条目数
func (b *EmbeddingBackend) CacheLen() int {
	return b.pairs.Len()
}

// Probe 向量化一段探测文本，确认服务可用
func (b *EmbeddingBackend) Probe(ctx context.Context) error {
	vectors, err := b.embedder.EmbedStrings(ctx, []string{probeText}, embedding.WithModel(b.model))
	if err != nil {
		return fmt.Errorf("向量服务探测失败: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return errors.New("向量服务返回了空向量")
	}
	return nil
}

// Similarity 先查文本对缓存，未命中时向量化并计算余弦，失败返回0
func (b *EmbeddingBackend) Similarity(ctx context.Context, a, c string) float64 {
	key := pairKey(a, c)
	if v, ok := b.pairs.Get(key); ok {
		metrics.CacheHit()
		return v
	}
	metrics.CacheMiss()

	ctx, span := similarityTracer.Start(ctx, "Similarity.Embedding")
	defer span.End()
	span.SetAttributes(
		attribute.Int("text_a.length", len(a)),
		attribute.Int("text_b.length", len(c)),
	)

	vectors, err := b.embed(ctx, []string{a, c})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		b.logger.Warn().Err(err).Str("backend", NameEmbedding).Msg("向量相似度计算失败，按0处理")
		return 0
	}

	score := clamp01(cosine(vectors[0], vectors[1]))
	b.pairs.Put(key, score)
	span.SetAttributes(attribute.Float64("similarity", score))
	return score
}

// Warm 预先向量化文本并写入外部向量缓存，已缓存的文本不会重复请求
func (b *EmbeddingBackend) Warm(ctx context.Context, texts []string) error {
	if b.vectors == nil || b.vectorTTL <= 0 {
		return errors.New("未配置向量缓存")
	}
	if len(texts) == 0 {
		return nil
	}
	_, err := b.embed(ctx, texts)
	return err
}

// embed 返回与 texts 一一对应的向量，优先使用外部缓存
func (b *EmbeddingBackend) embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missing []int

	for i, text := range texts {
		if b.vectors != nil {
			vec, err := b.vectors.GetVector(ctx, b.vectorKey(text))
			if err != nil {
				b.logger.Debug().Err(err).Msg("读取向量缓存失败")
			} else if len(vec) > 0 {
				out[i] = vec
				continue
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	batch := make([]string, len(missing))
	for j, idx := range missing {
		batch[j] = texts[idx]
	}
	vectors, err := b.embedder.EmbedStrings(ctx, batch, embedding.WithModel(b.model))
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("向量数量不匹配: 期望 %d, 实际 %d", len(batch), len(vectors))
	}

	for j, idx := range missing {
		out[idx] = vectors[j]
		if b.vectors != nil && b.vectorTTL > 0 {
			if err := b.vectors.SetVector(ctx, b.vectorKey(texts[idx]), vectors[j], b.vectorTTL); err != nil {
				b.logger.Debug().Err(err).Msg("写入向量缓存失败")
			}
		}
	}
	return out, nil
}

func (b *EmbeddingBackend) vectorKey(text string) string {
	sum := md5.Sum([]byte(text))
	return fmt.Sprintf(constants.KeyTextVector, b.model, hex.EncodeToString(sum[:]))
}
