// Package similarity 提供文本相似度计算的三种策略：
// 向量余弦（带结果缓存）、TF-IDF 余弦、Jaccard 词重叠。
// 策略在引擎初始化时选定，整个生命周期内不变。
package similarity

import (
	"context"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog"

	"job-recommender/internal/config"
	"job-recommender/internal/logger"
)

// 策略名称
const (
	NameEmbedding = "embedding"
	NameTFIDF     = "tfidf"
	NameJaccard   = "jaccard"
)

// Backend 文本相似度策略
// Similarity 返回 [0,1] 内的分数，内部错误降级为 0，不向调用方传播
type Backend interface {
	Similarity(ctx context.Context, a, b string) float64
	Name() string
	// Reset 清空策略内部缓存，无缓存的策略为空操作
	Reset()
}

// Select 根据配置与可用性选择策略
// 启用语义相似度且向量服务探测成功时使用向量余弦，否则按 lexical_enabled 选择 TF-IDF 或 Jaccard
func Select(ctx context.Context, cfg config.SimilarityConfig, embedder embedding.Embedder, opts ...EmbeddingOption) Backend {
	log := logger.Component("similarity")

	if cfg.UseSemanticSimilarity && embedder != nil {
		allOpts := append([]EmbeddingOption{
			WithModel(cfg.ModelName),
			WithCacheCapacity(cfg.CacheSize),
		}, opts...)
		eb := NewEmbeddingBackend(embedder, allOpts...)
		err := eb.Probe(ctx)
		if err == nil {
			log.Info().Str("backend", NameEmbedding).Str("model", eb.model).Msg("相似度策略已选定")
			return eb
		}
		log.Warn().Err(err).Msg("向量服务不可用，回退到词法相似度")
	}

	return lexicalBackend(cfg, log)
}

func lexicalBackend(cfg config.SimilarityConfig, log zerolog.Logger) Backend {
	if cfg.LexicalEnabled {
		log.Info().Str("backend", NameTFIDF).Msg("相似度策略已选定")
		return NewTFIDF(cfg.TFIDFMaxFeatures)
	}
	log.Info().Str("backend", NameJaccard).Msg("相似度策略已选定")
	return NewJaccard()
}
