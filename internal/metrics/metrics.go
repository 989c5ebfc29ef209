// Package metrics 推荐服务的 Prometheus 指标
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	// RecommendationsTotal 推荐请求次数，按结果分类 (ok, not_ready, unknown_user, error)
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_requests_total",
			Help: "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	// RecommendationDuration 单次推荐耗时
	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommender_request_duration_seconds",
			Help:    "Duration of recommendation requests in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// JobsScoredTotal 参与评分的职位数量
	JobsScoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommender_jobs_scored_total",
			Help: "Total number of candidate jobs scored",
		},
	)

	// SimilarityCacheTotal 相似度缓存命中情况 (hit, miss)
	SimilarityCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_similarity_cache_total",
			Help: "Similarity pair cache lookups by result",
		},
		[]string{"result"},
	)

	// EmbeddingRequestsTotal 向量化服务调用次数 (ok, error, breaker_open)
	EmbeddingRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_embedding_requests_total",
			Help: "Embedding service calls by status",
		},
		[]string{"status"},
	)

	// EmbeddingBreakerState 向量化熔断器状态 (0 closed, 1 half-open, 2 open)
	EmbeddingBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommender_embedding_breaker_state",
			Help: "Embedding circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
	)

	// OutboxPublishedTotal 发件箱消息投递结果 (sent, failed)
	OutboxPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_outbox_messages_total",
			Help: "Outbox messages relayed by status",
		},
		[]string{"status"},
	)

	// EngineReady 引擎是否已初始化
	EngineReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommender_engine_ready",
			Help: "1 when the recommendation engine is initialized",
		},
	)
)

// ObserveRecommendation 记录一次推荐请求的结果与耗时
func ObserveRecommendation(outcome string, elapsed time.Duration) {
	RecommendationsTotal.WithLabelValues(outcome).Inc()
	RecommendationDuration.Observe(elapsed.Seconds())
}

// CacheHit 记录相似度缓存命中
func CacheHit() { SimilarityCacheTotal.WithLabelValues("hit").Inc() }

// CacheMiss 记录相似度缓存未命中
func CacheMiss() { SimilarityCacheTotal.WithLabelValues("miss").Inc() }

// SetEngineReady 设置引擎就绪状态
func SetEngineReady(ready bool) {
	if ready {
		EngineReady.Set(1)
		return
	}
	EngineReady.Set(0)
}

// Server 独立的指标HTTP服务
type Server struct {
	srv *http.Server
}

// NewServer 创建指标服务，address 为空时返回 nil
func NewServer(address string) *Server {
	if address == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{srv: &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start 在后台启动指标服务
func (s *Server) Start() {
	if s == nil {
		return
	}
	go func() {
		log.Info().Str("address", s.srv.Addr).Msg("指标服务已启动")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("指标服务异常退出")
		}
	}()
}

// Shutdown 优雅关闭指标服务
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
