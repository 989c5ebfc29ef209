package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"job-recommender/internal/metrics"
)

// ErrEmbeddingUnavailable 熔断器打开时返回
var ErrEmbeddingUnavailable = errors.New("向量化服务暂不可用")

// RateLimitedEmbedder 对向量化调用进行限流、重试与熔断的代理
type RateLimitedEmbedder struct {
	original embedding.Embedder
	limiter  *Limiter
	breaker  *gobreaker.CircuitBreaker[[][]float64]
}

// NewRateLimitedEmbedder 创建代理，连续失败 failureThreshold 次后熔断 openTimeout
func NewRateLimitedEmbedder(original embedding.Embedder, limiter *Limiter, failureThreshold uint32, openTimeout time.Duration) *RateLimitedEmbedder {
	if failureThreshold == 0 {
		failureThreshold = 5
	}
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "embedding",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("熔断器状态变化")
			metrics.EmbeddingBreakerState.Set(float64(to))
		},
	}

	return &RateLimitedEmbedder{
		original: original,
		limiter:  limiter,
		breaker:  gobreaker.NewCircuitBreaker[[][]float64](settings),
	}
}

// EmbedStrings 代理 EmbedStrings，增加限流、重试与熔断
func (r *RateLimitedEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	vectors, err := r.breaker.Execute(func() ([][]float64, error) {
		var out [][]float64
		retryErr := r.limiter.RetryWithBackoff(ctx, func() error {
			var embedErr error
			out, embedErr = r.original.EmbedStrings(ctx, texts, opts...)
			return embedErr
		})
		return out, retryErr
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.EmbeddingRequestsTotal.WithLabelValues("breaker_open").Inc()
		return nil, ErrEmbeddingUnavailable
	case err != nil:
		metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues("ok").Inc()
	return vectors, nil
}

// State 返回熔断器当前状态
func (r *RateLimitedEmbedder) State() gobreaker.State {
	return r.breaker.State()
}
