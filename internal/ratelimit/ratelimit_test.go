package ratelimit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	calls atomic.Int32
	fn    func(call int32) ([][]float64, error)
}

func (s *stubEmbedder) EmbedStrings(_ context.Context, _ []string, _ ...embedding.Option) ([][]float64, error) {
	n := s.calls.Add(1)
	return s.fn(n)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.True(t, IsRetryableError(context.DeadlineExceeded))
	assert.True(t, IsRetryableError(errors.New("dial tcp: connection refused")))
	assert.True(t, IsRetryableError(errors.New("API调用失败, 状态码: 503")))
	assert.False(t, IsRetryableError(errors.New("API调用失败, 状态码: 400")))
}

func TestRetryWithBackoffRetriesTransientErrors(t *testing.T) {
	l := NewLimiter(0, 0).WithRetryPolicy(time.Millisecond, 2)
	attempts := 0
	err := l.RetryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("read: connection reset by peer")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoffStopsOnPermanentError(t *testing.T) {
	l := NewLimiter(0, 0).WithRetryPolicy(time.Millisecond, 3)
	attempts := 0
	err := l.RetryWithBackoff(context.Background(), func() error {
		attempts++
		return errors.New("invalid input")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRateLimitedEmbedderPassesThrough(t *testing.T) {
	stub := &stubEmbedder{fn: func(int32) ([][]float64, error) {
		return [][]float64{{1, 0}}, nil
	}}
	proxy := NewRateLimitedEmbedder(stub, NewLimiter(0, 0), 3, time.Minute)

	vectors, err := proxy.EmbedStrings(context.Background(), []string{"go developer"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}}, vectors)
	assert.Equal(t, gobreaker.StateClosed, proxy.State())
}

func TestRateLimitedEmbedderOpensBreaker(t *testing.T) {
	stub := &stubEmbedder{fn: func(int32) ([][]float64, error) {
		return nil, errors.New("invalid model")
	}}
	proxy := NewRateLimitedEmbedder(stub, NewLimiter(0, 0).WithRetryPolicy(time.Millisecond, 0), 2, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := proxy.EmbedStrings(context.Background(), []string{"x"})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, proxy.State())

	_, err := proxy.EmbedStrings(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Equal(t, int32(2), stub.calls.Load(), "熔断后不应再调用下游")
}
