package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Limiter 令牌桶限流器，附带指数退避重试
type Limiter struct {
	limiter       *rate.Limiter
	retryWaitTime time.Duration // 首次重试等待时间
	maxRetries    int           // 最大重试次数
}

// NewLimiter 创建限流器
// rps <= 0 表示不限流；burst <= 0 时按 rps 的一半（至少为1）设置
func NewLimiter(rps float64, burst int) *Limiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = int(rps / 2)
		if burst <= 0 {
			burst = 1
		}
	}
	return &Limiter{
		limiter:       rate.NewLimiter(limit, burst),
		retryWaitTime: 200 * time.Millisecond,
		maxRetries:    2,
	}
}

// WithRetryPolicy 设置重试策略
func (l *Limiter) WithRetryPolicy(waitTime time.Duration, maxRetries int) *Limiter {
	if waitTime > 0 {
		l.retryWaitTime = waitTime
	}
	if maxRetries >= 0 {
		l.maxRetries = maxRetries
	}
	return l
}

// Wait 等待直到有令牌可用
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// RetryWithBackoff 使用退避策略执行函数并在需要时重试
func (l *Limiter) RetryWithBackoff(ctx context.Context, fn func() error) error {
	var err error

	for retry := 0; retry <= l.maxRetries; retry++ {
		if err = l.Wait(ctx); err != nil {
			return err
		}

		err = fn()
		if err == nil {
			return nil
		}

		if !IsRetryableError(err) || retry >= l.maxRetries {
			return err
		}

		backoff := l.retryWaitTime * time.Duration(1<<uint(retry))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return err
}

// IsRetryableError 判断错误是否可重试
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := err.Error()
	for _, substr := range []string{
		"timeout",
		"connection reset",
		"EOF",
		"connection refused",
		"429",
		"rate limit",
		"no such host",
		"状态码: 5",
	} {
		if strings.Contains(errStr, substr) {
			return true
		}
	}
	return false
}
