package recommend

import (
	"time"

	"github.com/rs/zerolog"

	"job-recommender/internal/similarity"
)

// Option 定义了 Engine 的配置选项函数类型
type Option func(*Engine)

// WithBackendFactory 设置初始化时创建相似度策略的函数
func WithBackendFactory(factory BackendFactory) Option {
	return func(e *Engine) {
		e.backendFactory = factory
	}
}

// WithBackend 直接指定相似度策略
func WithBackend(backend similarity.Backend) Option {
	return func(e *Engine) {
		e.backendFactory = staticBackend(backend)
	}
}

// WithLocker 设置重新加载时使用的分布式锁
func WithLocker(locker Locker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

// WithEngineLogger 设置日志记录器
func WithEngineLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithAnalyticsTimeout 设置异步记录推荐结果的超时时间
func WithAnalyticsTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.analyticsTimeout = d
		}
	}
}
