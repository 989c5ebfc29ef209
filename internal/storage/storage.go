package storage

import (
	"context"
	"fmt"
	"strings"

	"job-recommender/internal/config"
	"job-recommender/internal/logger"
)

// Storage 存储管理器，聚合所有存储相关依赖
type Storage struct {
	// 关系型数据库（门户库）
	MySQL *MySQL

	// 向量缓存与分布式锁，可选
	Redis *Redis

	// 推荐事件发布，可选
	RabbitMQ *RabbitMQ

	// 推荐数据访问
	Repository *RecommendRepository
}

// NewStorage 创建存储管理器，MySQL 为必需组件，其余组件初始化失败时降级运行
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{}
	var err error
	var initErrors []string

	if cfg.MySQL.Host == "" {
		return nil, fmt.Errorf("MySQL未配置")
	}
	s.MySQL, err = NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}

	if cfg.Redis.Address != "" {
		s.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	} else {
		logger.Info().Msg("Redis未配置，向量缓存与重新加载锁不可用")
	}

	if cfg.RabbitMQ.URL != "" {
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err == nil {
			err = s.RabbitMQ.SetupTopology()
		}
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		}
	}

	if len(initErrors) > 0 {
		logger.Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("以下存储组件初始化失败，降级运行")
	}

	opts := RepositoryOptions{ExcludeExpiredJobs: cfg.Recommendation.ExcludeExpiredJobs}
	if s.RabbitMQ != nil {
		opts.EventsExchange = cfg.RabbitMQ.RecommendationEvents
		opts.IssuedRoutingKey = cfg.RabbitMQ.IssuedRoutingKey
	}
	s.Repository = NewRecommendRepository(s.MySQL.DB(), opts)

	return s, nil
}

// Ping 检查数据库连接
func (s *Storage) Ping(ctx context.Context) error {
	if s == nil || s.MySQL == nil {
		return fmt.Errorf("MySQL未初始化")
	}
	return s.MySQL.Ping(ctx)
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
}
