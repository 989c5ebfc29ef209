package recommend

import (
	"context"
	"time"

	"job-recommender/internal/types"
)

// DataAccess 推荐引擎依赖的数据访问接口
// 记录不存在时返回 nil, nil
type DataAccess interface {
	GetUserProfile(ctx context.Context, userID int64) (*types.ProfileRecord, error)
	GetUserResume(ctx context.Context, userID int64, onlyCompleted bool) (*types.ResumeRecord, error)
	GetActiveJobs(ctx context.Context, limit int) ([]types.JobRecord, error)
	GetJobCategoriesMapping(ctx context.Context) (map[string][]string, error)
	GetPopularJobs(ctx context.Context, limit int) ([]int64, error)
	GetTotalActiveJobsCount(ctx context.Context) (int64, error)
	LogRecommendationRequest(ctx context.Context, userID int64, jobIDs []int64, scores []float64) error
}

// Locker 分布式锁，获取失败时返回空字符串
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error)
}
