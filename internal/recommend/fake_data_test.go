package recommend

import (
	"context"
	"errors"
	"sync"
	"time"

	"job-recommender/internal/types"
)

// memoryData 内存实现的数据访问层
type memoryData struct {
	mu sync.Mutex

	profiles map[int64]*types.ProfileRecord
	resumes  map[int64]*types.ResumeRecord
	jobs     []types.JobRecord
	mapping  map[string][]string
	popular  []int64

	jobsErr    error
	profileErr error
	logErr     error

	mappingCalls int
	logged       []loggedRequest
}

type loggedRequest struct {
	userID int64
	jobIDs []int64
	scores []float64
}

func newMemoryData() *memoryData {
	return &memoryData{
		profiles: map[int64]*types.ProfileRecord{},
		resumes:  map[int64]*types.ResumeRecord{},
		mapping:  map[string][]string{},
	}
}

func (m *memoryData) GetUserProfile(_ context.Context, userID int64) (*types.ProfileRecord, error) {
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	return m.profiles[userID], nil
}

func (m *memoryData) GetUserResume(_ context.Context, userID int64, onlyCompleted bool) (*types.ResumeRecord, error) {
	r := m.resumes[userID]
	if r == nil || (onlyCompleted && r.Status != types.ResumeStatusCompleted) {
		return nil, nil
	}
	return r, nil
}

func (m *memoryData) GetActiveJobs(_ context.Context, limit int) ([]types.JobRecord, error) {
	if m.jobsErr != nil {
		return nil, m.jobsErr
	}
	if limit > 0 && len(m.jobs) > limit {
		return m.jobs[:limit], nil
	}
	return m.jobs, nil
}

func (m *memoryData) GetJobCategoriesMapping(context.Context) (map[string][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappingCalls++
	return m.mapping, nil
}

func (m *memoryData) GetPopularJobs(_ context.Context, limit int) ([]int64, error) {
	if limit > 0 && len(m.popular) > limit {
		return m.popular[:limit], nil
	}
	return m.popular, nil
}

func (m *memoryData) GetTotalActiveJobsCount(context.Context) (int64, error) {
	return int64(len(m.jobs)), nil
}

func (m *memoryData) LogRecommendationRequest(_ context.Context, userID int64, jobIDs []int64, scores []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.logErr != nil {
		return m.logErr
	}
	m.logged = append(m.logged, loggedRequest{userID: userID, jobIDs: jobIDs, scores: scores})
	return nil
}

func (m *memoryData) loggedRequests() []loggedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]loggedRequest(nil), m.logged...)
}

// memoryLocker 内存实现的分布式锁
type memoryLocker struct {
	mu     sync.Mutex
	holder string
	err    error
}

func (l *memoryLocker) AcquireLock(_ context.Context, _ string, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	if l.holder != "" {
		return "", nil
	}
	l.holder = "me"
	return l.holder, nil
}

func (l *memoryLocker) ReleaseLock(_ context.Context, _ string, value string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != value {
		return false, errors.New("not owner")
	}
	l.holder = ""
	return true, nil
}

func strPtr(s string) *string { return &s }
