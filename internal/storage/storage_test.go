package storage

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-recommender/internal/config"
	"job-recommender/internal/constants"
	"job-recommender/internal/storage/models"
)

func TestModelFromVectorKey(t *testing.T) {
	key := fmt.Sprintf(constants.KeyTextVector, "all-MiniLM-L6-v2", "abc123")
	assert.Equal(t, "all-MiniLM-L6-v2", modelFromVectorKey(key))
	assert.Equal(t, "", modelFromVectorKey("short:key"))
}

func TestShouldSampleRedisOpSkipsEmptyKey(t *testing.T) {
	assert.False(t, shouldSampleRedisOp(""))
}

func TestNewIssuedOutboxMessage(t *testing.T) {
	repo := NewRecommendRepository(nil, RepositoryOptions{EventsExchange: "recommendation.events"})
	issuedAt := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	msg, err := repo.newIssuedOutboxMessage(RecommendationIssuedEvent{
		EventID:  "evt-1",
		UserID:   7,
		JobIDs:   []int64{3, 1},
		Scores:   []float64{0.8, 0.5},
		IssuedAt: issuedAt,
	})
	require.NoError(t, err)

	assert.Equal(t, "evt-1", msg.AggregateID)
	assert.Equal(t, constants.EventRecommendationIssued, msg.EventType)
	assert.Equal(t, "recommendation.events", msg.TargetExchange)
	assert.Equal(t, constants.EventRecommendationIssued, msg.TargetRoutingKey, "未配置路由键时使用事件名")
	assert.Equal(t, models.OutboxStatusPending, msg.Status)

	var decoded RecommendationIssuedEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &decoded))
	assert.Equal(t, []int64{3, 1}, decoded.JobIDs)
	assert.Equal(t, int64(7), decoded.UserID)
	assert.True(t, decoded.IssuedAt.Equal(issuedAt))
}

func TestNewStorageRequiresMySQL(t *testing.T) {
	cfg := config.Default()
	cfg.MySQL.Host = ""
	_, err := NewStorage(context.Background(), cfg)
	assert.Error(t, err)

	_, err = NewStorage(context.Background(), nil)
	assert.Error(t, err)
}

// 以下测试需要真实的 MySQL / Redis，通过环境变量开启

func testMySQLConfig(t *testing.T) *config.MySQLConfig {
	host := os.Getenv("TEST_MYSQL_HOST")
	if host == "" {
		t.Skip("未设置 TEST_MYSQL_HOST，跳过MySQL集成测试")
	}
	cfg := config.Default().MySQL
	cfg.Host = host
	if port, err := strconv.Atoi(os.Getenv("TEST_MYSQL_PORT")); err == nil {
		cfg.Port = port
	}
	cfg.Username = os.Getenv("TEST_MYSQL_USER")
	cfg.Password = os.Getenv("TEST_MYSQL_PASSWORD")
	cfg.Database = "acc_portal_test"
	cfg.LogLevel = 1
	cfg.MigratePortalSchema = true
	return &cfg
}

func TestRecommendRepositoryIntegration(t *testing.T) {
	m, err := NewMySQL(testMySQLConfig(t))
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	db := m.DB()
	for _, table := range []string{"user_profiles", "courses", "user_courses", "resumes", "jobs",
		"company_profiles", "job_applications", "job_categories", "job_ratings", "recommendation_logs", "outbox_messages"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}

	require.NoError(t, db.Create(&models.UserProfile{UserID: 1, FirstName: "Ana", StudentType: "alumni", ProfileCompleted: true}).Error)
	require.NoError(t, db.Create(&models.Course{ID: 10, CourseName: "BSIT"}).Error)
	require.NoError(t, db.Create(&models.UserCourse{UserID: 1, CourseID: 10, GraduationStatus: "graduated"}).Error)
	require.NoError(t, db.Create(&models.Resume{UserID: 1, Status: "completed", Skills: []byte(`["go"]`)}).Error)
	require.NoError(t, db.Create(&models.CompanyProfile{CompanyID: 5, CompanyName: "Acme"}).Error)

	past := time.Now().AddDate(0, 0, -1)
	require.NoError(t, db.Create(&models.Job{ID: 100, Title: "Go dev", Category: "IT", Status: "active", CreatedByType: "company", CreatedByID: 5}).Error)
	require.NoError(t, db.Create(&models.Job{ID: 101, Title: "Old", Status: "active", ApplicationDeadline: &past}).Error)
	require.NoError(t, db.Create(&models.Job{ID: 102, Title: "Closed", Status: "closed"}).Error)
	require.NoError(t, db.Create(&models.JobApplication{JobID: 100, UserID: 1, Status: "pending", AppliedAt: time.Now()}).Error)
	require.NoError(t, db.Create(&models.JobCategory{CourseName: "BSIT", CategoryName: "IT"}).Error)
	require.NoError(t, db.Create(&models.JobRating{JobID: 100, UserID: 1, Rating: 4}).Error)

	repo := NewRecommendRepository(db, RepositoryOptions{ExcludeExpiredJobs: true, EventsExchange: "recommendation.events"})

	profile, err := repo.GetUserProfile(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "BSIT", profile.Courses[0].Course)

	missing, err := repo.GetUserProfile(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	resume, err := repo.GetUserResume(ctx, 1, true)
	require.NoError(t, err)
	require.NotNil(t, resume)
	assert.JSONEq(t, `["go"]`, string(resume.Skills))

	jobs, err := repo.GetActiveJobs(ctx, 50)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Acme", jobs[0].CompanyName)
	assert.Equal(t, 1, jobs[0].ApplicationCount)

	count, err := repo.GetTotalActiveJobsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	popular, err := repo.GetPopularJobs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, popular)

	mapping, err := repo.GetJobCategoriesMapping(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"IT"}, mapping["BSIT"])

	details, err := repo.GetJobDetails(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.InDelta(t, 4.0, details.AverageRating, 1e-9)
	assert.Equal(t, 1, details.RatingCount)

	apps, err := repo.GetUserApplicationHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "IT", apps[0].Category)

	require.NoError(t, repo.LogRecommendationRequest(ctx, 1, []int64{100}, []float64{0.7}))
	require.NoError(t, repo.LogRecommendationRequest(ctx, 1, nil, nil))
	var logs, pending int64
	require.NoError(t, db.Model(&models.RecommendationLog{}).Count(&logs).Error)
	require.NoError(t, db.Model(&models.OutboxMessage{}).Where("status = ?", models.OutboxStatusPending).Count(&pending).Error)
	assert.Equal(t, int64(1), logs)
	assert.Equal(t, int64(1), pending)
}

func TestRedisIntegration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("未设置 TEST_REDIS_ADDR，跳过Redis集成测试")
	}
	cfg := config.Default().Redis
	cfg.Address = addr
	r, err := NewRedisAdapter(&cfg)
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()
	key := fmt.Sprintf(constants.KeyTextVector, "test-model", strconv.FormatInt(time.Now().UnixNano(), 10))

	vec, err := r.GetVector(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, vec)

	require.NoError(t, r.SetVector(ctx, key, []float64{0.1, 0.2}, time.Minute))
	vec, err = r.GetVector(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, vec)

	lockKey := constants.KeyRetrainLock + ":test"
	value, err := r.AcquireLock(ctx, lockKey, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, value)

	second, err := r.AcquireLock(ctx, lockKey, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, second, "锁已被持有")

	released, err := r.ReleaseLock(ctx, lockKey, "other")
	require.NoError(t, err)
	assert.False(t, released)

	released, err = r.ReleaseLock(ctx, lockKey, value)
	require.NoError(t, err)
	assert.True(t, released)
}
