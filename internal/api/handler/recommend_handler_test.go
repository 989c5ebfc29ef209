package handler_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"job-recommender/internal/api/handler"
	"job-recommender/internal/constants"
	"job-recommender/internal/recommend"
	"job-recommender/internal/types"
)

type mockRecommender struct {
	mock.Mock
}

func (m *mockRecommender) IsReady() bool {
	return m.Called().Bool(0)
}

func (m *mockRecommender) GetRecommendations(ctx context.Context, userID int64, limit int, includeReasons bool) ([]types.RecommendationScore, error) {
	args := m.Called(userID, limit, includeReasons)
	recs, _ := args.Get(0).([]types.RecommendationScore)
	return recs, args.Error(1)
}

func (m *mockRecommender) GetUserProfileDebug(ctx context.Context, userID int64) (*types.UserProfileDebug, error) {
	args := m.Called(userID)
	p, _ := args.Get(0).(*types.UserProfileDebug)
	return p, args.Error(1)
}

func (m *mockRecommender) GetTotalActiveJobs(ctx context.Context) (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRecommender) GetAlgorithmInfo() recommend.AlgorithmInfo {
	return m.Called().Get(0).(recommend.AlgorithmInfo)
}

func (m *mockRecommender) RetrainModels(ctx context.Context) error {
	return m.Called().Error(0)
}

type mockJobs struct {
	mock.Mock
}

func (m *mockJobs) GetJobDetails(ctx context.Context, jobID int64) (*types.JobDetails, error) {
	args := m.Called(jobID)
	d, _ := args.Get(0).(*types.JobDetails)
	return d, args.Error(1)
}

func (m *mockJobs) GetUserApplicationHistory(ctx context.Context, userID int64) ([]types.ApplicationRecord, error) {
	args := m.Called(userID)
	apps, _ := args.Get(0).([]types.ApplicationRecord)
	return apps, args.Error(1)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

var testAlgorithmInfo = recommend.AlgorithmInfo{Version: "2.0.0", Type: "hybrid", Backend: "tfidf"}

func newTestServer(engine handler.Recommender, jobs handler.JobReader, db handler.Pinger) *server.Hertz {
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	rh := handler.NewRecommendHandler(engine, jobs, db)
	h.Use(handler.RequestID())
	h.GET("/health", rh.HandleHealth)
	h.POST("/recommendations", rh.HandleRecommendations)
	h.GET("/user/:user_id/profile", rh.HandleUserProfile)
	h.GET("/user/:user_id/applications", rh.HandleApplications)
	h.GET("/jobs/active/count", rh.HandleActiveJobsCount)
	h.GET("/jobs/:job_id", rh.HandleJobDetails)
	h.POST("/retrain", rh.HandleRetrain)
	h.GET("/algorithm", rh.HandleAlgorithmInfo)
	return h
}

func postJSON(h *server.Hertz, path, body string, headers ...ut.Header) *ut.ResponseRecorder {
	headers = append(headers, ut.Header{Key: "Content-Type", Value: "application/json"})
	return ut.PerformRequest(h.Engine, http.MethodPost, path,
		&ut.Body{Body: bytes.NewBufferString(body), Len: len(body)}, headers...)
}

func get(h *server.Hertz, path string) *ut.ResponseRecorder {
	return ut.PerformRequest(h.Engine, http.MethodGet, path, nil)
}

func decode(t *testing.T, resp *ut.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

func assertErrorBody(t *testing.T, resp *ut.ResponseRecorder, status int, msg string) {
	t.Helper()
	require.Equal(t, status, resp.Code)
	body := decode(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, float64(status), body["status_code"])
	if msg != "" {
		assert.Equal(t, msg, body["error"])
	}
}

func TestHealth(t *testing.T) {
	engine := &mockRecommender{}
	engine.On("IsReady").Return(true)
	h := newTestServer(engine, nil, pingerFunc(func(context.Context) error { return nil }))

	resp := get(h, "/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var health handler.HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, constants.ServiceName, health.Service)
	assert.Equal(t, "2.0.0", health.Version)
	assert.True(t, health.DatabaseConnected)
	assert.True(t, health.MLModelsLoaded)
	_, err := time.Parse(time.RFC3339Nano, health.Timestamp)
	assert.NoError(t, err)
}

func TestHealthDatabaseDown(t *testing.T) {
	engine := &mockRecommender{}
	engine.On("IsReady").Return(false)
	h := newTestServer(engine, nil, pingerFunc(func(context.Context) error { return errors.New("dial tcp: refused") }))

	body := decode(t, get(h, "/health"))
	assert.Equal(t, false, body["database_connected"])
	assert.Equal(t, false, body["ml_models_loaded"])
}

func TestRecommendationsDefaults(t *testing.T) {
	recs := []types.RecommendationScore{
		{JobID: 3, HybridScore: 0.81, Reasons: []string{constants.ReasonPopularJob}, JobTitle: "Go developer"},
		{JobID: 1, HybridScore: 0.5, Reasons: []string{}},
	}
	engine := &mockRecommender{}
	engine.On("GetRecommendations", int64(7), 10, true).Return(recs, nil)
	engine.On("GetTotalActiveJobs").Return(int64(42), nil)
	engine.On("GetAlgorithmInfo").Return(testAlgorithmInfo)
	h := newTestServer(engine, nil, nil)

	resp := postJSON(h, "/recommendations", `{"user_id": 7}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.NotEmpty(t, resp.Header().Get(handler.HeaderRequestID))

	var out handler.RecommendationResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Equal(t, "Generated 2 personalized job recommendations", out.Message)
	assert.Equal(t, int64(7), out.UserID)
	assert.Equal(t, int64(42), out.TotalJobsAnalyzed)
	require.Len(t, out.Recommendations, 2)
	assert.Equal(t, int64(3), out.Recommendations[0].JobID)
	assert.Equal(t, "hybrid", out.AlgorithmInfo.Type)
	assert.GreaterOrEqual(t, out.ProcessingTimeMs, 0.0)
	engine.AssertExpectations(t)
}

func TestRecommendationsExplicitOptions(t *testing.T) {
	engine := &mockRecommender{}
	engine.On("GetRecommendations", int64(7), 5, false).Return(nil, nil)
	engine.On("GetTotalActiveJobs").Return(int64(0), nil)
	engine.On("GetAlgorithmInfo").Return(testAlgorithmInfo)
	h := newTestServer(engine, nil, nil)

	resp := postJSON(h, "/recommendations", `{"user_id": 7, "limit": 5, "include_reasons": false}`,
		ut.Header{Key: handler.HeaderRequestID, Value: "req-123"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "req-123", resp.Header().Get(handler.HeaderRequestID))

	body := decode(t, resp)
	assert.Equal(t, "Generated 0 personalized job recommendations", body["message"])
	assert.Equal(t, []any{}, body["recommendations"])
	engine.AssertExpectations(t)
}

func TestRecommendationsCountFailureStillReturnsResults(t *testing.T) {
	recs := []types.RecommendationScore{{JobID: 4, HybridScore: 0.6, Reasons: []string{}}}
	engine := &mockRecommender{}
	engine.On("GetRecommendations", int64(7), 10, true).Return(recs, nil)
	engine.On("GetTotalActiveJobs").Return(int64(0), errors.New("db down"))
	engine.On("GetAlgorithmInfo").Return(testAlgorithmInfo)
	h := newTestServer(engine, nil, nil)

	resp := postJSON(h, "/recommendations", `{"user_id": 7}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var out handler.RecommendationResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Equal(t, int64(0), out.TotalJobsAnalyzed)
	require.Len(t, out.Recommendations, 1)
	assert.Equal(t, int64(4), out.Recommendations[0].JobID)
	engine.AssertExpectations(t)
}

func TestRecommendationsValidation(t *testing.T) {
	engine := &mockRecommender{}
	h := newTestServer(engine, nil, nil)

	assertErrorBody(t, postJSON(h, "/recommendations", `{"limit": 5}`), http.StatusBadRequest, "user_id is required")
	assertErrorBody(t, postJSON(h, "/recommendations", `{"user_id": 1, "limit": 101}`), http.StatusBadRequest, "limit must be between 1 and 100")
	assertErrorBody(t, postJSON(h, "/recommendations", `{"user_id":`), http.StatusBadRequest, "")
	engine.AssertNotCalled(t, "GetRecommendations", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecommendationsErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"unknown user", recommend.NewUnknownUserError("get_recommendations", 9), http.StatusBadRequest, "No profile found for user 9"},
		{"not ready", recommend.NewNotReadyError("get_recommendations"), http.StatusServiceUnavailable, "Recommendation engine not initialized"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockRecommender{}
			engine.On("GetRecommendations", int64(9), 10, true).Return(nil, tt.err)
			h := newTestServer(engine, nil, nil)

			assertErrorBody(t, postJSON(h, "/recommendations", `{"user_id": 9}`), tt.status, tt.msg)
			engine.AssertNotCalled(t, "GetTotalActiveJobs")
		})
	}
}

func TestUserProfile(t *testing.T) {
	engine := &mockRecommender{}
	engine.On("GetUserProfileDebug", int64(4)).Return(&types.UserProfileDebug{UserID: 4, Name: "Ana Cruz", SkillsCount: 3}, nil)
	engine.On("GetUserProfileDebug", int64(5)).Return(nil, recommend.NewUnknownUserError("get_user_profile_debug", 5))
	h := newTestServer(engine, nil, nil)

	resp := get(h, "/user/4/profile")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	profile := body["profile"].(map[string]any)
	assert.Equal(t, "Ana Cruz", profile["name"])
	assert.Equal(t, float64(3), profile["skills_count"])

	assertErrorBody(t, get(h, "/user/5/profile"), http.StatusBadRequest, "No profile found for user 5")
	assertErrorBody(t, get(h, "/user/abc/profile"), http.StatusBadRequest, "invalid user_id")
}

func TestActiveJobsCount(t *testing.T) {
	engine := &mockRecommender{}
	engine.On("GetTotalActiveJobs").Return(int64(12), nil)
	h := newTestServer(engine, nil, nil)

	body := decode(t, get(h, "/jobs/active/count"))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(12), body["active_jobs_count"])
}

func TestJobDetails(t *testing.T) {
	jobs := &mockJobs{}
	details := &types.JobDetails{Status: "active", AverageRating: 4.5, RatingCount: 2}
	details.ID = 100
	details.Title = "Go developer"
	jobs.On("GetJobDetails", int64(100)).Return(details, nil)
	jobs.On("GetJobDetails", int64(101)).Return(nil, nil)
	h := newTestServer(&mockRecommender{}, jobs, nil)

	resp := get(h, "/jobs/100")
	require.Equal(t, http.StatusOK, resp.Code)
	job := decode(t, resp)["job"].(map[string]any)
	assert.Equal(t, "Go developer", job["title"])
	assert.Equal(t, 4.5, job["average_rating"])

	assertErrorBody(t, get(h, "/jobs/101"), http.StatusNotFound, "Job 101 not found")
}

func TestApplications(t *testing.T) {
	jobs := &mockJobs{}
	jobs.On("GetUserApplicationHistory", int64(4)).Return(nil, nil)
	jobs.On("GetUserApplicationHistory", int64(5)).Return(nil, errors.New("db down"))
	h := newTestServer(&mockRecommender{}, jobs, nil)

	body := decode(t, get(h, "/user/4/applications"))
	assert.Equal(t, []any{}, body["applications"])

	assertErrorBody(t, get(h, "/user/5/applications"), http.StatusInternalServerError, "Internal server error")
}

func TestRetrain(t *testing.T) {
	engine := &mockRecommender{}
	engine.On("RetrainModels").Return(nil).Once()
	engine.On("RetrainModels").Return(recommend.ErrRetrainBusy).Once()
	h := newTestServer(engine, nil, nil)

	resp := postJSON(h, "/retrain", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Models retrained successfully", decode(t, resp)["message"])

	assertErrorBody(t, postJSON(h, "/retrain", ""), http.StatusConflict, "")
}

func TestAlgorithmInfo(t *testing.T) {
	engine := &mockRecommender{}
	engine.On("GetAlgorithmInfo").Return(testAlgorithmInfo)
	h := newTestServer(engine, nil, nil)

	info := decode(t, get(h, "/algorithm"))["algorithm_info"].(map[string]any)
	assert.Equal(t, "2.0.0", info["version"])
	assert.Equal(t, "tfidf", info["backend"])
}
