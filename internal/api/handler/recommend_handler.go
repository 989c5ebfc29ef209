package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"job-recommender/internal/constants"
	"job-recommender/internal/logger"
	"job-recommender/internal/metrics"
	"job-recommender/internal/recommend"
	"job-recommender/internal/tracing"
	"job-recommender/internal/types"
)

const (
	defaultLimit      = 10
	msgInternalError  = "Internal server error"
	msgEngineNotReady = "Recommendation engine not initialized"
)

// Recommender 推荐引擎对外暴露的能力
type Recommender interface {
	IsReady() bool
	GetRecommendations(ctx context.Context, userID int64, limit int, includeReasons bool) ([]types.RecommendationScore, error)
	GetUserProfileDebug(ctx context.Context, userID int64) (*types.UserProfileDebug, error)
	GetTotalActiveJobs(ctx context.Context) (int64, error)
	GetAlgorithmInfo() recommend.AlgorithmInfo
	RetrainModels(ctx context.Context) error
}

// JobReader 职位详情与投递历史查询
type JobReader interface {
	GetJobDetails(ctx context.Context, jobID int64) (*types.JobDetails, error)
	GetUserApplicationHistory(ctx context.Context, userID int64) ([]types.ApplicationRecord, error)
}

// Pinger 数据库连通性检查
type Pinger interface {
	Ping(ctx context.Context) error
}

// RecommendationRequest POST /recommendations 请求体
type RecommendationRequest struct {
	UserID         *int64 `json:"user_id" validate:"required"`
	Limit          *int   `json:"limit" validate:"omitempty,min=1,max=100"`
	IncludeReasons *bool  `json:"include_reasons"`
}

// RecommendationResponse POST /recommendations 响应体
type RecommendationResponse struct {
	Success           bool                        `json:"success"`
	Message           string                      `json:"message"`
	UserID            int64                       `json:"user_id"`
	TotalJobsAnalyzed int64                       `json:"total_jobs_analyzed"`
	Recommendations   []types.RecommendationScore `json:"recommendations"`
	AlgorithmInfo     recommend.AlgorithmInfo     `json:"algorithm_info"`
	ProcessingTimeMs  float64                     `json:"processing_time_ms"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status            string `json:"status"`
	Service           string `json:"service"`
	Version           string `json:"version"`
	Timestamp         string `json:"timestamp"`
	DatabaseConnected bool   `json:"database_connected"`
	MLModelsLoaded    bool   `json:"ml_models_loaded"`
}

// RecommendHandler 推荐服务的HTTP处理器
type RecommendHandler struct {
	engine   Recommender
	jobs     JobReader
	db       Pinger
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewRecommendHandler 创建处理器，jobs 和 db 可为 nil
func NewRecommendHandler(engine Recommender, jobs JobReader, db Pinger) *RecommendHandler {
	return &RecommendHandler{
		engine:   engine,
		jobs:     jobs,
		db:       db,
		validate: validator.New(),
		logger:   logger.Component("recommend-handler"),
	}
}

// HandleHealth 健康检查
// GET / 与 GET /health
func (h *RecommendHandler) HandleHealth(ctx context.Context, c *app.RequestContext) {
	dbConnected := false
	if h.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		dbConnected = h.db.Ping(pingCtx) == nil
		cancel()
	}

	c.JSON(consts.StatusOK, HealthResponse{
		Status:            "healthy",
		Service:           constants.ServiceName,
		Version:           constants.AlgorithmVersion,
		Timestamp:         time.Now().Format(time.RFC3339Nano),
		DatabaseConnected: dbConnected,
		MLModelsLoaded:    h.engine.IsReady(),
	})
}

// HandleRecommendations 生成个性化职位推荐
// POST /recommendations
func (h *RecommendHandler) HandleRecommendations(ctx context.Context, c *app.RequestContext) {
	start := time.Now()

	var req RecommendationRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		h.writeError(ctx, c, consts.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.writeError(ctx, c, consts.StatusBadRequest, validationMessage(err))
		return
	}

	userID := *req.UserID
	limit := defaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	includeReasons := true
	if req.IncludeReasons != nil {
		includeReasons = *req.IncludeReasons
	}

	log := h.requestLogger(ctx).With().Int64("user_id", userID).Logger()
	log.Info().Int("limit", limit).Msg("开始生成推荐")

	recs, err := h.engine.GetRecommendations(ctx, userID, limit, includeReasons)
	if err != nil {
		metrics.ObserveRecommendation(outcome(err), time.Since(start))
		h.writeEngineError(ctx, c, err)
		return
	}

	total, err := h.engine.GetTotalActiveJobs(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("统计在招职位失败，total_jobs_analyzed 按0返回")
		total = 0
	}

	elapsed := time.Since(start)
	metrics.ObserveRecommendation(outcome(nil), elapsed)
	log.Info().Int("count", len(recs)).Float64("duration_ms", msSince(elapsed)).Msg("推荐生成完成")

	if recs == nil {
		recs = []types.RecommendationScore{}
	}
	c.JSON(consts.StatusOK, RecommendationResponse{
		Success:           true,
		Message:           fmt.Sprintf("Generated %d personalized job recommendations", len(recs)),
		UserID:            userID,
		TotalJobsAnalyzed: total,
		Recommendations:   recs,
		AlgorithmInfo:     h.engine.GetAlgorithmInfo(),
		ProcessingTimeMs:  msSince(elapsed),
	})
}

// HandleUserProfile 查看用户画像摘要
// GET /user/:user_id/profile
func (h *RecommendHandler) HandleUserProfile(ctx context.Context, c *app.RequestContext) {
	userID, ok := h.pathID(ctx, c, "user_id")
	if !ok {
		return
	}

	profile, err := h.engine.GetUserProfileDebug(ctx, userID)
	if err != nil {
		h.writeEngineError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"success": true,
		"user_id": userID,
		"profile": profile,
	})
}

// HandleActiveJobsCount 在招职位数量
// GET /jobs/active/count
func (h *RecommendHandler) HandleActiveJobsCount(ctx context.Context, c *app.RequestContext) {
	count, err := h.engine.GetTotalActiveJobs(ctx)
	if err != nil {
		h.writeEngineError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"success":           true,
		"active_jobs_count": count,
	})
}

// HandleJobDetails 职位详情
// GET /jobs/:job_id
func (h *RecommendHandler) HandleJobDetails(ctx context.Context, c *app.RequestContext) {
	jobID, ok := h.pathID(ctx, c, "job_id")
	if !ok {
		return
	}
	if h.jobs == nil {
		h.writeError(ctx, c, consts.StatusServiceUnavailable, "job store not configured")
		return
	}

	job, err := h.jobs.GetJobDetails(ctx, jobID)
	if err != nil {
		h.writeEngineError(ctx, c, err)
		return
	}
	if job == nil {
		h.writeError(ctx, c, consts.StatusNotFound, fmt.Sprintf("Job %d not found", jobID))
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"success": true,
		"job":     job,
	})
}

// HandleApplications 用户投递历史
// GET /user/:user_id/applications
func (h *RecommendHandler) HandleApplications(ctx context.Context, c *app.RequestContext) {
	userID, ok := h.pathID(ctx, c, "user_id")
	if !ok {
		return
	}
	if h.jobs == nil {
		h.writeError(ctx, c, consts.StatusServiceUnavailable, "job store not configured")
		return
	}

	apps, err := h.jobs.GetUserApplicationHistory(ctx, userID)
	if err != nil {
		h.writeEngineError(ctx, c, err)
		return
	}
	if apps == nil {
		apps = []types.ApplicationRecord{}
	}
	c.JSON(consts.StatusOK, utils.H{
		"success":      true,
		"user_id":      userID,
		"applications": apps,
	})
}

// HandleRetrain 重新加载支撑数据
// POST /retrain
func (h *RecommendHandler) HandleRetrain(ctx context.Context, c *app.RequestContext) {
	log := h.requestLogger(ctx)
	log.Info().Msg("开始重新加载推荐数据...")

	if err := h.engine.RetrainModels(ctx); err != nil {
		h.writeEngineError(ctx, c, err)
		return
	}

	log.Info().Msg("推荐数据重新加载完成")
	c.JSON(consts.StatusOK, utils.H{
		"success": true,
		"message": "Models retrained successfully",
	})
}

// HandleAlgorithmInfo 算法描述
// GET /algorithm
func (h *RecommendHandler) HandleAlgorithmInfo(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{
		"success":        true,
		"algorithm_info": h.engine.GetAlgorithmInfo(),
	})
}

func (h *RecommendHandler) pathID(ctx context.Context, c *app.RequestContext, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		h.writeError(ctx, c, consts.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

// writeEngineError 按错误类型映射HTTP状态码
func (h *RecommendHandler) writeEngineError(ctx context.Context, c *app.RequestContext, err error) {
	log := h.requestLogger(ctx)

	switch {
	case errors.Is(err, recommend.ErrUnknownUser):
		msg := err.Error()
		var engineErr *recommend.EngineError
		if errors.As(err, &engineErr) {
			msg = engineErr.UserMessage()
		}
		log.Warn().Err(err).Msg("用户数据缺失")
		h.writeError(ctx, c, consts.StatusBadRequest, msg)
	case errors.Is(err, recommend.ErrNotReady):
		log.Warn().Err(err).Msg("推荐引擎未就绪")
		h.writeError(ctx, c, consts.StatusServiceUnavailable, msgEngineNotReady)
	case errors.Is(err, recommend.ErrRetrainBusy):
		log.Warn().Err(err).Msg("重新加载正在其他实例执行")
		h.writeError(ctx, c, consts.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Msg("请求已取消或超时")
		h.writeError(ctx, c, consts.StatusServiceUnavailable, "request cancelled")
	default:
		log.Error().Err(err).Msg("处理请求失败")
		h.writeError(ctx, c, consts.StatusInternalServerError, msgInternalError)
	}
}

func (h *RecommendHandler) writeError(ctx context.Context, c *app.RequestContext, status int, msg string) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		tracing.RecordHTTPError(span, errors.New(msg), status)
	}
	c.JSON(status, utils.H{
		"success":     false,
		"error":       msg,
		"status_code": status,
	})
}

// requestLogger 优先使用请求ID中间件注入的日志记录器
func (h *RecommendHandler) requestLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &h.logger
}

// outcome 推荐请求结果分类，用作指标标签
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, recommend.ErrNotReady):
		return "not_ready"
	case errors.Is(err, recommend.ErrUnknownUser):
		return "unknown_user"
	default:
		return "error"
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Field() {
	case "UserID":
		return "user_id is required"
	case "Limit":
		return "limit must be between 1 and 100"
	}
	return fmt.Sprintf("invalid field %s", fe.Field())
}

func msSince(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
