// Package recommend 混合职位推荐引擎：
// 特征构建、内容评分、知识评分、混合组合与后处理，以及引擎生命周期。
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"job-recommender/internal/config"
	"job-recommender/internal/constants"
	"job-recommender/internal/logger"
	"job-recommender/internal/metrics"
	"job-recommender/internal/similarity"
	"job-recommender/internal/tracing"
	"job-recommender/internal/types"
)

var engineTracer = otel.Tracer("job-recommender/recommend")

// BackendFactory 初始化时创建相似度策略
type BackendFactory func(ctx context.Context) similarity.Backend

func staticBackend(b similarity.Backend) BackendFactory {
	return func(context.Context) similarity.Backend { return b }
}

// supportData 课程类别映射与热门职位，重新加载时整体替换
type supportData struct {
	mapping      map[string][]string
	popular      []int64
	popularIndex map[int64]int
}

func newSupportData(mapping map[string][]string, popular []int64) *supportData {
	if mapping == nil {
		mapping = map[string][]string{}
	}
	index := make(map[int64]int, len(popular))
	for i, id := range popular {
		if _, seen := index[id]; !seen {
			index[id] = i
		}
	}
	return &supportData{mapping: mapping, popular: popular, popularIndex: index}
}

// MLModels 相似度策略的可用情况
type MLModels struct {
	EmbeddingModel   bool `json:"embedding_model"`
	TFIDF            bool `json:"tfidf"`
	LexicalAvailable bool `json:"lexical_available"`
}

// AlgorithmInfo 算法描述，仅用于观测与调试
type AlgorithmInfo struct {
	Version        string         `json:"version"`
	Type           string         `json:"type"`
	Features       []string       `json:"features"`
	Weights        HybridWeights  `json:"weights"`
	ContentWeights ContentWeights `json:"content_weights"`
	MLModels       MLModels       `json:"ml_models"`
	Backend        string         `json:"backend"`
}

// Engine 推荐引擎
type Engine struct {
	recCfg  config.RecommendationConfig
	simCfg  config.SimilarityConfig
	perfCfg config.PerformanceConfig
	data    DataAccess

	backendFactory BackendFactory
	backend        similarity.Backend

	content   *ContentScorer
	knowledge *KnowledgeScorer
	composer  *HybridComposer
	post      *PostProcessor

	support   atomic.Pointer[supportData]
	ready     atomic.Bool
	initMu    sync.Mutex
	admission *semaphore.Weighted

	locker  Locker
	lockTTL time.Duration

	analyticsTimeout time.Duration
	analyticsMu      sync.Mutex
	analyticsClosed  bool
	analyticsWG      sync.WaitGroup

	logger zerolog.Logger
}

// NewEngine 创建引擎，需调用 Initialize 后才能提供推荐
func NewEngine(cfg *config.Config, data DataAccess, opts ...Option) *Engine {
	rc := cfg.Recommendation
	e := &Engine{
		recCfg:           rc,
		simCfg:           cfg.Similarity,
		perfCfg:          cfg.Performance,
		data:             data,
		lockTTL:          30 * time.Second,
		analyticsTimeout: 5 * time.Second,
		logger:           logger.Component("engine"),
	}
	e.backendFactory = func(ctx context.Context) similarity.Backend {
		return similarity.Select(ctx, e.simCfg, nil)
	}
	for _, opt := range opts {
		opt(e)
	}

	e.content = NewContentScorer(e.contentWeights(), e.logger)
	e.composer = NewHybridComposer(e.hybridWeights(), rc.MinRecommendationScore)
	e.post = NewPostProcessor(rc.EnablePopularityBoost, rc.EnableDiversityBoost)

	maxUsers := cfg.Performance.MaxConcurrentUsers
	if maxUsers < 1 {
		maxUsers = 1
	}
	e.admission = semaphore.NewWeighted(int64(maxUsers))
	e.support.Store(newSupportData(nil, nil))
	return e
}

func (e *Engine) contentWeights() ContentWeights {
	return ContentWeights{
		Skills:     e.recCfg.SkillsWeight,
		Education:  e.recCfg.EducationWeight,
		Experience: e.recCfg.ExperienceWeight,
		Course:     e.recCfg.CourseWeight,
		Location:   e.recCfg.LocationWeight,
	}
}

func (e *Engine) hybridWeights() HybridWeights {
	return HybridWeights{Content: e.recCfg.ContentWeight, Knowledge: e.recCfg.KnowledgeWeight}
}

// Initialize 选定相似度策略并加载支撑数据，重复调用无副作用
func (e *Engine) Initialize(ctx context.Context) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.ready.Load() {
		return nil
	}

	ctx, span := engineTracer.Start(ctx, "Engine.Initialize")
	defer span.End()

	start := time.Now()
	backend := e.backendFactory(ctx)
	if backend == nil {
		err := errors.New("相似度策略创建失败")
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return err
	}
	e.backend = backend
	e.knowledge = NewKnowledgeScorer(backend)

	e.support.Store(e.loadSupportData(ctx))
	e.ready.Store(true)
	metrics.SetEngineReady(true)

	span.SetAttributes(attribute.String("backend", backend.Name()))
	e.logger.Info().
		Str("backend", backend.Name()).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("推荐引擎初始化完成")
	return nil
}

// loadSupportData 并发加载课程映射与热门职位，失败时使用空数据
func (e *Engine) loadSupportData(ctx context.Context) *supportData {
	var (
		mapping map[string][]string
		popular []int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := e.data.GetJobCategoriesMapping(gctx)
		if err != nil {
			e.logger.Warn().Err(err).Msg("加载课程类别映射失败，使用空映射")
			return nil
		}
		mapping = m
		e.logger.Info().Int("count", len(m)).Msg("课程类别映射已加载")
		return nil
	})
	if e.recCfg.EnablePopularityBoost {
		g.Go(func() error {
			p, err := e.data.GetPopularJobs(gctx, e.recCfg.PopularJobsLimit)
			if err != nil {
				e.logger.Warn().Err(err).Msg("加载热门职位失败，使用空列表")
				return nil
			}
			popular = p
			e.logger.Info().Int("count", len(p)).Msg("热门职位已加载")
			return nil
		})
	}
	_ = g.Wait()

	return newSupportData(mapping, popular)
}

// IsReady 引擎是否已初始化
func (e *Engine) IsReady() bool {
	return e.ready.Load()
}

// BackendName 当前相似度策略名称，未初始化时为空
func (e *Engine) BackendName() string {
	if !e.IsReady() {
		return ""
	}
	return e.backend.Name()
}

// GetRecommendations 为用户生成排序后的推荐列表
func (e *Engine) GetRecommendations(ctx context.Context, userID int64, limit int, includeReasons bool) ([]types.RecommendationScore, error) {
	if !e.IsReady() {
		return nil, NewNotReadyError("get_recommendations")
	}

	ctx, span := engineTracer.Start(ctx, "Engine.GetRecommendations")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_id", userID), attribute.Int("limit", limit))

	if err := e.admission.Acquire(ctx, 1); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeTimeout)
		return nil, fmt.Errorf("等待推荐计算名额失败: %w", err)
	}
	defer e.admission.Release(1)

	user, err := e.buildUserProfile(ctx, userID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	jobs, err := e.data.GetActiveJobs(ctx, e.recCfg.MaxRecommendations)
	if err != nil {
		e.logger.Warn().Err(err).Int64("user_id", userID).Msg("获取在招职位失败，返回空推荐")
		return []types.RecommendationScore{}, nil
	}
	if len(jobs) == 0 {
		return []types.RecommendationScore{}, nil
	}

	support := e.support.Load()
	recs := e.scoreJobs(ctx, user, jobs, support, includeReasons)
	e.post.Apply(recs, support, includeReasons)

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].HybridScore > recs[j].HybridScore
	})
	if limit >= 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	if len(recs) > 0 {
		e.logRecommendations(userID, recs)
	}

	metrics.JobsScoredTotal.Add(float64(len(jobs)))
	span.SetAttributes(attribute.Int("jobs", len(jobs)), attribute.Int("count", len(recs)))
	e.logger.Info().Int64("user_id", userID).Int("count", len(recs)).Msg("推荐生成完成")
	return recs, nil
}

// buildUserProfile 档案读取失败按用户不存在处理
func (e *Engine) buildUserProfile(ctx context.Context, userID int64) (*types.UserProfile, error) {
	profile, err := e.data.GetUserProfile(ctx, userID)
	if err != nil {
		e.logger.Warn().Err(err).Int64("user_id", userID).Msg("读取用户档案失败")
		return nil, NewUnknownUserError("build_user_profile", userID)
	}
	if profile == nil {
		return nil, NewUnknownUserError("build_user_profile", userID)
	}

	resume, err := e.data.GetUserResume(ctx, userID, true)
	if err != nil {
		e.logger.Warn().Err(err).Int64("user_id", userID).Msg("读取简历失败，按无简历处理")
		resume = nil
	}
	return BuildUserProfile(profile, resume), nil
}

// scoreJobs 并行评分，结果保持职位原始顺序
func (e *Engine) scoreJobs(ctx context.Context, user *types.UserProfile, jobs []types.JobRecord,
	support *supportData, includeReasons bool) []types.RecommendationScore {

	slots := make([]*types.RecommendationScore, len(jobs))

	workers := e.perfCfg.ScoringWorkers
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)

	for i := range jobs {
		g.Go(func() error {
			job := BuildJobProfile(jobs[i])
			if rec, ok := e.scoreJob(ctx, user, &job, support, includeReasons); ok {
				slots[i] = &rec
			}
			return nil
		})
	}
	_ = g.Wait()

	recs := make([]types.RecommendationScore, 0, len(jobs))
	for _, rec := range slots {
		if rec != nil {
			recs = append(recs, *rec)
		}
	}
	return recs
}

// scoreJob 单个职位评分异常时跳过该职位
func (e *Engine) scoreJob(ctx context.Context, user *types.UserProfile, job *types.JobProfile,
	support *supportData, includeReasons bool) (rec types.RecommendationScore, ok bool) {

	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn().Int64("job_id", job.JobID).Interface("panic", r).Msg("职位评分异常，已跳过")
			rec, ok = types.RecommendationScore{}, false
		}
	}()

	content, contentReasons := e.content.Score(user, job, support.mapping)
	knowledge, knowledgeReasons := e.knowledge.Score(ctx, user, job)
	return e.composer.Compose(user, job, content, contentReasons, knowledge, knowledgeReasons, includeReasons)
}

// logRecommendations 异步记录推荐结果，失败只记日志
func (e *Engine) logRecommendations(userID int64, recs []types.RecommendationScore) {
	jobIDs := make([]int64, len(recs))
	scores := make([]float64, len(recs))
	for i, r := range recs {
		jobIDs[i] = r.JobID
		scores[i] = r.HybridScore
	}

	e.analyticsMu.Lock()
	if e.analyticsClosed {
		e.analyticsMu.Unlock()
		e.logger.Warn().Int64("user_id", userID).Msg("引擎已关闭，跳过记录推荐结果")
		return
	}
	e.analyticsWG.Add(1)
	e.analyticsMu.Unlock()

	go func() {
		defer e.analyticsWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.analyticsTimeout)
		defer cancel()
		if err := e.data.LogRecommendationRequest(ctx, userID, jobIDs, scores); err != nil {
			e.logger.Warn().Err(err).Int64("user_id", userID).Msg("记录推荐结果失败")
		}
	}()
}

// GetUserProfileDebug 返回用户画像摘要
func (e *Engine) GetUserProfileDebug(ctx context.Context, userID int64) (*types.UserProfileDebug, error) {
	user, err := e.buildUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	debug := &types.UserProfileDebug{
		UserID:             user.UserID,
		Name:               user.FirstName + " " + user.LastName,
		StudentType:        user.StudentType,
		Courses:            user.Courses,
		ProfileCompleted:   user.ProfileCompleted,
		HasCompletedResume: user.HasCompletedResume(),
	}
	if debug.Courses == nil {
		debug.Courses = []types.CourseEnrollment{}
	}
	if r := user.Resume; r != nil {
		debug.SkillsCount = len(r.Skills)
		debug.WorkExperienceCount = len(r.WorkExperience)
		debug.EducationCount = len(r.Education)
	}
	return debug, nil
}

// GetTotalActiveJobs 在招职位总数
func (e *Engine) GetTotalActiveJobs(ctx context.Context) (int64, error) {
	return e.data.GetTotalActiveJobsCount(ctx)
}

// GetAlgorithmInfo 返回算法描述
func (e *Engine) GetAlgorithmInfo() AlgorithmInfo {
	features := []string{
		"content_based_filtering",
		"skill_matching",
		"education_matching",
		"experience_matching",
		"course_category_mapping",
	}

	backend := e.BackendName()
	switch backend {
	case similarity.NameEmbedding:
		features = append(features, "semantic_similarity_bert")
	case similarity.NameTFIDF:
		features = append(features, "tfidf_similarity")
	}
	if e.recCfg.EnablePopularityBoost {
		features = append(features, "popularity_boost")
	}
	if e.recCfg.EnableDiversityBoost {
		features = append(features, "diversity_boost")
	}

	return AlgorithmInfo{
		Version:        constants.AlgorithmVersion,
		Type:           "hybrid",
		Features:       features,
		Weights:        e.hybridWeights(),
		ContentWeights: e.contentWeights(),
		MLModels: MLModels{
			EmbeddingModel:   backend == similarity.NameEmbedding,
			TFIDF:            backend == similarity.NameTFIDF,
			LexicalAvailable: e.simCfg.LexicalEnabled,
		},
		Backend: backend,
	}
}

// RetrainModels 重新加载课程映射与热门职位并清空相似度缓存
// 配置了分布式锁时，其他实例持有锁期间返回 ErrRetrainBusy；锁服务出错时不加锁执行
func (e *Engine) RetrainModels(ctx context.Context) error {
	if !e.IsReady() {
		return NewNotReadyError("retrain_models")
	}

	ctx, span := engineTracer.Start(ctx, "Engine.RetrainModels")
	defer span.End()

	if e.locker != nil {
		lockValue, err := e.locker.AcquireLock(ctx, constants.KeyRetrainLock, e.lockTTL)
		switch {
		case err != nil:
			tracing.RecordError(span, err, tracing.ErrorTypeRedis)
			e.logger.Warn().Err(err).Msg("获取重新加载锁失败，不加锁继续")
		case lockValue == "":
			return ErrRetrainBusy
		default:
			defer func() {
				if _, err := e.locker.ReleaseLock(context.WithoutCancel(ctx), constants.KeyRetrainLock, lockValue); err != nil {
					e.logger.Warn().Err(err).Msg("释放重新加载锁失败")
				}
			}()
		}
	}

	e.support.Store(e.loadSupportData(ctx))
	e.backend.Reset()
	e.logger.Info().Str("backend", e.backend.Name()).Msg("支撑数据已重新加载，相似度缓存已清空")
	return nil
}

// Close 停止接收新的异步记录并等待未完成的记录
func (e *Engine) Close() {
	e.ready.Store(false)
	metrics.SetEngineReady(false)

	e.analyticsMu.Lock()
	e.analyticsClosed = true
	e.analyticsMu.Unlock()
	e.analyticsWG.Wait()
}
