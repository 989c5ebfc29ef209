package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"job-recommender/internal/constants"
	"job-recommender/internal/logger"
	"job-recommender/internal/recommend"
	"job-recommender/internal/storage/models"
	"job-recommender/internal/types"
)

var _ recommend.DataAccess = (*RecommendRepository)(nil)

// RepositoryOptions 数据访问层配置
type RepositoryOptions struct {
	ExcludeExpiredJobs bool
	EventsExchange     string // 推荐下发事件的目标交换机
	IssuedRoutingKey   string
}

// RecommendRepository 基于门户库的推荐数据访问实现
type RecommendRepository struct {
	db     *gorm.DB
	opts   RepositoryOptions
	logger zerolog.Logger
}

// NewRecommendRepository 创建数据访问实现
func NewRecommendRepository(db *gorm.DB, opts RepositoryOptions) *RecommendRepository {
	return &RecommendRepository{
		db:     db,
		opts:   opts,
		logger: logger.Component("repository"),
	}
}

// jobColumns 职位字段，字符串列统一去掉 NULL
const jobColumns = `j.id, j.title,
	COALESCE(j.category, '') AS category,
	j.description, j.summary,
	COALESCE(j.location, '') AS location,
	COALESCE(j.work_type, '') AS work_type,
	COALESCE(j.work_arrangement, '') AS work_arrangement,
	COALESCE(j.experience_level, '') AS experience_level,
	j.min_salary AS salary_min, j.max_salary AS salary_max,
	j.created_at,
	COALESCE(cp.company_name, coord_p.first_name, 'Unknown') AS company_name,
	COUNT(DISTINCT ja.id) AS application_count`

// withOwnerAndApplications 关联发布方与投递记录
func withOwnerAndApplications(q *gorm.DB) *gorm.DB {
	return q.
		Joins("LEFT JOIN company_profiles cp ON j.created_by_type = 'company' AND j.created_by_id = cp.company_id").
		Joins("LEFT JOIN coordinator_profiles coord_p ON j.created_by_type = 'coordinator' AND j.created_by_id = coord_p.coordinator_id").
		Joins("LEFT JOIN job_applications ja ON j.id = ja.job_id")
}

// activeJobs 在招职位范围
func (r *RecommendRepository) activeJobs(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx).Table("jobs j").Where("j.status = ?", "active")
	if r.opts.ExcludeExpiredJobs {
		q = q.Where("j.application_deadline IS NULL OR j.application_deadline > CURDATE()")
	}
	return q
}

// GetUserProfile 读取用户档案及课程，用户不存在时返回 nil, nil
func (r *RecommendRepository) GetUserProfile(ctx context.Context, userID int64) (*types.ProfileRecord, error) {
	var row struct {
		UserID           int64
		FirstName        string
		LastName         string
		StudentType      string
		Age              *int
		ProfileCompleted bool
	}
	err := r.db.WithContext(ctx).
		Table("user_profiles").
		Select(`user_id, COALESCE(first_name, '') AS first_name, COALESCE(last_name, '') AS last_name,
			COALESCE(student_type, '') AS student_type, age, COALESCE(profile_completed, false) AS profile_completed`).
		Where("user_id = ?", userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error().Err(err).Int64("user_id", userID).Msg("读取用户档案失败")
		return nil, fmt.Errorf("读取用户档案失败: %w", err)
	}

	courses := make([]types.CourseEnrollment, 0)
	err = r.db.WithContext(ctx).
		Table("user_courses uc").
		Select("c.course_name AS course, COALESCE(uc.graduation_status, '') AS graduation_status").
		Joins("JOIN courses c ON uc.course_id = c.id").
		Where("uc.user_id = ?", userID).
		Order("uc.id").
		Scan(&courses).Error
	if err != nil {
		r.logger.Error().Err(err).Int64("user_id", userID).Msg("读取用户课程失败")
		return nil, fmt.Errorf("读取用户课程失败: %w", err)
	}
	return &types.ProfileRecord{
		UserID:           row.UserID,
		FirstName:        row.FirstName,
		LastName:         row.LastName,
		StudentType:      row.StudentType,
		Age:              row.Age,
		ProfileCompleted: row.ProfileCompleted,
		Courses:          courses,
	}, nil
}

// GetUserResume 读取最近更新的一份简历
func (r *RecommendRepository) GetUserResume(ctx context.Context, userID int64, onlyCompleted bool) (*types.ResumeRecord, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if onlyCompleted {
		q = q.Where("status = ?", types.ResumeStatusCompleted)
	}

	var resume models.Resume
	err := q.Order("updated_at DESC").Take(&resume).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error().Err(err).Int64("user_id", userID).Msg("读取简历失败")
		return nil, fmt.Errorf("读取简历失败: %w", err)
	}

	return &types.ResumeRecord{
		ID:                  resume.ID,
		UserID:              resume.UserID,
		Status:              resume.Status,
		ProfessionalSummary: resume.ProfessionalSummary,
		Skills:              resume.Skills,
		WorkExperience:      resume.WorkExperience,
		Education:           resume.Education,
		Languages:           resume.Languages,
		Hobbies:             resume.Hobbies,
		UpdatedAt:           resume.UpdatedAt,
	}, nil
}

// GetActiveJobs 在招职位，按发布时间倒序
func (r *RecommendRepository) GetActiveJobs(ctx context.Context, limit int) ([]types.JobRecord, error) {
	q := withOwnerAndApplications(r.activeJobs(ctx).Select(jobColumns)).
		Group("j.id").
		Order("j.created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	jobs := make([]types.JobRecord, 0)
	if err := q.Scan(&jobs).Error; err != nil {
		r.logger.Error().Err(err).Msg("读取在招职位失败")
		return nil, fmt.Errorf("读取在招职位失败: %w", err)
	}
	return jobs, nil
}

// GetJobCategoriesMapping 课程到职位类别的映射
func (r *RecommendRepository) GetJobCategoriesMapping(ctx context.Context) (map[string][]string, error) {
	var rows []models.JobCategory
	err := r.db.WithContext(ctx).
		Order("course_name, category_name").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("读取课程类别映射失败: %w", err)
	}

	mapping := make(map[string][]string)
	for _, row := range rows {
		mapping[row.CourseName] = append(mapping[row.CourseName], row.CategoryName)
	}
	return mapping, nil
}

// GetPopularJobs 按投递数排序的在招职位ID
func (r *RecommendRepository) GetPopularJobs(ctx context.Context, limit int) ([]int64, error) {
	q := r.activeJobs(ctx).
		Joins("LEFT JOIN job_applications ja ON j.id = ja.job_id").
		Group("j.id").
		Order("COUNT(ja.id) DESC, j.created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	ids := make([]int64, 0)
	if err := q.Pluck("j.id", &ids).Error; err != nil {
		return nil, fmt.Errorf("读取热门职位失败: %w", err)
	}
	return ids, nil
}

// GetTotalActiveJobsCount 在招职位总数
func (r *RecommendRepository) GetTotalActiveJobsCount(ctx context.Context) (int64, error) {
	var count int64
	if err := r.activeJobs(ctx).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("统计在招职位失败: %w", err)
	}
	return count, nil
}

// RecommendationIssuedEvent 推荐下发事件
type RecommendationIssuedEvent struct {
	EventID  string    `json:"event_id"`
	UserID   int64     `json:"user_id"`
	JobIDs   []int64   `json:"job_ids"`
	Scores   []float64 `json:"scores"`
	IssuedAt time.Time `json:"issued_at"`
}

// newIssuedOutboxMessage 构造与推荐记录同事务写入的 outbox 消息
func (r *RecommendRepository) newIssuedOutboxMessage(event RecommendationIssuedEvent) (*models.OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("序列化推荐事件失败: %w", err)
	}
	routingKey := r.opts.IssuedRoutingKey
	if routingKey == "" {
		routingKey = constants.EventRecommendationIssued
	}
	return &models.OutboxMessage{
		AggregateID:      event.EventID,
		EventType:        constants.EventRecommendationIssued,
		Payload:          string(payload),
		TargetExchange:   r.opts.EventsExchange,
		TargetRoutingKey: routingKey,
		Status:           models.OutboxStatusPending,
	}, nil
}

// LogRecommendationRequest 记录推荐结果，同事务写入下发事件
func (r *RecommendRepository) LogRecommendationRequest(ctx context.Context, userID int64, jobIDs []int64, scores []float64) error {
	if len(jobIDs) == 0 {
		return nil
	}

	jobsJSON, err := json.Marshal(jobIDs)
	if err != nil {
		return fmt.Errorf("序列化职位列表失败: %w", err)
	}
	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("序列化分数失败: %w", err)
	}

	entry := &models.RecommendationLog{
		UserID:          userID,
		RecommendedJobs: datatypes.JSON(jobsJSON),
		Scores:          datatypes.JSON(scoresJSON),
	}

	var outboxMsg *models.OutboxMessage
	if r.opts.EventsExchange != "" {
		outboxMsg, err = r.newIssuedOutboxMessage(RecommendationIssuedEvent{
			EventID:  uuid.NewString(),
			UserID:   userID,
			JobIDs:   jobIDs,
			Scores:   scores,
			IssuedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("写入推荐记录失败: %w", err)
		}
		if outboxMsg == nil {
			return nil
		}
		if err := tx.Create(outboxMsg).Error; err != nil {
			return fmt.Errorf("写入outbox消息失败: %w", err)
		}
		return nil
	})
}

// GetJobDetails 单个职位详情，不存在时返回 nil, nil
func (r *RecommendRepository) GetJobDetails(ctx context.Context, jobID int64) (*types.JobDetails, error) {
	q := withOwnerAndApplications(
		r.db.WithContext(ctx).Table("jobs j").
			Select(jobColumns+`, COALESCE(j.status, '') AS status, j.application_deadline,
				COALESCE(AVG(jr.rating), 0) AS average_rating, COUNT(DISTINCT jr.id) AS rating_count`),
	).
		Joins("LEFT JOIN job_ratings jr ON j.id = jr.job_id").
		Where("j.id = ?", jobID).
		Group("j.id")

	var details []types.JobDetails
	if err := q.Scan(&details).Error; err != nil {
		r.logger.Error().Err(err).Int64("job_id", jobID).Msg("读取职位详情失败")
		return nil, fmt.Errorf("读取职位详情失败: %w", err)
	}
	if len(details) == 0 {
		return nil, nil
	}
	return &details[0], nil
}

// GetUserApplicationHistory 用户投递历史，按投递时间倒序
func (r *RecommendRepository) GetUserApplicationHistory(ctx context.Context, userID int64) ([]types.ApplicationRecord, error) {
	apps := make([]types.ApplicationRecord, 0)
	err := r.db.WithContext(ctx).
		Table("job_applications ja").
		Select(`ja.job_id, COALESCE(ja.status, '') AS status, ja.applied_at,
			COALESCE(j.category, '') AS category, COALESCE(j.work_type, '') AS work_type,
			COALESCE(j.experience_level, '') AS experience_level`).
		Joins("JOIN jobs j ON ja.job_id = j.id").
		Where("ja.user_id = ?", userID).
		Order("ja.applied_at DESC").
		Scan(&apps).Error
	if err != nil {
		return nil, fmt.Errorf("读取投递历史失败: %w", err)
	}
	return apps, nil
}
