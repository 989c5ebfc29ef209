package recommend

import (
	"context"
	"strings"

	"job-recommender/internal/constants"
	"job-recommender/internal/similarity"
	"job-recommender/internal/types"
)

// KnowledgeScorer 基于整合文本的语义/词法匹配
type KnowledgeScorer struct {
	backend similarity.Backend
}

// NewKnowledgeScorer 创建知识评分器
func NewKnowledgeScorer(backend similarity.Backend) *KnowledgeScorer {
	return &KnowledgeScorer{backend: backend}
}

// Score 没有已完成简历时直接返回0分与补全简历提示
func (s *KnowledgeScorer) Score(ctx context.Context, user *types.UserProfile, job *types.JobProfile) (float64, []string) {
	if !user.HasCompletedResume() {
		return 0, []string{constants.ReasonCompleteResume}
	}

	userText := UserText(user)
	jobText := JobText(job)
	if userText == "" || jobText == "" {
		return 0, nil
	}

	score := minFloat(s.backend.Similarity(ctx, userText, jobText), 1.0)
	return score, knowledgeReasons(score)
}

func knowledgeReasons(score float64) []string {
	switch {
	case score > 0.7:
		return []string{constants.ReasonStrongMatch}
	case score > 0.5:
		return []string{constants.ReasonGoodCompatibility}
	case score > 0.3:
		return []string{constants.ReasonSomeRelevance}
	}
	return nil
}

// UserText 拼接简历摘要、技能、工作与教育经历、课程，统一小写
func UserText(user *types.UserProfile) string {
	var parts []string
	if r := user.Resume; r != nil {
		if r.ProfessionalSummary != "" {
			parts = append(parts, r.ProfessionalSummary)
		}
		if len(r.Skills) > 0 {
			parts = append(parts, strings.Join(r.Skills, " "))
		}
		for _, w := range r.WorkExperience {
			parts = append(parts, w.JobTitle+" "+w.Company+" "+w.Description)
		}
		for _, e := range r.Education {
			parts = append(parts, e.Degree+" "+e.FieldOfStudy+" "+e.School)
		}
	}
	for _, c := range user.Courses {
		parts = append(parts, c.Course+" "+c.GraduationStatus)
	}
	return strings.ToLower(strings.TrimSpace(strings.Join(parts, " ")))
}

// JobText 拼接职位标题、类别、描述、摘要、工作类型与经验等级，统一小写
func JobText(job *types.JobProfile) string {
	var parts []string
	for _, p := range []string{job.Title, job.Category, job.Description, job.Summary, job.WorkType, job.ExperienceLevel} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}
