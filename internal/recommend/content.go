package recommend

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"job-recommender/internal/constants"
	"job-recommender/internal/types"
)

// 位置维度暂无地理匹配逻辑，固定为中性分
const locationNeutralScore = 0.5

// 没有已完成简历时的经验分
const noResumeExperienceScore = 0.3

// ContentWeights 内容匹配的五个子权重
type ContentWeights struct {
	Skills     float64 `json:"skills"`
	Education  float64 `json:"education"`
	Experience float64 `json:"experience"`
	Course     float64 `json:"course"`
	Location   float64 `json:"location"`
}

// educationModifier 经验等级对学历分的修正系数
var educationModifier = map[string]float64{
	types.ExperienceEntry:     0.8,
	types.ExperienceMid:       0.6,
	types.ExperienceSenior:    0.4,
	types.ExperienceExecutive: 0.2,
}

// ContentScorer 基于结构化属性的内容匹配
type ContentScorer struct {
	weights ContentWeights
	logger  zerolog.Logger
}

// NewContentScorer 创建内容评分器
func NewContentScorer(weights ContentWeights, logger zerolog.Logger) *ContentScorer {
	return &ContentScorer{weights: weights, logger: logger}
}

// Score 返回内容分与匹配理由，mapping 为课程到职位类别的映射
func (s *ContentScorer) Score(user *types.UserProfile, job *types.JobProfile, mapping map[string][]string) (float64, []string) {
	var (
		total   float64
		reasons []string
	)

	if skills := user.Skills(); len(skills) > 0 {
		score, matched := s.dimension("skills", func() (float64, []string) { return skillsScore(skills, job) })
		total += score * s.weights.Skills
		if score > 0.5 {
			reasons = append(reasons, fmt.Sprintf(constants.ReasonSkillsMatchFmt, strings.Join(firstN(matched, 3), ", ")))
		}
	}

	edu, _ := s.dimension("education", func() (float64, []string) { return educationScore(user, job), nil })
	total += edu * s.weights.Education
	if edu > 0.5 {
		reasons = append(reasons, fmt.Sprintf(constants.ReasonEducationMatchFmt, job.ExperienceLevel))
	}

	exp, _ := s.dimension("experience", func() (float64, []string) { return experienceScore(user, job), nil })
	total += exp * s.weights.Experience
	if exp > 0.5 {
		reasons = append(reasons, fmt.Sprintf(constants.ReasonExperienceMatchFmt, job.ExperienceLevel))
	}

	course, _ := s.dimension("course", func() (float64, []string) { return courseScore(user, job, mapping), nil })
	total += course * s.weights.Course
	if course > 0.7 {
		reasons = append(reasons, fmt.Sprintf(constants.ReasonCourseFitFmt, job.Category))
	}

	total += locationNeutralScore * s.weights.Location

	return minFloat(total, 1.0), reasons
}

// dimension 单个维度出现异常时记为0分，不影响其他维度
func (s *ContentScorer) dimension(name string, fn func() (float64, []string)) (score float64, extra []string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("dimension", name).Interface("panic", r).Msg("内容子维度计算异常，按0处理")
			score, extra = 0, nil
		}
	}()
	return fn()
}

// skillsScore 用户技能出现在职位标题与描述中的比例
func skillsScore(skills []string, job *types.JobProfile) (float64, []string) {
	jobText := strings.ToLower(job.Title + " " + job.Description)
	var matched []string
	for _, skill := range skills {
		if strings.Contains(jobText, strings.ToLower(skill)) {
			matched = append(matched, skill)
		}
	}
	return float64(len(matched)) / float64(len(skills)), matched
}

func educationScore(user *types.UserProfile, job *types.JobProfile) float64 {
	base := 0.6
	if user.StudentType == types.StudentTypeAlumni {
		base = 0.8
	}
	modifier, ok := educationModifier[job.ExperienceLevel]
	if !ok {
		modifier = 0.5
	}
	return base * modifier
}

// experienceScore 按职位经验等级与工作经历条数打分
// entry-level 对任意非负条数都给 0.9
func experienceScore(user *types.UserProfile, job *types.JobProfile) float64 {
	if !user.HasCompletedResume() {
		return noResumeExperienceScore
	}

	count := user.WorkExperienceCount()
	switch job.ExperienceLevel {
	case types.ExperienceEntry:
		return 0.9
	case types.ExperienceMid:
		if count >= 1 {
			return 0.8
		}
		return 0.4
	case types.ExperienceSenior:
		if count >= 2 {
			return 0.7
		}
		return 0.3
	default:
		if count >= 3 {
			return 0.6
		}
		return 0.2
	}
}

// courseScore 课程可对应职位类别时，已毕业1.0，否则0.8，取最大值
func courseScore(user *types.UserProfile, job *types.JobProfile, mapping map[string][]string) float64 {
	best := 0.0
	for _, c := range user.Courses {
		if !containsString(mapping[c.Course], job.Category) {
			continue
		}
		score := 0.8
		if c.GraduationStatus == types.GraduationStatusGraduated {
			score = 1.0
		}
		if score > best {
			best = score
		}
	}
	return best
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func firstN(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
