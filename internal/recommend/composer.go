package recommend

import (
	"math"

	"job-recommender/internal/types"
)

// HybridWeights 混合权重
type HybridWeights struct {
	Content   float64 `json:"content"`
	Knowledge float64 `json:"knowledge"`
}

// HybridComposer 组合内容分与知识分，计算置信度并按阈值过滤
type HybridComposer struct {
	weights  HybridWeights
	minScore float64
}

// NewHybridComposer 创建混合组合器
func NewHybridComposer(weights HybridWeights, minScore float64) *HybridComposer {
	return &HybridComposer{weights: weights, minScore: minScore}
}

// Compose 低于最低分时返回 false
func (c *HybridComposer) Compose(user *types.UserProfile, job *types.JobProfile,
	content float64, contentReasons []string,
	knowledge float64, knowledgeReasons []string,
	includeReasons bool) (types.RecommendationScore, bool) {

	hybrid := c.weights.Content*content + c.weights.Knowledge*knowledge
	if hybrid < c.minScore {
		return types.RecommendationScore{}, false
	}

	rec := types.RecommendationScore{
		JobID:          job.JobID,
		ContentScore:   content,
		KnowledgeScore: knowledge,
		HybridScore:    hybrid,
		Confidence:     confidence(user, content, knowledge),
		Reasons:        []string{},
		JobTitle:       job.Title,
		JobCategory:    job.Category,
		CompanyName:    job.CompanyName,
	}
	if includeReasons {
		rec.Reasons = append(rec.Reasons, contentReasons...)
		rec.Reasons = append(rec.Reasons, knowledgeReasons...)
	}
	return rec, true
}

// confidence 数据越完整、两类分数越接近，置信度越高
func confidence(user *types.UserProfile, content, knowledge float64) float64 {
	conf := 0.5
	if user.ProfileCompleted {
		conf += 0.2
	}
	if user.HasCompletedResume() {
		conf += 0.3
	}
	if math.Abs(content-knowledge) < 0.2 {
		conf += 0.1
	}
	return minFloat(conf, 1.0)
}
