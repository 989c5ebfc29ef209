package constants

const (
	// ServiceName 服务名称
	ServiceName = "Hybrid Job Recommendation Service"
	// AlgorithmVersion 推荐算法版本
	AlgorithmVersion = "2.0.0"

	// EventRecommendationIssued 推荐结果下发事件
	EventRecommendationIssued = "recommendation.issued"
)

// 推荐理由文案（对外展示，保持英文）
const (
	ReasonCompleteResume     = "Complete your resume for better job matching"
	ReasonStrongMatch        = "Strong semantic match between your profile and job requirements"
	ReasonGoodCompatibility  = "Good compatibility with job description"
	ReasonSomeRelevance      = "Some relevant experience matches job needs"
	ReasonPopularJob         = "Popular job opportunity"
	ReasonSkillsMatchFmt     = "Skills match: %s"
	ReasonEducationMatchFmt  = "Education level matches %s requirements"
	ReasonExperienceMatchFmt = "Experience level aligns with %s role"
	ReasonCourseFitFmt       = "Your course background fits %s field"
)
