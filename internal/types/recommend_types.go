package types

// StudentType 学生类型
const (
	StudentTypeAlumni = "alumni"
	StudentTypeOJT    = "OJT"
)

// GraduationStatusGraduated 已毕业
const GraduationStatusGraduated = "graduated"

// ResumeStatusCompleted 已完成的简历
const ResumeStatusCompleted = "completed"

// ExperienceLevel 职位经验等级
const (
	ExperienceEntry     = "entry-level"
	ExperienceMid       = "mid-level"
	ExperienceSenior    = "senior-level"
	ExperienceExecutive = "executive"
)

// WorkEntry 工作经历
type WorkEntry struct {
	JobTitle    string `json:"jobTitle"`
	Company     string `json:"company"`
	Description string `json:"description"`
}

// EducationEntry 教育经历
type EducationEntry struct {
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"fieldOfStudy"`
	School       string `json:"school"`
}

// ResumeFeatures 来自已完成简历的字段，整体存在或整体缺失
type ResumeFeatures struct {
	Skills              []string
	WorkExperience      []WorkEntry
	Education           []EducationEntry
	ProfessionalSummary string
	Languages           []string
	Hobbies             string
}

// UserProfile 用户画像，每次请求重新构建
type UserProfile struct {
	UserID           int64
	FirstName        string
	LastName         string
	StudentType      string
	Courses          []CourseEnrollment
	Age              *int
	ProfileCompleted bool

	// Resume 为 nil 表示没有已完成的简历
	Resume *ResumeFeatures
}

// HasCompletedResume 是否存在已完成的简历
func (u *UserProfile) HasCompletedResume() bool {
	return u.Resume != nil
}

// Skills 返回技能列表，没有简历时为空
func (u *UserProfile) Skills() []string {
	if u.Resume == nil {
		return nil
	}
	return u.Resume.Skills
}

// WorkExperienceCount 工作经历条数
func (u *UserProfile) WorkExperienceCount() int {
	if u.Resume == nil {
		return 0
	}
	return len(u.Resume.WorkExperience)
}

// JobProfile 职位画像，构建后不可变
type JobProfile struct {
	JobID            int64
	Title            string
	Category         string
	Description      string
	Summary          string
	Location         string
	WorkType         string
	WorkArrangement  string
	ExperienceLevel  string
	SalaryMin        *float64
	SalaryMax        *float64
	CompanyName      string
	ApplicationCount int
}

// RecommendationScore 单个职位的推荐结果
type RecommendationScore struct {
	JobID          int64    `json:"job_id"`
	ContentScore   float64  `json:"content_score"`
	KnowledgeScore float64  `json:"knowledge_score"`
	HybridScore    float64  `json:"hybrid_score"`
	Confidence     float64  `json:"confidence"`
	Reasons        []string `json:"reasons"`
	JobTitle       string   `json:"job_title"`
	JobCategory    string   `json:"job_category"`
	CompanyName    string   `json:"company_name"`
}

// UserProfileDebug 调试用的画像摘要
type UserProfileDebug struct {
	UserID              int64              `json:"user_id"`
	Name                string             `json:"name"`
	StudentType         string             `json:"student_type"`
	Courses             []CourseEnrollment `json:"courses"`
	ProfileCompleted    bool               `json:"profile_completed"`
	HasCompletedResume  bool               `json:"has_completed_resume"`
	SkillsCount         int                `json:"skills_count"`
	WorkExperienceCount int                `json:"work_experience_count"`
	EducationCount      int                `json:"education_count"`
}
