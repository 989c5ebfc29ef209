package types

import (
	"time"
)

// 以下为数据访问层返回的原始记录，字段与门户库表结构一一对应

// CourseEnrollment 用户课程及毕业状态
type CourseEnrollment struct {
	Course           string `json:"course"`
	GraduationStatus string `json:"graduation_status"`
}

// ProfileRecord 用户基础档案 (user_profiles + user_courses)
type ProfileRecord struct {
	UserID           int64              `json:"user_id"`
	FirstName        string             `json:"first_name"`
	LastName         string             `json:"last_name"`
	StudentType      string             `json:"student_type"`
	Age              *int               `json:"age,omitempty"`
	ProfileCompleted bool               `json:"profile_completed"`
	Courses          []CourseEnrollment `json:"courses"`
}

// ResumeRecord 简历记录，JSON列保持原始字节，由特征构建阶段尽力解析
type ResumeRecord struct {
	ID                  int64     `json:"id"`
	UserID              int64     `json:"user_id"`
	Status              string    `json:"status"`
	ProfessionalSummary string    `json:"professional_summary"`
	Skills              []byte    `json:"skills,omitempty"`
	WorkExperience      []byte    `json:"work_experience,omitempty"`
	Education           []byte    `json:"education,omitempty"`
	Languages           []byte    `json:"languages,omitempty"`
	Hobbies             string    `json:"hobbies"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// JobRecord 在招职位记录
type JobRecord struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Category         string    `json:"category"`
	Description      *string   `json:"description"`
	Summary          *string   `json:"summary"`
	Location         string    `json:"location"`
	WorkType         string    `json:"work_type"`
	WorkArrangement  string    `json:"work_arrangement"`
	ExperienceLevel  string    `json:"experience_level"`
	SalaryMin        *float64  `json:"salary_min"`
	SalaryMax        *float64  `json:"salary_max"`
	CompanyName      string    `json:"company_name"`
	ApplicationCount int       `json:"application_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// JobDetails 单个职位详情，附带评分统计
type JobDetails struct {
	JobRecord
	Status              string     `json:"status"`
	ApplicationDeadline *time.Time `json:"application_deadline,omitempty"`
	AverageRating       float64    `json:"average_rating"`
	RatingCount         int        `json:"rating_count"`
}

// ApplicationRecord 用户投递历史
type ApplicationRecord struct {
	JobID           int64     `json:"job_id"`
	Status          string    `json:"status"`
	AppliedAt       time.Time `json:"applied_at"`
	Category        string    `json:"category"`
	WorkType        string    `json:"work_type"`
	ExperienceLevel string    `json:"experience_level"`
}
