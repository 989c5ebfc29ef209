package models

import (
	"time"

	"gorm.io/datatypes"
)

// 门户库表结构，由主应用维护；本服务只读，仅在测试环境下自动迁移

// UserProfile 用户档案表
type UserProfile struct {
	UserID           int64      `gorm:"primaryKey;autoIncrement:false"`
	FirstName        string     `gorm:"type:varchar(100)"`
	LastName         string     `gorm:"type:varchar(100)"`
	StudentType      string     `gorm:"type:varchar(20)"`
	ContactNumber    string     `gorm:"type:varchar(50)"`
	Age              *int       `gorm:"type:int"`
	Birthdate        *time.Time `gorm:"type:date"`
	Gender           string     `gorm:"type:varchar(20)"`
	ProfileCompleted bool       `gorm:"default:false"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}

// Course 课程表
type Course struct {
	ID         int64  `gorm:"primaryKey"`
	CourseName string `gorm:"type:varchar(255);not null"`
}

func (Course) TableName() string {
	return "courses"
}

// UserCourse 用户选修课程及毕业状态
type UserCourse struct {
	ID               int64  `gorm:"primaryKey"`
	UserID           int64  `gorm:"not null;index:idx_uc_user_id"`
	CourseID         int64  `gorm:"not null"`
	GraduationStatus string `gorm:"type:varchar(50)"`
}

func (UserCourse) TableName() string {
	return "user_courses"
}

// Resume 简历表，各分区以JSON存储
type Resume struct {
	ID                  int64          `gorm:"primaryKey"`
	UserID              int64          `gorm:"not null;index:idx_resumes_user_updated,priority:1"`
	Title               string         `gorm:"type:varchar(255)"`
	Status              string         `gorm:"type:varchar(20);index"`
	PersonalInfo        datatypes.JSON `gorm:"type:json"`
	ProfessionalSummary string         `gorm:"type:text"`
	WorkExperience      datatypes.JSON `gorm:"type:json"`
	Education           datatypes.JSON `gorm:"type:json"`
	Skills              datatypes.JSON `gorm:"type:json"`
	Languages           datatypes.JSON `gorm:"type:json"`
	Hobbies             string         `gorm:"type:text"`
	CreatedAt           time.Time
	UpdatedAt           time.Time `gorm:"index:idx_resumes_user_updated,priority:2"`
}

func (Resume) TableName() string {
	return "resumes"
}

// Job 职位表
type Job struct {
	ID                  int64      `gorm:"primaryKey"`
	Title               string     `gorm:"type:varchar(255);not null"`
	Category            string     `gorm:"type:varchar(255)"`
	Description         *string    `gorm:"type:text"`
	Summary             *string    `gorm:"type:text"`
	Location            string     `gorm:"type:varchar(255)"`
	WorkType            string     `gorm:"type:varchar(50)"`
	WorkArrangement     string     `gorm:"type:varchar(50)"`
	ExperienceLevel     string     `gorm:"type:varchar(50)"`
	MinSalary           *float64   `gorm:"type:decimal(12,2)"`
	MaxSalary           *float64   `gorm:"type:decimal(12,2)"`
	PositionsAvailable  int        `gorm:"default:1"`
	ApplicationDeadline *time.Time `gorm:"type:date"`
	Status              string     `gorm:"type:varchar(20);index:idx_jobs_status"`
	CreatedByType       string     `gorm:"type:varchar(20)"`
	CreatedByID         int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (Job) TableName() string {
	return "jobs"
}

// CompanyProfile 企业档案
type CompanyProfile struct {
	CompanyID   int64  `gorm:"primaryKey;autoIncrement:false"`
	CompanyName string `gorm:"type:varchar(255)"`
}

func (CompanyProfile) TableName() string {
	return "company_profiles"
}

// CoordinatorProfile 协调员档案
type CoordinatorProfile struct {
	CoordinatorID int64  `gorm:"primaryKey;autoIncrement:false"`
	FirstName     string `gorm:"type:varchar(100)"`
}

func (CoordinatorProfile) TableName() string {
	return "coordinator_profiles"
}

// JobApplication 职位投递表
type JobApplication struct {
	ID        int64     `gorm:"primaryKey"`
	JobID     int64     `gorm:"not null;index"`
	UserID    int64     `gorm:"not null;index"`
	Status    string    `gorm:"type:varchar(50)"`
	AppliedAt time.Time `gorm:"index"`
}

func (JobApplication) TableName() string {
	return "job_applications"
}

// JobCategory 课程到职位类别的映射
type JobCategory struct {
	ID           int64  `gorm:"primaryKey"`
	CourseName   string `gorm:"type:varchar(255);not null;index"`
	CategoryName string `gorm:"type:varchar(255);not null"`
}

func (JobCategory) TableName() string {
	return "job_categories"
}

// JobRating 职位评分
type JobRating struct {
	ID     int64 `gorm:"primaryKey"`
	JobID  int64 `gorm:"not null;index"`
	UserID int64
	Rating float64
}

func (JobRating) TableName() string {
	return "job_ratings"
}

// RecommendationLog 推荐结果记录，本服务自有
type RecommendationLog struct {
	ID              uint64         `gorm:"primaryKey;autoIncrement"`
	UserID          int64          `gorm:"not null;index:idx_user_id"`
	RecommendedJobs datatypes.JSON `gorm:"type:json"`
	Scores          datatypes.JSON `gorm:"type:json"`
	CreatedAt       time.Time      `gorm:"index:idx_created_at"`
}

func (RecommendationLog) TableName() string {
	return "recommendation_logs"
}

// PortalModels 门户库的全部表
func PortalModels() []interface{} {
	return []interface{}{
		&UserProfile{}, &Course{}, &UserCourse{}, &Resume{}, &Job{},
		&CompanyProfile{}, &CoordinatorProfile{}, &JobApplication{}, &JobCategory{}, &JobRating{},
	}
}

// ServiceModels 本服务自有的表
func ServiceModels() []interface{} {
	return []interface{}{&RecommendationLog{}, &OutboxMessage{}}
}
