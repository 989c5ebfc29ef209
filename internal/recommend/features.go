package recommend

import (
	"github.com/goccy/go-json"

	"job-recommender/internal/types"
)

// BuildUserProfile 由档案与简历记录构建用户画像
// resume 为 nil 时简历相关字段整体缺失；是否为已完成状态由数据访问层保证
func BuildUserProfile(profile *types.ProfileRecord, resume *types.ResumeRecord) *types.UserProfile {
	if profile == nil {
		return nil
	}

	user := &types.UserProfile{
		UserID:           profile.UserID,
		FirstName:        profile.FirstName,
		LastName:         profile.LastName,
		StudentType:      profile.StudentType,
		Courses:          append([]types.CourseEnrollment(nil), profile.Courses...),
		Age:              profile.Age,
		ProfileCompleted: profile.ProfileCompleted,
	}

	if resume != nil {
		user.Resume = &types.ResumeFeatures{
			Skills:              parseNamedList(resume.Skills, "name", "skill"),
			WorkExperience:      parseWorkExperience(resume.WorkExperience),
			Education:           parseEducation(resume.Education),
			ProfessionalSummary: resume.ProfessionalSummary,
			Languages:           parseNamedList(resume.Languages, "language"),
			Hobbies:             resume.Hobbies,
		}
	}
	return user
}

// BuildJobProfile 职位记录直接映射为职位画像
func BuildJobProfile(job types.JobRecord) types.JobProfile {
	return types.JobProfile{
		JobID:            job.ID,
		Title:            job.Title,
		Category:         job.Category,
		Description:      derefString(job.Description),
		Summary:          derefString(job.Summary),
		Location:         job.Location,
		WorkType:         job.WorkType,
		WorkArrangement:  job.WorkArrangement,
		ExperienceLevel:  job.ExperienceLevel,
		SalaryMin:        job.SalaryMin,
		SalaryMax:        job.SalaryMax,
		CompanyName:      job.CompanyName,
		ApplicationCount: job.ApplicationCount,
	}
}

// decodeList 尽力解析JSON数组，格式错误时返回空列表
func decodeList(raw []byte) []interface{} {
	if len(raw) == 0 {
		return nil
	}
	var items []interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

// parseNamedList 元素可以是字符串，也可以是带有指定字段的对象，其他形态跳过
func parseNamedList(raw []byte, keys ...string) []string {
	var out []string
	for _, item := range decodeList(raw) {
		switch v := item.(type) {
		case string:
			if v != "" {
				out = append(out, v)
			}
		case map[string]interface{}:
			for _, key := range keys {
				if s, ok := v[key].(string); ok && s != "" {
					out = append(out, s)
					break
				}
			}
		}
	}
	return out
}

func parseWorkExperience(raw []byte) []types.WorkEntry {
	var out []types.WorkEntry
	for _, item := range decodeList(raw) {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, types.WorkEntry{
			JobTitle:    stringField(m, "jobTitle"),
			Company:     stringField(m, "company"),
			Description: stringField(m, "description"),
		})
	}
	return out
}

func parseEducation(raw []byte) []types.EducationEntry {
	var out []types.EducationEntry
	for _, item := range decodeList(raw) {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, types.EducationEntry{
			Degree:       stringField(m, "degree"),
			FieldOfStudy: stringField(m, "fieldOfStudy"),
			School:       stringField(m, "school"),
		})
	}
	return out
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
