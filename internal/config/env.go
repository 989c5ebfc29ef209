package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// applyEnvOverrides 从环境变量覆盖配置（如果存在）
// 变量名沿用推荐服务原有的命名，解析失败的值会被忽略
func applyEnvOverrides(c *Config) {
	envString("DB_HOST", &c.MySQL.Host)
	envInt("DB_PORT", &c.MySQL.Port)
	envString("DB_USER", &c.MySQL.Username)
	envString("DB_PASSWORD", &c.MySQL.Password)
	envString("DB_NAME", &c.MySQL.Database)

	envString("REDIS_ADDRESS", &c.Redis.Address)
	envString("RABBITMQ_URL", &c.RabbitMQ.URL)
	envString("SERVER_ADDRESS", &c.Server.Address)
	envString("LOG_LEVEL", &c.Logger.Level)

	envFloat("CONTENT_WEIGHT", &c.Recommendation.ContentWeight)
	envFloat("KNOWLEDGE_WEIGHT", &c.Recommendation.KnowledgeWeight)
	envFloat("MIN_RECOMMENDATION_SCORE", &c.Recommendation.MinRecommendationScore)
	envInt("MAX_RECOMMENDATIONS", &c.Recommendation.MaxRecommendations)
	envFloat("SKILLS_WEIGHT", &c.Recommendation.SkillsWeight)
	envFloat("EDUCATION_WEIGHT", &c.Recommendation.EducationWeight)
	envFloat("EXPERIENCE_WEIGHT", &c.Recommendation.ExperienceWeight)
	envFloat("COURSE_WEIGHT", &c.Recommendation.CourseWeight)
	envFloat("LOCATION_WEIGHT", &c.Recommendation.LocationWeight)
	envBool("ENABLE_POPULARITY_BOOST", &c.Recommendation.EnablePopularityBoost)
	envBool("ENABLE_DIVERSITY_BOOST", &c.Recommendation.EnableDiversityBoost)
	envBool("ENABLE_COLLABORATIVE_FILTERING", &c.Recommendation.EnableCollaborativeFiltering)
	envBool("EXCLUDE_EXPIRED_JOBS", &c.Recommendation.ExcludeExpiredJobs)

	envBool("USE_SEMANTIC_SIMILARITY", &c.Similarity.UseSemanticSimilarity)
	envString("SENTENCE_TRANSFORMER_MODEL", &c.Similarity.ModelName)
	envInt("NLP_CACHE_SIZE", &c.Similarity.CacheSize)

	envInt("CACHE_TTL_SECONDS", &c.Performance.CacheTTLSeconds)
	envInt("MAX_CONCURRENT_USERS", &c.Performance.MaxConcurrentUsers)
	envInt("BATCH_SIZE", &c.Performance.ScoringWorkers)

	envString("EMBEDDING_BASE_URL", &c.Embedding.BaseURL)
	envString("EMBEDDING_API_KEY", &c.Embedding.APIKey)
	envString("ADMIN_API_KEY", &c.Security.AdminAPIKey)
	envString("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Tracing.Endpoint)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("忽略无法解析的整数环境变量")
		return
	}
	*dst = n
}

func envFloat(key string, dst *float64) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("忽略无法解析的浮点环境变量")
		return
	}
	*dst = f
}

// envBool 与原服务一致：只有 "true"（不区分大小写）视为真
func envBool(key string, dst *bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	*dst = strings.EqualFold(strings.TrimSpace(v), "true")
}
