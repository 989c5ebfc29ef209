package tracing

const (
	// MaxSQLLength db.statement 属性最大长度
	MaxSQLLength = 500
	// MaxRedisKeyLength db.redis.key 属性最大长度
	MaxRedisKeyLength = 100
	// MaxErrorMessageLength error.message 属性最大长度
	MaxErrorMessageLength = 300
)

// TruncateString 超长时保留首尾，中间以省略号连接，按字符而非字节计数
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	half := max((maxLength-3)/2, 1)
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeSQL 截断后的SQL语句
func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

// SafeRedisKey 截断后的Redis键
func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisKeyLength)
}
