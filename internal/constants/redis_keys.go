package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: {app}:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "recommender"

	// EmbeddingModulePrefix 向量化模块
	EmbeddingModulePrefix = "embedding"
	// EngineModulePrefix 推荐引擎模块
	EngineModulePrefix = "engine"

	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityVector 向量实体
	EntityVector = "vector"

	// KeyTextVector 文本向量缓存 (HASH: vector, model)
	// 格式: recommender:embedding:vector:{model}:{md5(text)}
	KeyTextVector = AppPrefix + ":" + EmbeddingModulePrefix + ":" + EntityVector + ":%s:%s"

	// KeyRetrainLock 重新加载支撑数据的分布式锁 (STRING)
	// 格式: recommender:engine:lock:retrain
	KeyRetrainLock = AppPrefix + ":" + EngineModulePrefix + ":" + EntityLock + ":retrain"
)
