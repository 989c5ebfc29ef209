package similarity

import (
	"crypto/md5"
	"encoding/hex"
	"sync"
)

// PairCache 文本对相似度缓存，达到容量后不再写入，不做淘汰
type PairCache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string]float64
}

// NewPairCache 创建缓存，capacity <= 0 表示不缓存
func NewPairCache(capacity int) *PairCache {
	if capacity < 0 {
		capacity = 0
	}
	return &PairCache{
		capacity: capacity,
		entries:  make(map[string]float64),
	}
}

// pairKey md5("a||b")
func pairKey(a, b string) string {
	sum := md5.Sum([]byte(a + "||" + b))
	return hex.EncodeToString(sum[:])
}

// Get 查询缓存
func (c *PairCache) Get(key string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put 写入缓存，已满时忽略
func (c *PairCache) Put(key string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		return
	}
	c.entries[key] = value
}

// Len 当前条目数
func (c *PairCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reset 清空缓存
func (c *PairCache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]float64)
	c.mu.Unlock()
}
