package cache

import (
	"context"
	"fmt"
)

// Entry 已加载的上下文片段及其展开状态
type Entry struct {
	HTML     string `json:"html"`
	Expanded bool   `json:"expanded"`
}

// ContextCache 上下文片段缓存
type ContextCache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
}

// ContextKey 生成上下文缓存键，列表重新加载后旧代的键自然失效
func ContextKey(sessionID, list string, generation int64, messageID string) string {
	return fmt.Sprintf("%s:%s:%d:%s", sessionID, list, generation, messageID)
}
