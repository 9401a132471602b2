package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUCache 进程内上下文缓存
type LRUCache struct {
	entries *lru.Cache[string, Entry]
}

// NewLRUCache 创建容量为 size 的进程内缓存
func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = 1024
	}
	entries, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{entries: entries}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) (Entry, bool, error) {
	entry, ok := c.entries.Get(key)
	return entry, ok, nil
}

func (c *LRUCache) Set(_ context.Context, key string, entry Entry) error {
	c.entries.Add(key, entry)
	return nil
}

func (c *LRUCache) Delete(_ context.Context, key string) error {
	c.entries.Remove(key)
	return nil
}

// Len 当前缓存条数
func (c *LRUCache) Len() int {
	return c.entries.Len()
}
