package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// LLMCache stores raw model responses keyed by model name and prompt digest.
type LLMCache struct {
	Dir
}

// NewLLMCache returns a cache rooted at <dir>/llm.
func NewLLMCache(dir string, strict bool) *LLMCache {
	return &LLMCache{Dir: Dir{Path: filepath.Join(dir, "llm"), StrictPerms: strict}}
}

// KeyFrom builds a cache key from model and prompt.
func KeyFrom(model string, prompt string) string {
	return digest(model + "\n\n" + prompt)
}

func (c *LLMCache) pathFor(key string) string {
	return filepath.Join(c.Path, key+".json")
}

// Get returns cached bytes if present. A miss is not an error.
func (c *LLMCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := c.ensure(); err != nil {
		return nil, false, err
	}
	p := c.pathFor(key)
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, false, nil
	}
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return b, true, nil
}

// Save writes bytes to cache.
func (c *LLMCache) Save(_ context.Context, key string, data []byte) error {
	if err := c.ensure(); err != nil {
		return err
	}
	return os.WriteFile(c.pathFor(key), data, c.fileMode())
}
