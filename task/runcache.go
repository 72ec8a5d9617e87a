package task

import "sync"

// RunCache carries handler results between jobs of one worker run. It is
// created by the scheduler for each run and discarded when the run ends.
// It is safe for concurrent use.
type RunCache struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewRunCache returns an empty cache.
func NewRunCache() *RunCache {
	return &RunCache{data: make(map[string]any)}
}

// Put stores v under key, replacing any previous value.
func (c *RunCache) Put(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = v
}

// Get returns the value stored under key.
func (c *RunCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

// Len returns the number of cached entries.
func (c *RunCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Lookup returns the value under key asserted to T. A missing key or a
// value of another type reports false.
func Lookup[T any](c *RunCache, key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
