// Package internal provides internal utility functions and types used across the mapstore packages.
package internal

import (
	"reflect"
	"sync"
)

// IsNil reports whether v is nil or a nil pointer, map, slice, channel,
// function or interface.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// UniqueKeys returns keys without nil keys and duplicates, in first-seen order.
func UniqueKeys[K comparable](keys []K) []K {
	seen := make(map[K]struct{}, len(keys))
	out := make([]K, 0, len(keys))
	for _, k := range keys {
		if IsNil(k) {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// SafeCounters is a thread-safe set of named counters
type SafeCounters struct {
	mu   sync.RWMutex
	data map[string]int64
}

// NewSafeCounters creates an empty counter set
func NewSafeCounters() *SafeCounters {
	return &SafeCounters{data: make(map[string]int64)}
}

// Add increases the named counter by n
func (c *SafeCounters) Add(name string, n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[name] += n
}

// Get returns the named counter
func (c *SafeCounters) Get(name string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data[name]
}

// Snapshot returns a copy of all counters
func (c *SafeCounters) Snapshot() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int64, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

// Reset sets every counter to 0
func (c *SafeCounters) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]int64)
}
