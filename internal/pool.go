package internal

import (
	"sync"
	"sync/atomic"
)

// ObjectPool provides a pool of reusable objects
type ObjectPool[T any] struct {
	pool  sync.Pool
	reset func(T)

	gets atomic.Int64
	news atomic.Int64
}

// NewObjectPool creates a new object pool. reset, when non-nil, runs on every
// object handed back with Put.
func NewObjectPool[T any](newFunc func() T, reset func(T)) *ObjectPool[T] {
	p := &ObjectPool[T]{reset: reset}
	p.pool.New = func() any {
		p.news.Add(1)
		return newFunc()
	}
	return p
}

// Get retrieves an object from the pool
func (p *ObjectPool[T]) Get() T {
	p.gets.Add(1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool
func (p *ObjectPool[T]) Put(x T) {
	if p.reset != nil {
		p.reset(x)
	}
	p.pool.Put(x)
}

// Stats returns how many objects were requested and how many had to be allocated
func (p *ObjectPool[T]) Stats() (gets, allocations int64) {
	return p.gets.Load(), p.news.Load()
}
