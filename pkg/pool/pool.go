// Package pool provides slice pooling for the truth engine.
//
// Every event rebuilds its decay graphs, traversal stacks and hit index
// buckets from scratch. Pooling the scratch slices lets consecutive events
// reuse the same backing arrays instead of allocating new ones each time.
//
// Usage:
//
//	stack := framePool.Get()
//	defer framePool.Put(stack)
//
//	stack = append(stack, frame{vertex: root})
package pool

import (
	"sync"
)

// PoolConfig configures object pooling behavior.
type PoolConfig struct {
	// Enabled controls whether pooling is active
	Enabled bool

	// MaxSize limits the capacity of slices returned to a pool.
	// Larger slices are dropped so one pathological event does not pin memory.
	MaxSize int
}

var (
	configMu     sync.RWMutex
	globalConfig = PoolConfig{
		Enabled: true,
		MaxSize: 1 << 16,
	}
)

// Configure sets global pool configuration.
// Should be called early during initialization.
func Configure(config PoolConfig) {
	configMu.Lock()
	globalConfig = config
	configMu.Unlock()
}

// IsEnabled returns whether pooling is enabled.
func IsEnabled() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig.Enabled
}

func current() PoolConfig {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// =============================================================================
// Generic Slice Pool
// =============================================================================

// SlicePool hands out zero-length slices of T with pre-allocated capacity.
type SlicePool[T any] struct {
	initialCap int
	pool       sync.Pool
}

// NewSlicePool creates a pool whose fresh slices have the given capacity.
func NewSlicePool[T any](initialCap int) *SlicePool[T] {
	p := &SlicePool[T]{initialCap: initialCap}
	p.pool.New = func() any {
		s := make([]T, 0, initialCap)
		return &s
	}
	return p
}

// Get returns an empty slice. Call Put when done.
func (p *SlicePool[T]) Get() []T {
	if !IsEnabled() {
		return make([]T, 0, p.initialCap)
	}
	s := p.pool.Get().(*[]T)
	return (*s)[:0]
}

// Put returns a slice to the pool. The elements are zeroed first so pooled
// slices never keep references alive.
func (p *SlicePool[T]) Put(s []T) {
	cfg := current()
	if !cfg.Enabled || s == nil {
		return
	}
	if cap(s) > cfg.MaxSize {
		return
	}
	clear(s[:cap(s)])
	s = s[:0]
	p.pool.Put(&s)
}

// =============================================================================
// Index Slice Pool
// =============================================================================

var intSlicePool = NewSlicePool[int](32)

// GetIntSlice returns an int slice from the pool.
func GetIntSlice() []int {
	return intSlicePool.Get()
}

// PutIntSlice returns an int slice to the pool.
func PutIntSlice(s []int) {
	intSlicePool.Put(s)
}

// =============================================================================
// Bool Slice Pool
// =============================================================================

var boolSlicePool = NewSlicePool[bool](64)

// GetBoolSlice returns a cleared bool slice of length n, used for visited
// markers during traversal.
func GetBoolSlice(n int) []bool {
	s := boolSlicePool.Get()
	if cap(s) < n {
		return make([]bool, n)
	}
	return s[:n]
}

// PutBoolSlice returns a bool slice to the pool.
func PutBoolSlice(s []bool) {
	boolSlicePool.Put(s)
}
