// Package collections provides generic data structures for efficient data processing.
package collections

import (
	"sync"
)

// ============================================================================
// Generic Slice Pools - Reduce memory allocation overhead
// ============================================================================

// SlicePool is a generic pool for slices of any type.
type SlicePool[T any] struct {
	pool       sync.Pool
	initialCap int
}

// NewSlicePool creates a new slice pool with the given initial capacity.
func NewSlicePool[T any](initialCap int) *SlicePool[T] {
	if initialCap <= 0 {
		initialCap = 256
	}
	return &SlicePool[T]{
		initialCap: initialCap,
		pool: sync.Pool{
			New: func() interface{} {
				s := make([]T, 0, initialCap)
				return &s
			},
		},
	}
}

// Get gets a slice from the pool.
func (p *SlicePool[T]) Get() *[]T {
	return p.pool.Get().(*[]T)
}

// Put returns a slice to the pool after clearing it.
func (p *SlicePool[T]) Put(s *[]T) {
	*s = (*s)[:0]
	p.pool.Put(s)
}

// ============================================================================
// Pre-defined Slice Pools for Common Types
// ============================================================================

// Float32SlicePool is a pool for []float32 slices, sized for a typical
// parameter fragment. The extractor uses it so repeated narrow-and-copy
// operations over (param, tp, dp, moment) quadruples reuse backing arrays
// instead of allocating one per fragment.
var Float32SlicePool = NewSlicePool[float32](4096)

// GetFloat32Slice gets a slice from the pool.
func GetFloat32Slice() *[]float32 {
	return Float32SlicePool.Get()
}

// PutFloat32Slice returns a slice to the pool after clearing it.
func PutFloat32Slice(s *[]float32) {
	Float32SlicePool.Put(s)
}
