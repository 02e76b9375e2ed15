// Package pool recycles scratch slices between requests.
package pool

import (
	"sync"
)

// Slices is a sync.Pool of []T scratch buffers.
type Slices[T any] struct {
	pool sync.Pool
}

// NewSlices creates a pool whose fresh slices have the given capacity.
func NewSlices[T any](capacity int) *Slices[T] {
	return &Slices[T]{
		pool: sync.Pool{
			New: func() interface{} {
				buffer := make([]T, 0, capacity)
				return &buffer
			},
		},
	}
}

// Get returns a slice of length n. Its contents are unspecified.
func (p *Slices[T]) Get(n int) *[]T {
	buffer := p.pool.Get().(*[]T)
	if cap(*buffer) < n {
		*buffer = make([]T, n)
	}
	*buffer = (*buffer)[:n]
	return buffer
}

// Put returns a slice to the pool. Length is reset, capacity kept.
func (p *Slices[T]) Put(buffer *[]T) {
	*buffer = (*buffer)[:0]
	p.pool.Put(buffer)
}

// Bytes pools token buffers for the normalizer.
type Bytes = Slices[byte]

// Floats pools vector scratch space for the metric engine.
type Floats = Slices[float64]
