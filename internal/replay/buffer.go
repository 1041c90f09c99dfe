// Package replay implements the bounded, FIFO-eviction pool of training
// examples shared between self-play and the trainer.
package replay

import (
	"math/rand"
	"sync"

	"github.com/brensch/alphasnake/internal/model"
)

// Buffer is a thread-safe ring buffer of model.Example. It grows until
// capacity, then overwrites the oldest entry.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	data     []model.Example
	head     int
}

// New constructs an empty Buffer with the given capacity.
func New(capacity int) *Buffer {
	return &Buffer{capacity: capacity, data: make([]model.Example, 0, capacity)}
}

// AddMany appends examples, overwriting the oldest entries once
// capacity is reached.
func (b *Buffer) AddMany(examples []model.Example) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ex := range examples {
		if len(b.data) < b.capacity {
			b.data = append(b.data, ex)
		} else {
			b.data[b.head] = ex
			b.head = (b.head + 1) % b.capacity
		}
	}
}

// Size returns the current populated length.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Sample draws n examples with replacement, independently and
// uniformly, returning up to min(n, Size()) copies. Sampling does not
// mutate the buffer.
func (b *Buffer) Sample(n int, rng *rand.Rand) []model.Example {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) == 0 {
		return nil
	}
	if n > len(b.data) {
		n = len(b.data)
	}
	out := make([]model.Example, n)
	for i := 0; i < n; i++ {
		out[i] = b.data[rng.Intn(len(b.data))]
	}
	return out
}
