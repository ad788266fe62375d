package experience

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCapacity is used when a buffer is created with a non-positive capacity
const DefaultCapacity = 10000

// ErrInsufficientData is returned by Sample when fewer transitions are stored than requested
var ErrInsufficientData = errors.New("insufficient data in experience buffer")

// Buffer represents a thread-safe circular buffer of transitions
type Buffer struct {
	mu       sync.RWMutex
	buffer   []Transition
	capacity int
	size     int
	head     int // Write position
	tail     int // Oldest entry

	rng *rand.Rand

	// Statistics
	totalAdded   int64
	totalDropped int64
	totalSampled int64

	logger zerolog.Logger
}

// NewBuffer creates a new experience buffer with the specified capacity.
// A nil rng is seeded from the clock.
func NewBuffer(capacity int, rng *rand.Rand, logger zerolog.Logger) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Buffer{
		buffer:   make([]Transition, capacity),
		capacity: capacity,
		rng:      rng,
		logger:   logger.With().Str("component", "experience_buffer").Logger(),
	}
}

// Add appends a transition, evicting the oldest one when the buffer is full
func (b *Buffer) Add(t Transition) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.add(t)
}

func (b *Buffer) add(t Transition) {
	if b.size >= b.capacity {
		// Drop oldest transition (circular buffer behavior)
		b.tail = (b.tail + 1) % b.capacity
		b.totalDropped++
	} else {
		b.size++
	}

	b.buffer[b.head] = t
	b.head = (b.head + 1) % b.capacity
	b.totalAdded++
}

// Sample draws n distinct transitions uniformly at random. It returns
// ErrInsufficientData without touching the RNG when fewer than n are stored.
func (b *Buffer) Sample(n int) ([]Transition, error) {
	// Sampling advances the RNG, so it takes the write lock
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 {
		return nil, fmt.Errorf("sample size must be positive, got %d", n)
	}
	if b.size < n {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, b.size, n)
	}

	// Partial Fisher-Yates over the logical indices
	indices := make([]int, b.size)
	for i := range indices {
		indices[i] = i
	}
	result := make([]Transition, n)
	for i := 0; i < n; i++ {
		j := i + b.rng.Intn(b.size-i)
		indices[i], indices[j] = indices[j], indices[i]
		result[i] = b.buffer[(b.tail+indices[i])%b.capacity]
	}
	b.totalSampled += int64(n)

	return result, nil
}

// GetLatest returns the n most recent transitions, oldest first
func (b *Buffer) GetLatest(n int) []Transition {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > b.size {
		n = b.size
	}

	result := make([]Transition, n)
	for i := 0; i < n; i++ {
		idx := (b.head - n + i + b.capacity) % b.capacity
		result[i] = b.buffer[idx]
	}

	return result
}

// Size returns the current number of transitions in the buffer
func (b *Buffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Capacity returns the maximum capacity of the buffer
func (b *Buffer) Capacity() int {
	return b.capacity
}

// IsFull returns true if the buffer is at capacity
func (b *Buffer) IsFull() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size >= b.capacity
}

// Stats returns buffer statistics
func (b *Buffer) Stats() BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BufferStats{
		CurrentSize:    b.size,
		Capacity:       b.capacity,
		TotalAdded:     b.totalAdded,
		TotalDropped:   b.totalDropped,
		TotalSampled:   b.totalSampled,
		UtilizationPct: float64(b.size) / float64(b.capacity) * 100,
	}
}

// BufferStats contains buffer statistics
type BufferStats struct {
	CurrentSize    int
	Capacity       int
	TotalAdded     int64
	TotalDropped   int64
	TotalSampled   int64
	UtilizationPct float64
}
