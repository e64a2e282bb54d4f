package audio

// LevelRing is a fixed-capacity circular buffer of frame levels.
// The noise calibrator keeps its sample history here so memory stays
// bounded regardless of session duration. Oldest levels are overwritten
// once the ring is full.
//
// LevelRing is not goroutine safe; each session owns exactly one and
// accesses it from its processing goroutine only.
type LevelRing struct {
	data     []float64
	capacity int
	writePos int
	size     int
}

// NewLevelRing creates a ring holding at most capacity levels.
func NewLevelRing(capacity int) *LevelRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &LevelRing{
		data:     make([]float64, capacity),
		capacity: capacity,
	}
}

// Push appends a level, overwriting the oldest one when full.
func (r *LevelRing) Push(level float64) {
	r.data[r.writePos] = level
	r.writePos = (r.writePos + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
}

// Len returns the number of levels currently stored.
func (r *LevelRing) Len() int {
	return r.size
}

// Values returns the stored levels in insertion order, oldest first.
func (r *LevelRing) Values() []float64 {
	out := make([]float64, 0, r.size)
	start := r.writePos - r.size
	if start < 0 {
		start += r.capacity
	}
	for i := 0; i < r.size; i++ {
		out = append(out, r.data[(start+i)%r.capacity])
	}
	return out
}

// Last returns up to n of the most recent levels, oldest first.
func (r *LevelRing) Last(n int) []float64 {
	values := r.Values()
	if n >= len(values) {
		return values
	}
	return values[len(values)-n:]
}

// Reset discards all stored levels.
func (r *LevelRing) Reset() {
	r.writePos = 0
	r.size = 0
}
