package audio

// ----- Ring Buffer ----- //

// RingBuffer is a fixed capacity FIFO of samples.
type RingBuffer struct {
	data  []float32
	read  int
	count int
}

// NewRingBuffer ...
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{data: make([]float32, capacity)}
}

// Len ...
func (rb *RingBuffer) Len() int { return rb.count }

// Cap ...
func (rb *RingBuffer) Cap() int { return len(rb.data) }

// Free ...
func (rb *RingBuffer) Free() int { return len(rb.data) - rb.count }

// Reset empties the buffer.
func (rb *RingBuffer) Reset() {
	rb.read = 0
	rb.count = 0
}

// Push appends x. It reports false when the buffer is full.
func (rb *RingBuffer) Push(x float32) bool {
	if rb.count == len(rb.data) {
		return false
	}
	i := rb.read + rb.count
	if i >= len(rb.data) {
		i -= len(rb.data)
	}
	rb.data[i] = x
	rb.count++
	return true
}

// Pop removes the oldest sample. It returns 0 and false when the buffer is
// empty.
func (rb *RingBuffer) Pop() (float32, bool) {
	if rb.count == 0 {
		return 0, false
	}
	x := rb.data[rb.read]
	rb.read++
	if rb.read == len(rb.data) {
		rb.read = 0
	}
	rb.count--
	return x, true
}

// Write pushes as many samples of src as fit and returns that number.
func (rb *RingBuffer) Write(src []float32) int {
	n := 0
	for _, x := range src {
		if !rb.Push(x) {
			break
		}
		n++
	}
	return n
}

// Read pops up to len(dst) samples and returns that number.
func (rb *RingBuffer) Read(dst []float32) int {
	n := min(len(dst), rb.count)
	for i := 0; i < n; i++ {
		dst[i], _ = rb.Pop()
	}
	return n
}

// Fill pushes n zeros, or as many as fit.
func (rb *RingBuffer) Fill(n int) {
	for i := 0; i < n && rb.Push(0); i++ {
	}
}
