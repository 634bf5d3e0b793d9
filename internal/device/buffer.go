package device

import "github.com/verte-zerg/analogrec/internal/model"

// Buffer size bounds for full-buffer reads.
const (
	MinBufferSize     = 1
	MaxBufferSize     = 64
	DefaultBufferSize = 32
)

// ClampBufferSize bounds n to [MinBufferSize, MaxBufferSize].
func ClampBufferSize(n int) int {
	if n < MinBufferSize {
		return MinBufferSize
	}
	if n > MaxBufferSize {
		return MaxBufferSize
	}
	return n
}

// Buffer is the scratch region handed to the SDK on every full-buffer read.
// It is allocated once and reused; Clear must run before each read so that
// slots beyond the returned count never carry data from an earlier poll.
type Buffer struct {
	Codes  []uint16
	Values []float32
}

// NewBuffer allocates a buffer holding size slots, clamped to the allowed range.
func NewBuffer(size int) *Buffer {
	size = ClampBufferSize(size)
	return &Buffer{
		Codes:  make([]uint16, size),
		Values: make([]float32, size),
	}
}

// Cap returns the number of slots.
func (b *Buffer) Cap() int {
	return len(b.Codes)
}

// Clear zeroes every slot.
func (b *Buffer) Clear() {
	clear(b.Codes)
	clear(b.Values)
}

// Slot returns slot i.
func (b *Buffer) Slot(i int) model.KeySlot {
	return model.KeySlot{Code: b.Codes[i], Value: b.Values[i]}
}
