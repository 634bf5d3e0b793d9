// Package decoder turns raw full-buffer reads into filtered frames.
package decoder

import (
	"errors"
	"fmt"

	"github.com/verte-zerg/analogrec/internal/device"
	"github.com/verte-zerg/analogrec/internal/model"
)

// ErrReadFailed marks a buffer read that returned a negative status.
var ErrReadFailed = errors.New("buffer read failed")

// ReadError carries the negative status of a failed buffer read.
type ReadError struct {
	Status int
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%v: %s (%d)", ErrReadFailed, device.ResultName(e.Status), e.Status)
}

func (e *ReadError) Unwrap() error {
	return ErrReadFailed
}

// Options control slot filtering.
type Options struct {
	Exclusions *Exclusions
	// StripZero drops empty slots: code 0 or a value of exactly 0.
	StripZero bool
}

// Decode converts the first count slots of buf into a frame.
//
// A negative count yields an empty frame and a *ReadError; an empty frame with
// a nil error means no keys were active. Counts beyond the buffer capacity are
// truncated. Decode does not modify buf.
func Decode(count int, buf *device.Buffer, opts Options) (model.Frame, error) {
	if count < 0 {
		return model.Frame{}, &ReadError{Status: count}
	}
	if count > buf.Cap() {
		count = buf.Cap()
	}
	frame := make(model.Frame, 0, count)
	for i := 0; i < count; i++ {
		slot := buf.Slot(i)
		if opts.Exclusions.Contains(slot.Code) {
			continue
		}
		if opts.StripZero && (slot.Code == 0 || slot.Value == 0) {
			continue
		}
		frame = append(frame, slot)
	}
	return frame, nil
}
