package decoder

import (
	"errors"
	"reflect"
	"testing"

	"github.com/verte-zerg/analogrec/internal/device"
	"github.com/verte-zerg/analogrec/internal/model"
)

func fill(slots ...model.KeySlot) *device.Buffer {
	buf := device.NewBuffer(len(slots))
	for i, s := range slots {
		buf.Codes[i] = s.Code
		buf.Values[i] = s.Value
	}
	return buf
}

func sampleBuffer() *device.Buffer {
	return fill(
		model.KeySlot{Code: 41, Value: 0.0},
		model.KeySlot{Code: 44, Value: 0.9},
		model.KeySlot{Code: 0, Value: 0.0},
	)
}

func TestDecodeStripsZeroSlots(t *testing.T) {
	frame, err := Decode(3, sampleBuffer(), Options{Exclusions: NewExclusions(), StripZero: true})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := model.Frame{{Code: 44, Value: 0.9}}
	if !reflect.DeepEqual(frame, want) {
		t.Fatalf("expected %v, got %v", want, frame)
	}
}

func TestDecodeAppliesExclusions(t *testing.T) {
	frame, err := Decode(3, sampleBuffer(), Options{Exclusions: NewExclusions(44), StripZero: true})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(frame) != 0 {
		t.Fatalf("expected empty frame, got %v", frame)
	}
}

func TestDecodeNegativeCount(t *testing.T) {
	buf := sampleBuffer()
	frame, err := Decode(-1, buf, Options{StripZero: true})
	if len(frame) != 0 {
		t.Fatalf("expected empty frame, got %v", frame)
	}
	if !errors.Is(err, ErrReadFailed) {
		t.Fatalf("expected ErrReadFailed, got %v", err)
	}
	var readErr *ReadError
	if !errors.As(err, &readErr) || readErr.Status != -1 {
		t.Fatalf("expected ReadError with status -1, got %v", err)
	}

	frame, err = Decode(device.ResultNoDevices, buf, Options{})
	if len(frame) != 0 || !errors.Is(err, ErrReadFailed) {
		t.Fatalf("expected read error for SDK status, got %v %v", frame, err)
	}
}

func TestDecodeZeroCountIsEmptyNotError(t *testing.T) {
	frame, err := Decode(0, sampleBuffer(), Options{})
	if err != nil {
		t.Fatalf("zero count must not be an error: %v", err)
	}
	if len(frame) != 0 {
		t.Fatalf("expected empty frame, got %v", frame)
	}
}

func TestDecodeWithoutStripKeepsZeroSlots(t *testing.T) {
	frame, err := Decode(3, sampleBuffer(), Options{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := model.Frame{{Code: 41, Value: 0}, {Code: 44, Value: 0.9}, {Code: 0, Value: 0}}
	if !reflect.DeepEqual(frame, want) {
		t.Fatalf("expected %v, got %v", want, frame)
	}
}

func TestDecodeRespectsCountAndCapacity(t *testing.T) {
	buf := fill(
		model.KeySlot{Code: 4, Value: 0.1},
		model.KeySlot{Code: 5, Value: 0.2},
		model.KeySlot{Code: 6, Value: 0.3},
	)
	frame, _ := Decode(2, buf, Options{StripZero: true})
	if len(frame) != 2 || frame[1].Code != 5 {
		t.Fatalf("expected first two slots, got %v", frame)
	}
	frame, _ = Decode(10, buf, Options{StripZero: true})
	if len(frame) != buf.Cap() {
		t.Fatalf("expected count truncated to capacity %d, got %d", buf.Cap(), len(frame))
	}
}

func TestDecodeProperties(t *testing.T) {
	buf := fill(
		model.KeySlot{Code: 7, Value: 0.4},
		model.KeySlot{Code: 8, Value: 0},
		model.KeySlot{Code: 9, Value: 1},
		model.KeySlot{Code: 7, Value: 0.2},
		model.KeySlot{Code: 10, Value: 0.7},
		model.KeySlot{Code: 11, Value: 0.05},
	)
	ex := NewExclusions(9, 11)
	for count := 0; count <= buf.Cap(); count++ {
		for _, strip := range []bool{true, false} {
			opts := Options{Exclusions: ex, StripZero: strip}
			first, err := Decode(count, buf, opts)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			second, _ := Decode(count, buf, opts)
			if !reflect.DeepEqual(first, second) {
				t.Fatalf("decode not deterministic: %v vs %v", first, second)
			}
			if len(first) > count {
				t.Fatalf("frame longer than count: %d > %d", len(first), count)
			}
			next := 0
			for _, slot := range first {
				if ex.Contains(slot.Code) {
					t.Fatalf("excluded code %d present", slot.Code)
				}
				if strip && slot.Value == 0 {
					t.Fatalf("zero slot present with strip enabled: %v", first)
				}
				// Each slot must appear in the raw scan after the previous one.
				found := false
				for ; next < count; next++ {
					if buf.Slot(next) == slot {
						found = true
						next++
						break
					}
				}
				if !found {
					t.Fatalf("frame %v is not an ordered subsequence of the raw scan", first)
				}
			}
		}
	}
}

func TestDecodeDoesNotModifyBuffer(t *testing.T) {
	buf := sampleBuffer()
	before := append([]uint16(nil), buf.Codes...)
	if _, err := Decode(3, buf, Options{Exclusions: NewExclusions(44), StripZero: true}); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(before, buf.Codes) {
		t.Fatalf("buffer modified: %v -> %v", before, buf.Codes)
	}
}

func TestExclusionsSetReplaces(t *testing.T) {
	ex := NewExclusions(1, 2, 3)
	if ex.Len() != 3 || !ex.Contains(2) {
		t.Fatalf("unexpected set: %v", ex.Codes())
	}
	ex.Set([]uint16{9, 4})
	if ex.Contains(2) {
		t.Fatalf("old codes must be dropped after Set")
	}
	if got := ex.Codes(); !reflect.DeepEqual(got, []uint16{4, 9}) {
		t.Fatalf("expected sorted codes [4 9], got %v", got)
	}
	var nilSet *Exclusions
	if nilSet.Contains(4) || nilSet.Len() != 0 {
		t.Fatalf("nil set must exclude nothing")
	}
}
