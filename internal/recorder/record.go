// Package recorder persists frames as CSV rows and reads them back.
package recorder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/analogrec/internal/model"
)

// PayloadSeparator joins the flattened code/value pairs of a row.
const PayloadSeparator = "|"

// Timestamp converts t to fractional seconds since the Unix epoch.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// NewRecord builds the record persisted for frame observed at ts.
func NewRecord(frame model.Frame, ts time.Time) model.Record {
	return model.Record{
		Timestamp: Timestamp(ts),
		KeyCount:  len(frame),
		Slots:     []model.KeySlot(frame),
	}
}

// FormatRecord renders r as the three CSV fields: timestamp, key_count, payload.
func FormatRecord(r model.Record) []string {
	parts := make([]string, 0, len(r.Slots)*2)
	for _, slot := range r.Slots {
		parts = append(parts,
			strconv.FormatUint(uint64(slot.Code), 10),
			strconv.FormatFloat(float64(slot.Value), 'g', -1, 32),
		)
	}
	return []string{
		strconv.FormatFloat(r.Timestamp, 'f', 6, 64),
		strconv.Itoa(r.KeyCount),
		strings.Join(parts, PayloadSeparator),
	}
}

// ParseRecord parses the CSV fields of one row.
func ParseRecord(fields []string) (model.Record, error) {
	if len(fields) != 3 {
		return model.Record{}, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	ts, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return model.Record{}, fmt.Errorf("invalid timestamp %q: %w", fields[0], err)
	}
	count, err := strconv.Atoi(fields[1])
	if err != nil || count < 0 {
		return model.Record{}, fmt.Errorf("invalid key count %q", fields[1])
	}
	var slots []model.KeySlot
	if fields[2] != "" {
		parts := strings.Split(fields[2], PayloadSeparator)
		if len(parts)%2 != 0 {
			return model.Record{}, fmt.Errorf("payload has odd number of values: %d", len(parts))
		}
		slots = make([]model.KeySlot, 0, len(parts)/2)
		for i := 0; i < len(parts); i += 2 {
			code, err := strconv.ParseUint(parts[i], 10, 16)
			if err != nil {
				return model.Record{}, fmt.Errorf("invalid key code %q: %w", parts[i], err)
			}
			value, err := strconv.ParseFloat(parts[i+1], 32)
			if err != nil {
				return model.Record{}, fmt.Errorf("invalid value %q: %w", parts[i+1], err)
			}
			slots = append(slots, model.KeySlot{Code: uint16(code), Value: float32(value)})
		}
	}
	if len(slots) != count {
		return model.Record{}, fmt.Errorf("key count %d does not match %d payload pairs", count, len(slots))
	}
	return model.Record{Timestamp: ts, KeyCount: count, Slots: slots}, nil
}
