// Package model defines shared data structures.
package model

import "time"

// KeySlot is a single (key code, analog value) observation.
type KeySlot struct {
	Code  uint16
	Value float32
}

// Frame is the decoded set of active keys from one poll, in buffer scan order.
type Frame []KeySlot

// Contains reports whether any slot in the frame carries code.
func (f Frame) Contains(code uint16) bool {
	for _, slot := range f {
		if slot.Code == code {
			return true
		}
	}
	return false
}

// Record is one persisted log row.
type Record struct {
	// Timestamp is seconds since the Unix epoch.
	Timestamp float64
	KeyCount  int
	Slots     []KeySlot
}

// Time converts the record timestamp to a time.Time.
func (r Record) Time() time.Time {
	sec := int64(r.Timestamp)
	nsec := int64((r.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// RecordConfig defines recording settings.
type RecordConfig struct {
	Library      string
	BufferSize   int
	Exclude      []uint16
	StripZero    bool
	Interval     time.Duration
	StartCode    uint16
	StopCode     uint16
	KeycodeMode  string
	OutputDir    string
	Prefix       string
	CheckDevice  bool
	SkipIndexing bool
}

// Session describes a finished recording session.
type Session struct {
	ID         string
	StartedAt  time.Time
	EndedAt    time.Time
	LogPath    string
	Records    int
	ReadErrors int
	BufferSize int
	StartCode  uint16
	StopCode   uint16
}

// KeyAggregate summarizes all observations of one key code within a log.
type KeyAggregate struct {
	Code         uint16
	Observations int
	Peak         float32
	ValueSum     float64
}
