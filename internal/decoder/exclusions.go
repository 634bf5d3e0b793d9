package decoder

import "sort"

// Exclusions is a set of key codes dropped from every decoded frame.
type Exclusions struct {
	codes map[uint16]struct{}
}

// NewExclusions builds a set from codes.
func NewExclusions(codes ...uint16) *Exclusions {
	e := &Exclusions{}
	e.Set(codes)
	return e
}

// Set replaces the excluded codes.
func (e *Exclusions) Set(codes []uint16) {
	e.codes = make(map[uint16]struct{}, len(codes))
	for _, code := range codes {
		e.codes[code] = struct{}{}
	}
}

// Contains reports whether code is excluded. A nil set excludes nothing.
func (e *Exclusions) Contains(code uint16) bool {
	if e == nil {
		return false
	}
	_, ok := e.codes[code]
	return ok
}

// Len returns the number of excluded codes.
func (e *Exclusions) Len() int {
	if e == nil {
		return 0
	}
	return len(e.codes)
}

// Codes returns the excluded codes in ascending order.
func (e *Exclusions) Codes() []uint16 {
	if e == nil {
		return nil
	}
	out := make([]uint16, 0, len(e.codes))
	for code := range e.codes {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
