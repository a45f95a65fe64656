package model

import "fmt"

// FermataEvent locates one fermata in a voice
type FermataEvent struct {
	Measure  int     `json:"measure"`
	Offset   float64 `json:"offset"`
	Duration float64 `json:"duration"`
}

// End returns the offset within the measure where the held event stops
func (f FermataEvent) End() float64 {
	return f.Offset + f.Duration
}

// Position is a point in musical time: a measure number plus an offset inside it
type Position struct {
	Measure int     `json:"measure"`
	Offset  float64 `json:"offset"`
}

// Before reports whether p comes strictly before q
func (p Position) Before(q Position) bool {
	if p.Measure != q.Measure {
		return p.Measure < q.Measure
	}
	return p.Offset < q.Offset
}

// PhraseSpan is a half-open interval of musical time.
// A nil EndOffset means the span runs through the end of EndMeasure.
// With EndInclusive set, events starting at EndOffset are kept and only
// later onsets are cut; cadence windows stop at the fermata's onset this way.
type PhraseSpan struct {
	StartMeasure int      `json:"start_measure"`
	StartOffset  float64  `json:"start_offset"`
	EndMeasure   int      `json:"end_measure"`
	EndOffset    *float64 `json:"end_offset"`
	EndInclusive bool     `json:"end_inclusive,omitempty"`
}

// Start returns the span's start position
func (s PhraseSpan) Start() Position {
	return Position{Measure: s.StartMeasure, Offset: s.StartOffset}
}

// OpenEnded reports whether the span runs to the end of its last measure
func (s PhraseSpan) OpenEnded() bool {
	return s.EndOffset == nil
}

// IsEmpty reports whether the span covers no time at all
func (s PhraseSpan) IsEmpty() bool {
	if s.EndOffset == nil {
		return false
	}
	if s.StartMeasure != s.EndMeasure {
		return false
	}
	if s.EndInclusive {
		return *s.EndOffset < s.StartOffset
	}
	return *s.EndOffset <= s.StartOffset
}

func (s PhraseSpan) String() string {
	if s.EndOffset == nil {
		return fmt.Sprintf("%d:%g ~ %d:end", s.StartMeasure, s.StartOffset, s.EndMeasure)
	}
	if s.EndInclusive {
		return fmt.Sprintf("%d:%g ~ %d:%g]", s.StartMeasure, s.StartOffset, s.EndMeasure, *s.EndOffset)
	}
	return fmt.Sprintf("%d:%g ~ %d:%g", s.StartMeasure, s.StartOffset, s.EndMeasure, *s.EndOffset)
}

// Float64Ptr returns a pointer to v
func Float64Ptr(v float64) *float64 {
	return &v
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}
