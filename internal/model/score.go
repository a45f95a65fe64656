package model

import "fmt"

// Score represents one notated piece
type Score struct {
	Metadata *Metadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Parts    []Part    `json:"parts" yaml:"parts"`
}

// Metadata carries descriptive fields of a piece. Excerpts share it with their source.
type Metadata struct {
	Title         string `json:"title,omitempty" yaml:"title,omitempty"`
	Composer      string `json:"composer,omitempty" yaml:"composer,omitempty"`
	Catalog       string `json:"catalog,omitempty" yaml:"catalog,omitempty"`               // e.g. "BWV 101.7"
	TonalCenter   string `json:"tonal_center,omitempty" yaml:"tonal_center,omitempty"`     // e.g. "D minor"
	TimeSignature string `json:"time_signature,omitempty" yaml:"time_signature,omitempty"` // e.g. "4/4"
}

// Part is one voice or instrument line
type Part struct {
	ID       string    `json:"id" yaml:"id"`
	Name     string    `json:"name,omitempty" yaml:"name,omitempty"`
	Measures []Measure `json:"measures" yaml:"measures"`
}

// Measure is one bar of a part. Events are ordered by offset.
type Measure struct {
	Number   int            `json:"number" yaml:"number"`     // pickup = 0
	Duration float64        `json:"duration" yaml:"duration"` // nominal length in quarter notes
	Events   []Event        `json:"events" yaml:"events"`
	Key      *KeySignature  `json:"key,omitempty" yaml:"key,omitempty"`
	Time     *TimeSignature `json:"time,omitempty" yaml:"time,omitempty"`
	Clef     *Clef          `json:"clef,omitempty" yaml:"clef,omitempty"`
}

// EventKind tags the Event variant
type EventKind int

const (
	KindNote EventKind = iota
	KindRest
)

func (k EventKind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindRest:
		return "rest"
	default:
		return "unknown"
	}
}

// Event is a Note or a Rest. Pitch is meaningful only for notes.
type Event struct {
	Kind     EventKind    `json:"kind" yaml:"kind"`
	Offset   float64      `json:"offset" yaml:"offset"`
	Duration float64      `json:"duration" yaml:"duration"`
	Pitch    Pitch        `json:"pitch,omitempty" yaml:"pitch,omitempty"`
	Fermata  *FermataMark `json:"fermata,omitempty" yaml:"fermata,omitempty"`
}

// Pitch is a MIDI note number plus its spelled name (e.g. "F#4")
type Pitch struct {
	MIDI int    `json:"midi" yaml:"midi"`
	Name string `json:"name" yaml:"name"`
}

// MarkKind records which notation mechanism carried a fermata
type MarkKind string

const (
	MarkExpression   MarkKind = "expression"
	MarkArticulation MarkKind = "articulation"
)

// FermataMark annotates a held event
type FermataMark struct {
	Via MarkKind `json:"via" yaml:"via"`
}

// NewNote creates a note event
func NewNote(offset, duration float64, pitch Pitch) Event {
	return Event{Kind: KindNote, Offset: offset, Duration: duration, Pitch: pitch}
}

// NewRest creates a rest event
func NewRest(offset, duration float64) Event {
	return Event{Kind: KindRest, Offset: offset, Duration: duration}
}

// WithFermata returns a copy of e carrying a fermata
func (e Event) WithFermata(via MarkKind) Event {
	e.Fermata = &FermataMark{Via: via}
	return e
}

// IsNote reports whether e is a note
func (e Event) IsNote() bool { return e.Kind == KindNote }

// IsRest reports whether e is a rest
func (e Event) IsRest() bool { return e.Kind == KindRest }

// End returns the offset at which e stops sounding
func (e Event) End() float64 { return e.Offset + e.Duration }

// Clone returns a copy of e that shares no pointers with it
func (e Event) Clone() Event {
	if e.Fermata != nil {
		f := *e.Fermata
		e.Fermata = &f
	}
	return e
}

// KeySignature is expressed as a count of sharps (positive) or flats (negative)
type KeySignature struct {
	Fifths int    `json:"fifths" yaml:"fifths"`
	Mode   string `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// TimeSignature is a meter such as 3/4
type TimeSignature struct {
	Numerator   int `json:"numerator" yaml:"numerator"`
	Denominator int `json:"denominator" yaml:"denominator"`
}

// BarDuration returns the length of a full bar in quarter notes
func (t TimeSignature) BarDuration() float64 {
	if t.Denominator <= 0 {
		return 0
	}
	return float64(t.Numerator) * 4.0 / float64(t.Denominator)
}

func (t TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", t.Numerator, t.Denominator)
}

// Clef is a staff clef such as G on line 2
type Clef struct {
	Sign string `json:"sign" yaml:"sign"`
	Line int    `json:"line" yaml:"line"`
}

// TrebleClef returns a G clef on the second line
func TrebleClef() *Clef { return &Clef{Sign: "G", Line: 2} }

// BassClef returns an F clef on the fourth line
func BassClef() *Clef { return &Clef{Sign: "F", Line: 4} }

func (c Clef) String() string {
	return fmt.Sprintf("%s%d", c.Sign, c.Line)
}

// Clone returns a deep copy of m
func (m Measure) Clone() Measure {
	out := m
	out.Events = make([]Event, len(m.Events))
	for i, e := range m.Events {
		out.Events[i] = e.Clone()
	}
	if m.Key != nil {
		k := *m.Key
		out.Key = &k
	}
	if m.Time != nil {
		t := *m.Time
		out.Time = &t
	}
	if m.Clef != nil {
		c := *m.Clef
		out.Clef = &c
	}
	return out
}

// Notes returns the note events of the measure in order
func (m Measure) Notes() []Event {
	var notes []Event
	for _, e := range m.Events {
		if e.IsNote() {
			notes = append(notes, e)
		}
	}
	return notes
}

// ContentStart returns the earliest event offset in the measure, 0 when it is empty
func (m Measure) ContentStart() float64 {
	if len(m.Events) == 0 {
		return 0
	}
	start := m.Events[0].Offset
	for _, e := range m.Events[1:] {
		if e.Offset < start {
			start = e.Offset
		}
	}
	return start
}

// ContentEnd returns the latest end offset of any event in the measure
func (m Measure) ContentEnd() float64 {
	var end float64
	for _, e := range m.Events {
		if e.End() > end {
			end = e.End()
		}
	}
	return end
}

// Events returns every event of the part in measure order
func (p Part) Events() []Event {
	var events []Event
	for _, m := range p.Measures {
		events = append(events, m.Events...)
	}
	return events
}

// LastNote returns the final note of the part, ignoring rests
func (p Part) LastNote() (Event, bool) {
	for i := len(p.Measures) - 1; i >= 0; i-- {
		events := p.Measures[i].Events
		for j := len(events) - 1; j >= 0; j-- {
			if events[j].IsNote() {
				return events[j], true
			}
		}
	}
	return Event{}, false
}

// EventCount returns the total number of events in the score
func (s *Score) EventCount() int {
	n := 0
	for _, p := range s.Parts {
		for _, m := range p.Measures {
			n += len(m.Events)
		}
	}
	return n
}

// Title returns the metadata title or an empty string
func (s *Score) Title() string {
	if s == nil || s.Metadata == nil {
		return ""
	}
	return s.Metadata.Title
}
