package phrase

import (
	"github.com/ppiankov/chorale/internal/model"
)

// DefaultTolerance is the slack, in quarter notes, used when comparing offsets to bar boundaries
const DefaultTolerance = 1e-6

// BarLengths maps measure numbers to their nominal duration in quarter notes
type BarLengths map[int]float64

// Planner folds fermata events into phrase spans
type Planner struct {
	tolerance float64
}

// NewPlanner creates a planner; a non-positive tolerance falls back to DefaultTolerance
func NewPlanner(tolerance float64) *Planner {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Planner{tolerance: tolerance}
}

// Plan builds ordered, contiguous phrase spans from fermata events sorted by (measure, offset).
// first is the earliest onset of the reference voice and lastMeasure its final measure number.
// With no events the whole piece becomes one open-ended span.
func (p *Planner) Plan(events []model.FermataEvent, first model.Position, lastMeasure int, bars BarLengths) []model.PhraseSpan {
	var spans []model.PhraseSpan
	cursor := first

	for _, f := range events {
		end := f.End()
		spans = append(spans, model.PhraseSpan{
			StartMeasure: cursor.Measure,
			StartOffset:  cursor.Offset,
			EndMeasure:   f.Measure,
			EndOffset:    model.Float64Ptr(end),
		})

		next := model.Position{Measure: f.Measure, Offset: end}
		if bar, ok := bars[f.Measure]; ok && bar > 0 && end >= bar-p.tolerance {
			next = model.Position{Measure: f.Measure + 1, Offset: 0}
		}
		cursor = next
	}

	if cursor.Measure <= lastMeasure {
		spans = append(spans, model.PhraseSpan{
			StartMeasure: cursor.Measure,
			StartOffset:  cursor.Offset,
			EndMeasure:   lastMeasure,
			EndOffset:    nil,
		})
	}

	return spans
}

// PlanVoice derives the onset, measure range and bar lengths from the reference voice and plans its spans
func (p *Planner) PlanVoice(voice model.Part, events []model.FermataEvent) []model.PhraseSpan {
	firstMeasure, lastMeasure := MeasureRange(voice)
	first, ok := FirstOnset(voice)
	if !ok {
		first = model.Position{Measure: firstMeasure, Offset: 0}
	}
	return p.Plan(events, first, lastMeasure, BarLengthsOf(voice))
}

// PlanCadences builds one closing window per fermata event. A window normally covers the
// fermata's own measure; a downbeat fermata also takes in the preceding measure so the
// approach to the final chord is kept. The window ends at the fermata's onset, inclusive:
// notes sounding with the fermata stay, motion in other voices under the hold is cut.
func (p *Planner) PlanCadences(events []model.FermataEvent) []model.PhraseSpan {
	spans := make([]model.PhraseSpan, 0, len(events))
	for _, f := range events {
		start := f.Measure
		if f.Offset <= p.tolerance && f.Measure > 1 {
			start = f.Measure - 1
		}
		spans = append(spans, model.PhraseSpan{
			StartMeasure: start,
			StartOffset:  0,
			EndMeasure:   f.Measure,
			EndOffset:    model.Float64Ptr(f.Offset),
			EndInclusive: true,
		})
	}
	return spans
}

// FirstOnset returns the position of the earliest note in the voice
func FirstOnset(voice model.Part) (model.Position, bool) {
	var first model.Position
	found := false
	for _, m := range voice.Measures {
		for _, e := range m.Events {
			if !e.IsNote() {
				continue
			}
			pos := model.Position{Measure: m.Number, Offset: e.Offset}
			if !found || pos.Before(first) {
				first = pos
				found = true
			}
		}
	}
	return first, found
}

// MeasureRange returns the smallest and largest measure numbers of the voice, (1, 1) when it has none
func MeasureRange(voice model.Part) (int, int) {
	if len(voice.Measures) == 0 {
		return 1, 1
	}
	lo, hi := voice.Measures[0].Number, voice.Measures[0].Number
	for _, m := range voice.Measures[1:] {
		if m.Number < lo {
			lo = m.Number
		}
		if m.Number > hi {
			hi = m.Number
		}
	}
	return lo, hi
}

// BarLengthsOf collects the nominal duration of each measure of the voice
func BarLengthsOf(voice model.Part) BarLengths {
	bars := make(BarLengths, len(voice.Measures))
	for _, m := range voice.Measures {
		if _, seen := bars[m.Number]; seen {
			continue
		}
		if m.Duration > 0 {
			bars[m.Number] = m.Duration
		}
	}
	return bars
}
