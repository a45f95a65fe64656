package extract

import (
	"github.com/ppiankov/chorale/internal/model"
)

// DefaultLowerVoices are the part indexes of a four-voice texture that read from a bass clef
var DefaultLowerVoices = []int{2, 3}

// Extractor carves self-contained excerpt scores out of a source score
type Extractor struct {
	tolerance   float64
	lowerVoices map[int]bool
}

// NewExtractor creates an extractor. A nil lowerVoices uses DefaultLowerVoices;
// an empty, non-nil slice forces no part to the bass clef.
func NewExtractor(tolerance float64, lowerVoices []int) *Extractor {
	if tolerance <= 0 {
		tolerance = 1e-6
	}
	if lowerVoices == nil {
		lowerVoices = DefaultLowerVoices
	}
	lower := make(map[int]bool, len(lowerVoices))
	for _, idx := range lowerVoices {
		lower[idx] = true
	}
	return &Extractor{tolerance: tolerance, lowerVoices: lower}
}

// baseline is the first key, meter and clef found anywhere in a part
type baseline struct {
	key  *model.KeySignature
	time *model.TimeSignature
	clef *model.Clef
}

func sampleBaseline(p model.Part) baseline {
	var b baseline
	for _, m := range p.Measures {
		if b.key == nil && m.Key != nil {
			b.key = m.Key
		}
		if b.time == nil && m.Time != nil {
			b.time = m.Time
		}
		if b.clef == nil && m.Clef != nil {
			b.clef = m.Clef
		}
		if b.key != nil && b.time != nil && b.clef != nil {
			break
		}
	}
	return b
}

// Extract returns a new score holding only the events inside span.
// The source score is never modified; the excerpt shares only its metadata.
func (x *Extractor) Extract(score *model.Score, span model.PhraseSpan) *model.Score {
	out := &model.Score{
		Metadata: score.Metadata,
		Parts:    make([]model.Part, 0, len(score.Parts)),
	}
	for idx, p := range score.Parts {
		out.Parts = append(out.Parts, x.extractPart(idx, p, span))
	}
	return out
}

func (x *Extractor) extractPart(idx int, p model.Part, span model.PhraseSpan) model.Part {
	base := sampleBaseline(p)
	part := model.Part{ID: p.ID, Name: p.Name}

	for _, m := range p.Measures {
		if m.Number < span.StartMeasure || m.Number > span.EndMeasure {
			continue
		}
		part.Measures = append(part.Measures, x.trimMeasure(m, span))
	}

	if len(part.Measures) == 0 {
		return part
	}

	first := &part.Measures[0]
	if first.Key == nil && base.key != nil {
		k := *base.key
		first.Key = &k
	}
	if first.Time == nil && base.time != nil {
		t := *base.time
		first.Time = &t
	}
	switch {
	case x.lowerVoices[idx]:
		first.Clef = model.BassClef()
	case base.clef != nil:
		c := *base.clef
		first.Clef = &c
	default:
		first.Clef = model.TrebleClef()
	}

	if span.EndOffset != nil {
		last := &part.Measures[len(part.Measures)-1]
		last.Events = dropTrailingRests(last.Events, x.tolerance)
	}

	return part
}

// trimMeasure clones m and applies the span's start and end cuts
func (x *Extractor) trimMeasure(m model.Measure, span model.PhraseSpan) model.Measure {
	out := m.Clone()
	out.Events = out.Events[:0]

	isStart := m.Number == span.StartMeasure
	isEnd := span.EndOffset != nil && m.Number == span.EndMeasure

	for _, e := range m.Events {
		if isStart && e.Offset < span.StartOffset-x.tolerance {
			continue
		}
		if isEnd && x.pastEnd(e, *span.EndOffset, span.EndInclusive) {
			continue
		}
		e = e.Clone()
		if isStart {
			e.Offset -= span.StartOffset
			if e.Offset < 0 {
				e.Offset = 0
			}
		}
		out.Events = append(out.Events, e)
	}

	return out
}

// pastEnd reports whether e starts beyond the span's end cut
func (x *Extractor) pastEnd(e model.Event, end float64, inclusive bool) bool {
	if inclusive {
		return e.Offset > end+x.tolerance
	}
	return e.Offset >= end-x.tolerance
}

// dropTrailingRests removes rests that start at or after the end of the last note
func dropTrailingRests(events []model.Event, tolerance float64) []model.Event {
	var lastNoteEnd float64
	for _, e := range events {
		if e.IsNote() && e.End() > lastNoteEnd {
			lastNoteEnd = e.End()
		}
	}
	if lastNoteEnd <= 0 {
		return events
	}

	kept := events[:0]
	for _, e := range events {
		if e.IsRest() && e.Offset >= lastNoteEnd-tolerance {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}
