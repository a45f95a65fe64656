package voice

import (
	"math"
	"slices"

	"github.com/ppiankov/chorale/internal/model"
)

// Names of the four chorale voices in part order
var Names = []string{"soprano", "alto", "tenor", "bass"}

// Resolve maps a configured voice index to a part index; -1 selects the last part.
// It fails with a MissingVoiceError when the score has no such part.
func Resolve(score *model.Score, name string, idx int) (int, error) {
	n := len(score.Parts)
	if idx == -1 {
		idx = n - 1
	}
	if idx < 0 || idx >= n {
		return 0, &model.MissingVoiceError{Voice: name, Index: idx, Parts: n}
	}
	return idx, nil
}

// Data flattens a part into parallel pitch, name, duration and interval lists.
// Rests appear as nil pitches; an interval is nil unless both neighbours sound.
func Data(part model.Part) model.VoiceData {
	var d model.VoiceData
	for _, m := range part.Measures {
		for _, e := range m.Events {
			if e.IsNote() {
				d.MIDI = append(d.MIDI, model.IntPtr(e.Pitch.MIDI))
				d.Names = append(d.Names, e.Pitch.Name)
			} else {
				d.MIDI = append(d.MIDI, nil)
				d.Names = append(d.Names, "rest")
			}
			d.Durations = append(d.Durations, e.Duration)
		}
	}

	d.Intervals = make([]*int, len(d.MIDI))
	for i := 1; i < len(d.MIDI); i++ {
		prev, cur := d.MIDI[i-1], d.MIDI[i]
		if prev != nil && cur != nil {
			d.Intervals[i] = model.IntPtr(*cur - *prev)
		}
	}
	return d
}

// Final returns the last sounding note of a part; a zero FinalNote when it has none
func Final(part model.Part) model.FinalNote {
	e, ok := part.LastNote()
	if !ok {
		return model.FinalNote{}
	}
	return model.FinalNote{Pitch: model.IntPtr(e.Pitch.MIDI), Name: e.Pitch.Name}
}

// FinalSimultaneity collects the last sounding pitch of every part, lowest first
func FinalSimultaneity(score *model.Score) []int {
	var chord []int
	for _, p := range score.Parts {
		if e, ok := p.LastNote(); ok {
			chord = append(chord, e.Pitch.MIDI)
		}
	}
	slices.Sort(chord)
	return chord
}

// firstTime returns the first time signature of the part
func firstTime(part model.Part) (model.TimeSignature, bool) {
	for _, m := range part.Measures {
		if m.Time != nil {
			return *m.Time, true
		}
	}
	return model.TimeSignature{}, false
}

// PickupBeats returns the length of the opening anacrusis in quarter notes, 0 when the piece
// starts on a full bar. A measure numbered 0 is always a pickup; otherwise the first measure
// counts as one when its content is shorter than a full bar.
func PickupBeats(part model.Part, tolerance float64) float64 {
	ts, ok := firstTime(part)
	if !ok || len(part.Measures) == 0 {
		return 0
	}
	full := ts.BarDuration()

	for _, m := range part.Measures {
		if m.Number == 0 {
			return m.ContentEnd() - m.ContentStart()
		}
	}

	first := part.Measures[0]
	actual := first.ContentEnd() - first.ContentStart()
	if math.Abs(actual-full) < tolerance {
		return 0
	}
	return actual
}

// Beat converts an offset inside a measure to a 1-based beat number of the meter.
// Compound meters count dotted beats.
func Beat(offset float64, ts model.TimeSignature) float64 {
	if ts.Denominator <= 0 {
		return offset + 1
	}
	unit := 4.0 / float64(ts.Denominator)
	if ts.Numerator > 3 && ts.Numerator%3 == 0 && ts.Denominator >= 8 {
		unit *= 3
	}
	return offset/unit + 1
}

// TimeAt returns the time signature in force at the given measure number of the part
func TimeAt(part model.Part, measure int) (model.TimeSignature, bool) {
	var (
		current model.TimeSignature
		found   bool
	)
	for _, m := range part.Measures {
		if m.Number > measure {
			break
		}
		if m.Time != nil {
			current = *m.Time
			found = true
		}
	}
	if !found {
		return firstTime(part)
	}
	return current, true
}
