package scoredoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/ppiankov/chorale/internal/model"
)

const (
	// TicksPerQuarter is the resolution of exported MIDI files
	TicksPerQuarter = 480

	defaultTempo    = 80.0
	defaultVelocity = 80
)

type timedMessage struct {
	tick uint32
	off  bool
	msg  midi.Message
}

// measureStarts lays the measures of all parts on one timeline in quarter notes.
// The opening measure spans only its sounding content so a pickup or a trimmed
// excerpt start does not leave leading silence; later measures use their nominal length.
func measureStarts(score *model.Score) map[int]float64 {
	lengths := make(map[int]float64)
	var numbers []int
	first := math.MaxInt

	for _, p := range score.Parts {
		for _, m := range p.Measures {
			if m.Number < first {
				first = m.Number
			}
			if _, seen := lengths[m.Number]; !seen {
				numbers = append(numbers, m.Number)
				lengths[m.Number] = 0
			}
		}
	}
	sort.Ints(numbers)

	lead := math.Inf(1)
	for _, p := range score.Parts {
		for _, m := range p.Measures {
			length := m.Duration
			if m.Number == first {
				if len(m.Events) > 0 && m.ContentStart() < lead {
					lead = m.ContentStart()
				}
				length = m.ContentEnd()
			} else if length <= 0 {
				length = m.ContentEnd()
			}
			if length > lengths[m.Number] {
				lengths[m.Number] = length
			}
		}
	}
	if math.IsInf(lead, 1) {
		lead = 0
	}

	starts := make(map[int]float64, len(numbers))
	at := -lead
	for _, n := range numbers {
		starts[n] = at
		at += lengths[n]
	}
	return starts
}

func toTicks(quarters float64) uint32 {
	if quarters < 0 {
		return 0
	}
	return uint32(math.Round(quarters * TicksPerQuarter))
}

// WriteMIDI renders a score as a Standard MIDI File with one track per part.
// The first track also carries the tempo and the opening meter.
func WriteMIDI(w io.Writer, score *model.Score) error {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)
	starts := measureStarts(score)

	for pi, p := range score.Parts {
		channel := uint8(pi % 16)
		var timed []timedMessage

		for _, m := range p.Measures {
			base := starts[m.Number]
			for _, e := range m.Events {
				if !e.IsNote() {
					continue
				}
				key := uint8(e.Pitch.MIDI)
				timed = append(timed,
					timedMessage{tick: toTicks(base + e.Offset), msg: midi.NoteOn(channel, key, defaultVelocity)},
					timedMessage{tick: toTicks(base + e.End()), off: true, msg: midi.NoteOff(channel, key)},
				)
			}
		}

		// note-offs sort before note-ons at the same tick so repeated pitches retrigger
		sort.SliceStable(timed, func(i, j int) bool {
			if timed[i].tick != timed[j].tick {
				return timed[i].tick < timed[j].tick
			}
			return timed[i].off && !timed[j].off
		})

		var tr smf.Track
		name := p.Name
		if name == "" {
			name = p.ID
		}
		tr.Add(0, smf.MetaTrackSequenceName(name))
		if pi == 0 {
			tr.Add(0, smf.MetaTempo(defaultTempo))
			if ts, ok := openingMeter(p); ok {
				tr.Add(0, smf.MetaMeter(uint8(ts.Numerator), uint8(ts.Denominator)))
			}
		}

		var last uint32
		for _, tm := range timed {
			tr.Add(tm.tick-last, tm.msg)
			last = tm.tick
		}
		tr.Close(0)

		if err := s.Add(tr); err != nil {
			return fmt.Errorf("failed to add track %q: %w", name, err)
		}
	}

	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write midi: %w", err)
	}
	return nil
}

func openingMeter(p model.Part) (model.TimeSignature, bool) {
	for _, m := range p.Measures {
		if m.Time != nil {
			return *m.Time, true
		}
	}
	return model.TimeSignature{}, false
}

// WriteMIDIFile renders score to path
func WriteMIDIFile(path string, score *model.Score) error {
	var buf bytes.Buffer
	if err := WriteMIDI(&buf, score); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadMIDI parses a Standard MIDI File. The smf reader can panic on corrupt input,
// so panics are turned into errors.
func ReadMIDI(r io.Reader) (s *smf.SMF, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.New(fmt.Sprint(rec))
		}
	}()

	s, err = smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse midi: %w", err)
	}
	return s, nil
}
