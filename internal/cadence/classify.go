package cadence

import (
	"strings"

	"github.com/ppiankov/chorale/internal/model"
	"github.com/ppiankov/chorale/internal/util"
)

// rootPitchClass maps tonic spellings to pitch classes, including the "-" flat
// spelling and enharmonics such as B# and Fb
var rootPitchClass = map[string]int{
	"C": 0, "B#": 0,
	"C#": 1, "Db": 1, "D-": 1,
	"D":  2,
	"D#": 3, "Eb": 3, "E-": 3,
	"E": 4, "Fb": 4,
	"E#": 5, "F": 5,
	"F#": 6, "Gb": 6, "G-": 6,
	"G":  7,
	"G#": 8, "Ab": 8, "A-": 8,
	"A":  9,
	"A#": 10, "Bb": 10, "B-": 10,
	"B": 11, "Cb": 11, "C-": 11,
}

// TonicPitchClass parses the root of a tonal center label such as "D minor" or "F# major"
func TonicPitchClass(tonalCenter string) (int, bool) {
	fields := strings.Fields(tonalCenter)
	if len(fields) == 0 {
		return 0, false
	}
	pc, ok := rootPitchClass[fields[0]]
	return pc, ok
}

// LastInterval returns final minus penultimate over the sounding pitches; nil with fewer than two
func LastInterval(pitches []*int) *int {
	var last, penult *int
	for _, p := range pitches {
		if p == nil {
			continue
		}
		penult, last = last, p
	}
	if penult == nil {
		return nil
	}
	return model.IntPtr(*last - *penult)
}

// Classify names the cadence closing a bass line. Rules are checked in order:
// a falling semitone is phrygian, a falling fifth or rising fourth authentic,
// a falling fourth or rising fifth or an ending on the dominant plagal/half,
// a rising step deceptive.
func Classify(bass []*int, tonalCenter string, finalPitch *int) (*int, model.CadenceType) {
	interval := LastInterval(bass)

	onDominant := false
	if tonic, ok := TonicPitchClass(tonalCenter); ok && finalPitch != nil {
		onDominant = util.Mod(*finalPitch, 12) == (tonic+7)%12
	}

	is := func(values ...int) bool {
		if interval == nil {
			return false
		}
		for _, v := range values {
			if *interval == v {
				return true
			}
		}
		return false
	}

	switch {
	case is(-1):
		return interval, model.CadencePhrygian
	case is(-7, 5):
		return interval, model.CadenceAuthentic
	case is(-5, 7) || onDominant:
		return interval, model.CadencePlagalHalf
	case is(1, 2):
		return interval, model.CadenceDeceptive
	default:
		return interval, model.CadenceOther
	}
}
