package scoredoc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/chorale/internal/util"
)

var letterPitchClass = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

var sharpNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// ParsePitch converts a spelled pitch such as "F#4", "Bb3", "E-5" or "C##4" to a MIDI number.
// Middle C is C4 = 60. "-" always reads as a flat, so octaves are non-negative.
func ParsePitch(name string) (int, error) {
	s := strings.TrimSpace(name)
	if s == "" {
		return 0, fmt.Errorf("empty pitch name")
	}

	pc, ok := letterPitchClass[strings.ToUpper(s[:1])[0]]
	if !ok {
		return 0, fmt.Errorf("invalid pitch letter in %q", name)
	}

	i := 1
	alter := 0
loop:
	for i < len(s) {
		switch s[i] {
		case '#':
			alter++
		case 'x':
			alter += 2
		case 'b', '-':
			alter--
		default:
			break loop
		}
		i++
	}

	octave, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, fmt.Errorf("invalid octave in %q", name)
	}

	midi := (octave+1)*12 + pc + alter
	if midi < 0 || midi > 127 {
		return 0, fmt.Errorf("pitch %q out of MIDI range", name)
	}
	return midi, nil
}

// PitchName spells a MIDI number with sharps, e.g. 61 -> "C#4"
func PitchName(midi int) string {
	return sharpNames[util.Mod(midi, 12)] + strconv.Itoa(midi/12-1)
}
