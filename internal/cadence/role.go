package cadence

import (
	"github.com/ppiankov/chorale/internal/model"
	"github.com/ppiankov/chorale/internal/util"
)

// relationWeights scores an interval above a candidate root. Thirds and the
// perfect fifth belong to every triad; altered fifths and sevenths count less.
var relationWeights = map[int]int{
	3:  2,
	4:  2,
	7:  2,
	6:  1,
	8:  1,
	10: 1,
	11: 1,
}

// ChordRoot picks the pitch class of a simultaneity that forms the most third and
// fifth relations with the others. Ties go to the lowest sounding pitch.
func ChordRoot(chord []int) (int, bool) {
	if len(chord) == 0 {
		return 0, false
	}

	// Candidates in order of the lowest pitch carrying each class
	lowest := make(map[int]int)
	for _, p := range chord {
		pc := util.Mod(p, 12)
		if cur, ok := lowest[pc]; !ok || p < cur {
			lowest[pc] = p
		}
	}

	classes := util.SortedKeys(lowest)
	best, bestScore, bestPitch := -1, -1, 0
	for _, pc := range classes {
		score := 0
		for _, other := range classes {
			score += relationWeights[util.Mod(other-pc, 12)]
		}
		pitch := lowest[pc]
		if score > bestScore || (score == bestScore && pitch < bestPitch) {
			best, bestScore, bestPitch = pc, score, pitch
		}
	}
	return best, true
}

// SopranoRole classifies the soprano's final pitch against the root of the final chord
func SopranoRole(finalChord []int, soprano *int) model.SopranoRole {
	if soprano == nil {
		return model.RoleOther
	}
	root, ok := ChordRoot(finalChord)
	if !ok {
		return model.RoleOther
	}

	switch util.Mod(*soprano-root, 12) {
	case 0:
		return model.RoleRoot
	case 3, 4:
		return model.RoleThird
	case 7:
		return model.RoleFifth
	default:
		return model.RoleOther
	}
}
