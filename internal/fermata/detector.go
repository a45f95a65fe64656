package fermata

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/chorale/internal/model"
	"github.com/ppiankov/chorale/internal/util"
)

// Mode selects how multiple fermatas are reported
type Mode int

const (
	// Exhaustive reports every fermata, sorted by (measure, offset). Used for phrase segmentation.
	Exhaustive Mode = iota

	// FirstPerMeasure keeps only the earliest fermata of each measure. Used for cadence segmentation.
	FirstPerMeasure
)

func (m Mode) String() string {
	switch m {
	case Exhaustive:
		return "exhaustive"
	case FirstPerMeasure:
		return "first-per-measure"
	default:
		return "unknown"
	}
}

// ParseMode converts a config string to a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exhaustive", "all":
		return Exhaustive, nil
	case "first-per-measure", "first":
		return FirstPerMeasure, nil
	default:
		return Exhaustive, fmt.Errorf("unknown fermata mode: %s (supported: exhaustive, first-per-measure)", s)
	}
}

// Detector finds fermata occurrences in a single voice
type Detector struct {
	mode Mode
}

// NewDetector creates a detector with the given policy
func NewDetector(mode Mode) *Detector {
	return &Detector{mode: mode}
}

// Mode returns the detector's policy
func (d *Detector) Mode() Mode {
	return d.mode
}

// Detect scans the voice in time order and returns its fermata events
func (d *Detector) Detect(voice model.Part) []model.FermataEvent {
	switch d.mode {
	case FirstPerMeasure:
		return firstPerMeasure(voice)
	default:
		return exhaustive(voice)
	}
}

func exhaustive(voice model.Part) []model.FermataEvent {
	var events []model.FermataEvent
	for _, m := range voice.Measures {
		for _, e := range m.Events {
			if e.Fermata == nil {
				continue
			}
			events = append(events, model.FermataEvent{
				Measure:  m.Number,
				Offset:   e.Offset,
				Duration: e.Duration,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Measure != events[j].Measure {
			return events[i].Measure < events[j].Measure
		}
		return events[i].Offset < events[j].Offset
	})
	return events
}

func firstPerMeasure(voice model.Part) []model.FermataEvent {
	byMeasure := make(map[int]model.FermataEvent)
	for _, m := range voice.Measures {
		for _, e := range m.Events {
			if e.Fermata == nil {
				continue
			}
			candidate := model.FermataEvent{Measure: m.Number, Offset: e.Offset, Duration: e.Duration}
			existing, ok := byMeasure[m.Number]
			// strict comparison keeps the first encountered on ties
			if !ok || candidate.Offset < existing.Offset {
				byMeasure[m.Number] = candidate
			}
		}
	}

	events := make([]model.FermataEvent, 0, len(byMeasure))
	for _, num := range util.SortedKeys(byMeasure) {
		events = append(events, byMeasure[num])
	}
	return events
}
