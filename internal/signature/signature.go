package signature

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/chorale/internal/model"
)

// RestMarker stands in for a silent event in a rhythm signature
const RestMarker = "rest"

// FormatDuration renders a quarter-note length the way the record JSON shows it:
// shortest round-trip form, always with a decimal point ("1.0", "0.5", "1.5")
func FormatDuration(d float64) string {
	s := strconv.FormatFloat(d, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// Build canonicalizes a melodic line. With nil durations it joins the sounding pitches
// and drops rests; otherwise it pairs every event with its duration, rests included.
// Pairs beyond the shorter of the two slices are ignored.
func Build(pitches []*int, durations []float64) string {
	var parts []string

	if durations == nil {
		for _, p := range pitches {
			if p != nil {
				parts = append(parts, strconv.Itoa(*p))
			}
		}
		return strings.Join(parts, ",")
	}

	n := min(len(pitches), len(durations))
	for i := 0; i < n; i++ {
		label := RestMarker
		if pitches[i] != nil {
			label = strconv.Itoa(*pitches[i])
		}
		parts = append(parts, label+":"+FormatDuration(durations[i]))
	}
	return strings.Join(parts, ",")
}

// Round rounds a duration to three decimals for interval signatures
func Round(d float64) float64 {
	return math.Round(d*1000) / 1000
}

// IntervalKey builds the transposition-invariant grouping key "INT:2,-1|DUR:1.0,0.5"
func IntervalKey(intervals []int, durations []float64) string {
	ints := make([]string, len(intervals))
	for i, v := range intervals {
		ints[i] = strconv.Itoa(v)
	}
	durs := make([]string, len(durations))
	for i, d := range durations {
		durs[i] = FormatDuration(d)
	}
	return "INT:" + strings.Join(ints, ",") + "|DUR:" + strings.Join(durs, ",")
}

// Contour reduces a voice to its sounding notes: the intervals between consecutive notes
// and each note's rounded duration. Rests are skipped, so a rest does not break an interval.
func Contour(v model.VoiceData) ([]int, []float64) {
	var (
		prev      *int
		intervals []int
		durations []float64
	)
	for i, p := range v.MIDI {
		if p == nil {
			continue
		}
		if i < len(v.Durations) {
			durations = append(durations, Round(v.Durations[i]))
		}
		if prev != nil {
			intervals = append(intervals, *p-*prev)
		}
		prev = p
	}
	return intervals, durations
}

// MeasureLabel renders a measure range as "m.3" or "m.3–5"
func MeasureLabel(start, end int) string {
	if start == end {
		return fmt.Sprintf("m.%d", start)
	}
	return fmt.Sprintf("m.%d–%d", start, end)
}

// GroupPhrases collects phrase excerpts whose soprano lines share an interval key.
// Group ids follow first-seen order; groups are then ordered by size, largest first.
func GroupPhrases(records []model.ExcerptRecord) model.GroupIndex {
	var (
		order  []string
		groups = make(map[string]*model.Group)
		total  int
	)

	for _, r := range records {
		if r.Kind != model.ExcerptPhrase {
			continue
		}
		soprano, ok := r.Voices["soprano"]
		if !ok {
			continue
		}
		intervals, durations := Contour(soprano)
		if len(intervals) == 0 {
			continue
		}

		key := IntervalKey(intervals, durations)
		g, seen := groups[key]
		if !seen {
			g = &model.Group{Signature: key, Intervals: intervals, Durations: durations}
			groups[key] = g
			order = append(order, key)
		}

		title := r.Title
		if title == "" {
			title = r.PieceID
		}
		g.Phrases = append(g.Phrases, model.GroupMember{
			ID:          r.ID,
			PieceID:     r.PieceID,
			PhraseIndex: r.Index,
			Title:       title,
			Measures:    MeasureLabel(r.StartMeasure, r.EndMeasure),
		})
		total++
	}

	list := make([]model.Group, 0, len(order))
	for i, key := range order {
		g := groups[key]
		g.GroupID = fmt.Sprintf("grp_%04d", i+1)
		g.Size = len(g.Phrases)
		sort.SliceStable(g.Phrases, func(a, b int) bool {
			pa, pb := g.Phrases[a], g.Phrases[b]
			if pa.PieceID != pb.PieceID {
				return pa.PieceID < pb.PieceID
			}
			return pa.PhraseIndex < pb.PhraseIndex
		})
		list = append(list, *g)
	}
	sort.SliceStable(list, func(a, b int) bool {
		return list[a].Size > list[b].Size
	})

	return model.GroupIndex{
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		PhraseCount: total,
		GroupCount:  len(list),
		Groups:      list,
	}
}
