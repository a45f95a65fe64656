package scoredoc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/chorale/internal/model"
)

// Format of a score document on disk
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// FormatOf picks the document format from a file extension
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, true
	case ".json":
		return JSON, true
	default:
		return "", false
	}
}

// Document is the on-disk shape of a score
type Document struct {
	Title         string         `yaml:"title,omitempty" json:"title,omitempty"`
	Composer      string         `yaml:"composer,omitempty" json:"composer,omitempty"`
	Catalog       string         `yaml:"catalog,omitempty" json:"catalog,omitempty"`
	TonalCenter   string         `yaml:"tonal_center,omitempty" json:"tonal_center,omitempty"`
	TimeSignature string         `yaml:"time_signature,omitempty" json:"time_signature,omitempty"`
	Parts         []PartDocument `yaml:"parts" json:"parts"`
}

// PartDocument is one voice
type PartDocument struct {
	ID       string            `yaml:"id" json:"id"`
	Name     string            `yaml:"name,omitempty" json:"name,omitempty"`
	Measures []MeasureDocument `yaml:"measures" json:"measures"`
}

// MeasureDocument is one bar. Time is written "3/4", clef "G2" or "F4".
type MeasureDocument struct {
	Number int                 `yaml:"number" json:"number"`
	Key    *model.KeySignature `yaml:"key,omitempty" json:"key,omitempty"`
	Time   string              `yaml:"time,omitempty" json:"time,omitempty"`
	Clef   string              `yaml:"clef,omitempty" json:"clef,omitempty"`
	Events []EventDocument     `yaml:"events" json:"events"`
}

// EventDocument is a note (Pitch or MIDI set) or a rest (Rest set).
// A missing offset continues from the end of the previous event.
type EventDocument struct {
	Pitch    string   `yaml:"pitch,omitempty" json:"pitch,omitempty"`
	MIDI     *int     `yaml:"midi,omitempty" json:"midi,omitempty"`
	Rest     bool     `yaml:"rest,omitempty" json:"rest,omitempty"`
	Offset   *float64 `yaml:"offset,omitempty" json:"offset,omitempty"`
	Duration float64  `yaml:"duration" json:"duration"`
	Fermata  string   `yaml:"fermata,omitempty" json:"fermata,omitempty"` // expression, articulation
}

// ReadFile decodes the score document at path
func ReadFile(path string) (*model.Score, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, &model.MalformedInputError{Path: path, Reason: "unsupported extension"}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Decode(data, format, path)
}

// Decode parses a document and builds a validated Score. Every failure is a MalformedInputError.
func Decode(data []byte, format Format, path string) (*model.Score, error) {
	var doc Document
	var err error
	switch format {
	case YAML:
		err = yaml.Unmarshal(data, &doc)
	case JSON:
		err = json.Unmarshal(data, &doc)
	default:
		return nil, &model.MalformedInputError{Path: path, Reason: fmt.Sprintf("unknown format %q", format)}
	}
	if err != nil {
		return nil, &model.MalformedInputError{Path: path, Reason: "decode failed", Err: err}
	}

	score, err := doc.toScore()
	if err != nil {
		return nil, &model.MalformedInputError{Path: path, Reason: err.Error()}
	}
	return score, nil
}

func (d *Document) toScore() (*model.Score, error) {
	if len(d.Parts) == 0 {
		return nil, fmt.Errorf("score has no parts")
	}

	score := &model.Score{
		Metadata: &model.Metadata{
			Title:         d.Title,
			Composer:      d.Composer,
			Catalog:       d.Catalog,
			TonalCenter:   d.TonalCenter,
			TimeSignature: d.TimeSignature,
		},
	}

	for pi, pd := range d.Parts {
		part, err := pd.toPart()
		if err != nil {
			return nil, fmt.Errorf("part %d (%s): %w", pi, pd.ID, err)
		}
		if part.ID == "" {
			part.ID = fmt.Sprintf("P%d", pi+1)
		}
		score.Parts = append(score.Parts, part)
	}

	if score.Metadata.TimeSignature == "" {
		for _, m := range score.Parts[0].Measures {
			if m.Time != nil {
				score.Metadata.TimeSignature = m.Time.String()
				break
			}
		}
	}
	return score, nil
}

func (pd PartDocument) toPart() (model.Part, error) {
	part := model.Part{ID: pd.ID, Name: pd.Name}
	var meter *model.TimeSignature

	for mi, md := range pd.Measures {
		if mi > 0 {
			prev := pd.Measures[mi-1].Number
			if md.Number < prev {
				return part, fmt.Errorf("measure %d follows measure %d", md.Number, prev)
			}
			if md.Number == 0 {
				return part, fmt.Errorf("pickup measure 0 must come first")
			}
		}
		if md.Number < 0 {
			return part, fmt.Errorf("negative measure number %d", md.Number)
		}

		m := model.Measure{Number: md.Number, Key: md.Key}
		if md.Time != "" {
			ts, err := ParseTimeSignature(md.Time)
			if err != nil {
				return part, fmt.Errorf("measure %d: %w", md.Number, err)
			}
			m.Time = &ts
			meter = &ts
		}
		if md.Clef != "" {
			c, err := ParseClef(md.Clef)
			if err != nil {
				return part, fmt.Errorf("measure %d: %w", md.Number, err)
			}
			m.Clef = &c
		}

		events, err := toEvents(md.Events)
		if err != nil {
			return part, fmt.Errorf("measure %d: %w", md.Number, err)
		}
		m.Events = events

		if meter != nil {
			m.Duration = meter.BarDuration()
		} else {
			m.Duration = m.ContentEnd()
		}
		part.Measures = append(part.Measures, m)
	}
	return part, nil
}

func toEvents(docs []EventDocument) ([]model.Event, error) {
	events := make([]model.Event, 0, len(docs))
	var cursor float64

	for i, ed := range docs {
		offset := cursor
		if ed.Offset != nil {
			offset = *ed.Offset
		}
		if offset < 0 {
			return nil, fmt.Errorf("event %d: negative offset %g", i, offset)
		}
		if ed.Duration <= 0 {
			return nil, fmt.Errorf("event %d: duration must be positive, got %g", i, ed.Duration)
		}
		if i > 0 && offset < events[i-1].Offset {
			return nil, fmt.Errorf("event %d: offset %g before previous offset %g", i, offset, events[i-1].Offset)
		}

		var e model.Event
		switch {
		case ed.Rest:
			if ed.Pitch != "" || ed.MIDI != nil {
				return nil, fmt.Errorf("event %d: rest with a pitch", i)
			}
			e = model.NewRest(offset, ed.Duration)
		case ed.MIDI != nil:
			if *ed.MIDI < 0 || *ed.MIDI > 127 {
				return nil, fmt.Errorf("event %d: midi %d out of range", i, *ed.MIDI)
			}
			name := ed.Pitch
			if name == "" {
				name = PitchName(*ed.MIDI)
			}
			e = model.NewNote(offset, ed.Duration, model.Pitch{MIDI: *ed.MIDI, Name: name})
		case ed.Pitch != "":
			midi, err := ParsePitch(ed.Pitch)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", i, err)
			}
			e = model.NewNote(offset, ed.Duration, model.Pitch{MIDI: midi, Name: ed.Pitch})
		default:
			return nil, fmt.Errorf("event %d: neither note nor rest", i)
		}

		switch ed.Fermata {
		case "":
		case string(model.MarkExpression), "true", "yes":
			e = e.WithFermata(model.MarkExpression)
		case string(model.MarkArticulation):
			e = e.WithFermata(model.MarkArticulation)
		default:
			return nil, fmt.Errorf("event %d: unknown fermata marker %q", i, ed.Fermata)
		}

		events = append(events, e)
		cursor = e.End()
	}
	return events, nil
}

// ParseTimeSignature reads "3/4"
func ParseTimeSignature(s string) (model.TimeSignature, error) {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return model.TimeSignature{}, fmt.Errorf("invalid time signature %q", s)
	}
	n, err1 := strconv.Atoi(num)
	d, err2 := strconv.Atoi(den)
	if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
		return model.TimeSignature{}, fmt.Errorf("invalid time signature %q", s)
	}
	return model.TimeSignature{Numerator: n, Denominator: d}, nil
}

// ParseClef reads a clef sign and staff line such as "G2", "F4" or "C3"
func ParseClef(s string) (model.Clef, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 || !strings.ContainsRune("GFC", rune(s[0])) {
		return model.Clef{}, fmt.Errorf("invalid clef %q", s)
	}
	line, err := strconv.Atoi(s[1:])
	if err != nil || line < 1 || line > 5 {
		return model.Clef{}, fmt.Errorf("invalid clef %q", s)
	}
	return model.Clef{Sign: s[:1], Line: line}, nil
}

// FromScore builds the document form of a score
func FromScore(score *model.Score) Document {
	var doc Document
	if md := score.Metadata; md != nil {
		doc.Title = md.Title
		doc.Composer = md.Composer
		doc.Catalog = md.Catalog
		doc.TonalCenter = md.TonalCenter
		doc.TimeSignature = md.TimeSignature
	}

	for _, p := range score.Parts {
		pd := PartDocument{ID: p.ID, Name: p.Name, Measures: make([]MeasureDocument, 0, len(p.Measures))}
		for _, m := range p.Measures {
			md := MeasureDocument{Number: m.Number, Key: m.Key, Events: make([]EventDocument, 0, len(m.Events))}
			if m.Time != nil {
				md.Time = m.Time.String()
			}
			if m.Clef != nil {
				md.Clef = m.Clef.String()
			}
			for _, e := range m.Events {
				ed := EventDocument{Offset: model.Float64Ptr(e.Offset), Duration: e.Duration}
				if e.IsRest() {
					ed.Rest = true
				} else {
					ed.Pitch = e.Pitch.Name
					ed.MIDI = model.IntPtr(e.Pitch.MIDI)
				}
				if e.Fermata != nil {
					ed.Fermata = string(e.Fermata.Via)
				}
				md.Events = append(md.Events, ed)
			}
			pd.Measures = append(pd.Measures, md)
		}
		doc.Parts = append(doc.Parts, pd)
	}
	return doc
}

// Encode serializes a score as a document
func Encode(score *model.Score, format Format) ([]byte, error) {
	doc := FromScore(score)
	switch format {
	case YAML:
		return yaml.Marshal(doc)
	case JSON:
		return json.MarshalIndent(doc, "", "  ")
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// WriteFile encodes score into path, choosing the format from the extension
func WriteFile(path string, score *model.Score) error {
	format, ok := FormatOf(path)
	if !ok {
		return fmt.Errorf("unsupported extension for %s", path)
	}
	data, err := Encode(score, format)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
