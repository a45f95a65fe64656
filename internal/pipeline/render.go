package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/chorale/internal/llm"
	"github.com/ppiankov/chorale/internal/model"
	"github.com/ppiankov/chorale/internal/scoredoc"
	"github.com/ppiankov/chorale/internal/signature"
)

// RecordsSuffix names the per-piece records document
const RecordsSuffix = ".records.json"

// Renderer writes excerpt sets to an output directory, one subdirectory per piece
type Renderer struct {
	outputDir string
	formats   []string
}

// NewRenderer creates a renderer for the enabled output formats
func NewRenderer(outputDir string, formats []string) *Renderer {
	return &Renderer{outputDir: outputDir, formats: formats}
}

func (r *Renderer) wants(format string) bool {
	for _, f := range r.formats {
		if f == format {
			return true
		}
	}
	return false
}

// PieceDir returns the directory holding a piece's outputs
func (r *Renderer) PieceDir(pieceID string) string {
	return filepath.Join(r.outputDir, pieceID)
}

// RenderSet writes every excerpt plus the piece's records and summary.
// Outputs of an earlier render of the same piece are removed first.
// It returns the paths written.
func (r *Renderer) RenderSet(set *model.ExcerptSet) ([]string, error) {
	if set.PieceID == "" {
		return nil, fmt.Errorf("render %s: empty piece id", set.Source)
	}
	dir := r.PieceDir(set.PieceID)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear piece directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create piece directory: %w", err)
	}

	var written []string
	for _, e := range set.Excerpts {
		base := filepath.Join(dir, e.Record.ID)
		if r.wants(model.FormatYAML) {
			if err := scoredoc.WriteFile(base+".yaml", e.Score); err != nil {
				return written, err
			}
			written = append(written, base+".yaml")
		}
		if r.wants(model.FormatJSON) {
			if err := scoredoc.WriteFile(base+".json", e.Score); err != nil {
				return written, err
			}
			written = append(written, base+".json")
		}
		if r.wants(model.FormatMIDI) {
			if err := scoredoc.WriteMIDIFile(base+".mid", e.Score); err != nil {
				return written, err
			}
			written = append(written, base+".mid")
		}
	}

	recordsPath := filepath.Join(dir, set.PieceID+RecordsSuffix)
	if err := writeJSON(recordsPath, set.PieceRecords()); err != nil {
		return written, fmt.Errorf("render records: %w", err)
	}
	written = append(written, recordsPath)

	if r.wants(model.FormatMarkdown) {
		mdPath := filepath.Join(dir, set.PieceID+".md")
		if err := os.WriteFile(mdPath, []byte(RenderMarkdown(set)), 0644); err != nil {
			return written, fmt.Errorf("render markdown: %w", err)
		}
		written = append(written, mdPath)
	}

	if set.Commentary != nil && set.Commentary.Enabled {
		commentaryPath := filepath.Join(dir, set.PieceID+".commentary.md")
		if err := os.WriteFile(commentaryPath, []byte(llm.RenderSeparateMarkdown(set.Commentary)), 0644); err != nil {
			return written, fmt.Errorf("render commentary: %w", err)
		}
		written = append(written, commentaryPath)
	}

	return written, nil
}

// RenderMarkdown renders a human-readable summary of one piece
func RenderMarkdown(set *model.ExcerptSet) string {
	var b strings.Builder

	title := set.Title
	if title == "" {
		title = set.PieceID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- **Source**: `%s`\n", set.Source)
	if set.TonalCenter != "" {
		fmt.Fprintf(&b, "- **Tonal center**: %s\n", set.TonalCenter)
	}
	fmt.Fprintf(&b, "- **Pickup**: %s beats\n", signature.FormatDuration(set.PickupBeats))
	fmt.Fprintf(&b, "- **Phrases**: %d\n", set.CountKind(model.ExcerptPhrase))
	fmt.Fprintf(&b, "- **Cadences**: %d\n\n", set.CountKind(model.ExcerptCadence))

	if len(set.Excerpts) > 0 {
		b.WriteString("| Excerpt | Measures | Span | Cadence | Soprano role | Final soprano | Final bass |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, e := range set.Excerpts {
			rec := e.Record
			cadenceType, role := "-", "-"
			if rec.Cadence != nil {
				cadenceType = string(rec.Cadence.Type)
				role = string(rec.Cadence.FinalSopranoRole)
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
				rec.ID, signature.MeasureLabel(rec.StartMeasure, rec.EndMeasure), rec.Span,
				cadenceType, role, orDash(rec.FinalSoprano.Name), orDash(rec.FinalBass.Name))
		}
		b.WriteString("\n")
	}

	if len(set.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range set.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// writeJSON writes v as indented JSON
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// LoadRecords reads a records document written by RenderSet
func LoadRecords(path string) (*model.PieceRecords, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	var pr model.PieceRecords
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, fmt.Errorf("parse records %s: %w", path, err)
	}
	return &pr, nil
}

// CollectRecords loads every records document below root, ordered by path
func CollectRecords(root string) ([]*model.PieceRecords, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return []*model.PieceRecords{}, nil
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), RecordsSuffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	pieces := make([]*model.PieceRecords, 0, len(paths))
	for _, path := range paths {
		pr, err := LoadRecords(path)
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, pr)
	}
	return pieces, nil
}

// WriteGroups writes the soprano phrase group index
func WriteGroups(path string, index model.GroupIndex) error {
	return writeJSON(path, index)
}
