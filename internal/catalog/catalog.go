package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/chorale/internal/model"
	"gopkg.in/yaml.v3"
)

// Entry describes one piece of the corpus
type Entry struct {
	File            string `yaml:"file"` // source document path or stem
	BWV             string `yaml:"bwv"`
	Riemenschneider int    `yaml:"riemenschneider"`
	Kalmus          int    `yaml:"kalmus,omitempty"`
	Title           string `yaml:"title"`
	TonalCenter     string `yaml:"tonal_center"`
	TimeSignature   string `yaml:"time_signature"`
}

// Stem returns the lookup key of the entry
func (e Entry) Stem() string {
	if e.File != "" {
		return normalize(strings.TrimSuffix(filepath.Base(e.File), filepath.Ext(e.File)))
	}
	if e.BWV != "" {
		return normalize("bwv" + e.BWV)
	}
	return ""
}

// CatalogID renders the BWV number the way titles cite it
func (e Entry) CatalogID() string {
	if e.BWV == "" {
		return ""
	}
	return "BWV " + e.BWV
}

// Catalog indexes entries by file stem
type Catalog struct {
	entries []Entry
	byStem  map[string]int
}

// New builds a catalog from entries; later duplicates of a stem are ignored
func New(entries []Entry) *Catalog {
	c := &Catalog{
		entries: entries,
		byStem:  make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		stem := e.Stem()
		if stem == "" {
			continue
		}
		if _, dup := c.byStem[stem]; !dup {
			c.byStem[stem] = i
		}
	}
	return c
}

// Load reads a catalog list from a YAML or JSON file. An empty path yields an empty catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return New(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return New(entries), nil
}

// Len returns the number of entries
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Lookup finds the entry for a source stem such as "bwv101.7" or "bwv101_7"
func (c *Catalog) Lookup(stem string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	i, ok := c.byStem[normalize(stem)]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Merge returns metadata with empty fields filled from the catalog entry for stem.
// Values present in the document win; meta itself is not modified.
func (c *Catalog) Merge(meta *model.Metadata, stem string) *model.Metadata {
	merged := &model.Metadata{}
	if meta != nil {
		*merged = *meta
	}
	e, ok := c.Lookup(stem)
	if !ok {
		return merged
	}
	if merged.Title == "" {
		merged.Title = e.Title
	}
	if merged.Catalog == "" {
		merged.Catalog = e.CatalogID()
	}
	if merged.TonalCenter == "" {
		merged.TonalCenter = e.TonalCenter
	}
	if merged.TimeSignature == "" {
		merged.TimeSignature = e.TimeSignature
	}
	return merged
}

// normalize folds the spellings a stem takes across exports ("BWV101.7", "bwv101_7")
func normalize(stem string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(stem)), ".", "_")
}
