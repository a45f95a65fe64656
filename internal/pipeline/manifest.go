package pipeline

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/chorale/internal/model"
	"github.com/ppiankov/chorale/internal/worker"
)

// ManifestName is the run manifest file written into the output directory
const ManifestName = "manifest.json"

// NewManifest starts a manifest for a run
func NewManifest(inputRoot, outputRoot, mode string) *model.Manifest {
	return &model.Manifest{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now().UTC(),
		InputRoot:  inputRoot,
		OutputRoot: outputRoot,
		Mode:       mode,
		Failures:   map[string]string{},
	}
}

// RecordResults folds batch results into the manifest
func RecordResults(m *model.Manifest, results []*worker.ScoreResult) {
	for _, r := range results {
		m.Files++
		if r.Error != nil {
			m.Failed++
			m.Failures[r.Path] = r.Error.Error()
			continue
		}
		m.Succeeded++
		m.Excerpts += len(r.Set.Excerpts)
	}
}

// RecordFailure notes a file that processed but could not be written
func RecordFailure(m *model.Manifest, path string, err error) {
	if _, seen := m.Failures[path]; !seen {
		m.Succeeded--
		m.Failed++
	}
	m.Failures[path] = err.Error()
}

// CountMalformed returns how many failures were malformed inputs
func CountMalformed(results []*worker.ScoreResult) int {
	n := 0
	for _, r := range results {
		if errors.Is(r.Error, model.ErrMalformedInput) {
			n++
		}
	}
	return n
}

// WriteManifest finalizes and writes the manifest into the output directory
func WriteManifest(m *model.Manifest) (string, error) {
	m.FinishedAt = time.Now().UTC()
	path := filepath.Join(m.OutputRoot, ManifestName)
	return path, writeJSON(path, m)
}
