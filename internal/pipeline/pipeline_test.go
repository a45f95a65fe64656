package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/chorale/internal/model"
	"github.com/ppiankov/chorale/internal/worker"
)

// D major, four bars of 4/4. Soprano fermatas on beat 3 of m.2 and the downbeat of m.4.
const choraleYAML = `
title: Test Chorale
tonal_center: D major
parts:
  - id: S
    measures:
      - number: 1
        key: {fifths: 2}
        time: "4/4"
        clef: G2
        events:
          - {pitch: D5, duration: 1}
          - {pitch: E5, duration: 1}
          - {pitch: F#5, duration: 1}
          - {pitch: G5, duration: 1}
      - number: 2
        events:
          - {pitch: F#5, duration: 1}
          - {pitch: F#5, duration: 1}
          - {pitch: E5, duration: 2, fermata: expression}
      - number: 3
        events:
          - {pitch: D5, duration: 1}
          - {pitch: C#5, duration: 1}
          - {pitch: B4, duration: 1}
          - {pitch: A4, duration: 1}
      - number: 4
        events:
          - {pitch: D5, duration: 4, fermata: articulation}
  - id: A
    measures:
      - number: 1
        time: "4/4"
        clef: G2
        events: [{pitch: A4, duration: 4}]
      - number: 2
        events: [{pitch: A4, duration: 2}, {pitch: C#5, duration: 2}]
      - number: 3
        events: [{pitch: A4, duration: 4}]
      - number: 4
        events: [{pitch: A4, duration: 4}]
  - id: T
    measures:
      - number: 1
        time: "4/4"
        clef: G2
        events: [{pitch: F#4, duration: 4}]
      - number: 2
        events: [{pitch: F#4, duration: 2}, {pitch: E4, duration: 2}]
      - number: 3
        events: [{pitch: D4, duration: 4}]
      - number: 4
        events: [{pitch: F#4, duration: 4}]
  - id: B
    measures:
      - number: 1
        time: "4/4"
        clef: F4
        events: [{pitch: D3, duration: 2}, {pitch: A2, duration: 2}]
      - number: 2
        events: [{pitch: D3, duration: 2}, {pitch: A2, duration: 2}]
      - number: 3
        events: [{pitch: B2, duration: 2}, {pitch: A2, duration: 2}]
      - number: 4
        events: [{pitch: D3, duration: 4}]
`

func testConfig(t *testing.T) *model.Config {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.Output.Dir = t.TempDir()
	return cfg
}

func writeScore(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func newTestPipeline(t *testing.T, cfg *model.Config) *Pipeline {
	t.Helper()
	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func excerptByID(set *model.ExcerptSet, id string) *model.ExcerptRecord {
	for i := range set.Excerpts {
		if set.Excerpts[i].Record.ID == id {
			return &set.Excerpts[i].Record
		}
	}
	return nil
}

func TestProcessFile_PhrasesAndCadences(t *testing.T) {
	cfg := testConfig(t)
	path := writeScore(t, t.TempDir(), "bwv999.9.yaml", choraleYAML)

	set, err := newTestPipeline(t, cfg).ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}

	if set.PieceID != "bwv999.9" {
		t.Errorf("Expected piece id bwv999.9, got %s", set.PieceID)
	}
	if set.PickupBeats != 0 {
		t.Errorf("Expected no pickup, got %v", set.PickupBeats)
	}
	if len(set.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", set.Warnings)
	}

	wantIDs := []string{"bwv999.9_phrase01", "bwv999.9_phrase02", "bwv999.9_cad1_m2-2", "bwv999.9_cad2_m3-4"}
	if len(set.Excerpts) != len(wantIDs) {
		t.Fatalf("Expected %d excerpts, got %d", len(wantIDs), len(set.Excerpts))
	}
	for i, id := range wantIDs {
		if set.Excerpts[i].Record.ID != id {
			t.Errorf("Excerpt %d: expected %s, got %s", i, id, set.Excerpts[i].Record.ID)
		}
	}

	p1 := excerptByID(set, "bwv999.9_phrase01")
	if p1.StartMeasure != 1 || p1.EndMeasure != 2 || p1.Span.EndOffset == nil || *p1.Span.EndOffset != 4 {
		t.Errorf("Unexpected first phrase span: %s", p1.Span)
	}
	if p1.FermataBeat == nil || *p1.FermataBeat != 3 {
		t.Errorf("Expected fermata on beat 3, got %v", p1.FermataBeat)
	}
	if p1.Cadence == nil || p1.Cadence.Type != model.CadencePlagalHalf {
		t.Errorf("Expected plagal/half cadence, got %+v", p1.Cadence)
	}
	if p1.Cadence != nil && p1.Cadence.FinalSopranoRole != model.RoleFifth {
		t.Errorf("Expected soprano on the fifth, got %s", p1.Cadence.FinalSopranoRole)
	}
	if p1.Signatures.SopranoWithRhythm != "74:1.0,76:1.0,78:1.0,79:1.0,78:1.0,78:1.0,76:2.0" {
		t.Errorf("Unexpected soprano signature %q", p1.Signatures.SopranoWithRhythm)
	}
	if p1.Signatures.SopranoIntervals != "INT:2,2,1,-1,0,-2|DUR:1.0,1.0,1.0,1.0,1.0,1.0,2.0" {
		t.Errorf("Unexpected interval signature %q", p1.Signatures.SopranoIntervals)
	}
	if p1.Signatures.Bass != "50,45,50,45" {
		t.Errorf("Unexpected bass signature %q", p1.Signatures.Bass)
	}
	if p1.FinalSoprano.Name != "E5" || p1.FinalBass.Name != "A2" {
		t.Errorf("Unexpected finals %+v / %+v", p1.FinalSoprano, p1.FinalBass)
	}
	for _, name := range []string{"soprano", "alto", "tenor", "bass"} {
		if _, ok := p1.Voices[name]; !ok {
			t.Errorf("Expected voice %s in record", name)
		}
	}

	p2 := excerptByID(set, "bwv999.9_phrase02")
	if p2.Cadence == nil || p2.Cadence.Type != model.CadenceAuthentic || p2.Cadence.FinalSopranoRole != model.RoleRoot {
		t.Errorf("Expected authentic cadence with soprano on the root, got %+v", p2.Cadence)
	}
	if p2.Cadence != nil && (p2.Cadence.LastBassInterval == nil || *p2.Cadence.LastBassInterval != 5) {
		t.Errorf("Expected last bass interval 5, got %v", p2.Cadence.LastBassInterval)
	}

	cad2 := excerptByID(set, "bwv999.9_cad2_m3-4")
	if cad2.FermataBeat == nil || *cad2.FermataBeat != 1 {
		t.Errorf("Expected downbeat fermata, got %v", cad2.FermataBeat)
	}
	if cad2.Kind != model.ExcerptCadence || cad2.Index != 2 {
		t.Errorf("Unexpected cadence record header %+v", cad2)
	}
}

func TestProcessScore_DoesNotModifyInput(t *testing.T) {
	cfg := testConfig(t)
	path := writeScore(t, t.TempDir(), "piece.yaml", choraleYAML)
	p := newTestPipeline(t, cfg)

	set, err := p.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}

	// Excerpts own their measures: changing one must not leak into another
	first := set.Excerpts[0].Score
	first.Parts[0].Measures[0].Events[0].Pitch.MIDI = 0
	for _, e := range set.Excerpts[1:] {
		for _, part := range e.Score.Parts {
			for _, m := range part.Measures {
				for _, ev := range m.Events {
					if ev.IsNote() && ev.Pitch.MIDI == 0 {
						t.Fatalf("excerpt %s shares events with another excerpt", e.Record.ID)
					}
				}
			}
		}
	}
}

func TestProcessFile_Modes(t *testing.T) {
	path := writeScore(t, t.TempDir(), "piece.yaml", choraleYAML)

	cfg := testConfig(t)
	cfg.Segmentation.Mode = model.ModePhrase
	set, err := newTestPipeline(t, cfg).ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if set.CountKind(model.ExcerptCadence) != 0 || set.CountKind(model.ExcerptPhrase) != 2 {
		t.Errorf("phrase mode: got %d phrases, %d cadences", set.CountKind(model.ExcerptPhrase), set.CountKind(model.ExcerptCadence))
	}

	cfg = testConfig(t)
	cfg.Segmentation.Mode = model.ModeCadence
	set, err = newTestPipeline(t, cfg).ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if set.CountKind(model.ExcerptPhrase) != 0 || set.CountKind(model.ExcerptCadence) != 2 {
		t.Errorf("cadence mode: got %d phrases, %d cadences", set.CountKind(model.ExcerptPhrase), set.CountKind(model.ExcerptCadence))
	}
}

func TestProcessFile_MissingBassWarns(t *testing.T) {
	const solo = `
parts:
  - id: S
    measures:
      - number: 1
        time: "4/4"
        events:
          - {pitch: C5, duration: 2}
          - {pitch: D5, duration: 2, fermata: expression}
      - number: 2
        events:
          - {pitch: E5, duration: 4}
`
	cfg := testConfig(t)
	path := writeScore(t, t.TempDir(), "solo.yaml", solo)

	set, err := newTestPipeline(t, cfg).ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Expected missing bass to be non-fatal, got %v", err)
	}
	if set.CountKind(model.ExcerptPhrase) != 2 {
		t.Errorf("Expected 2 phrases, got %d", set.CountKind(model.ExcerptPhrase))
	}
	if len(set.Warnings) == 0 || !strings.Contains(set.Warnings[0], "missing bass voice") {
		t.Errorf("Expected missing bass warning, got %v", set.Warnings)
	}
	for _, e := range set.Excerpts {
		if e.Record.Cadence != nil {
			t.Errorf("%s: expected no cadence without a bass", e.Record.ID)
		}
		if e.Record.Signatures.Soprano == "" {
			t.Errorf("%s: expected soprano signature", e.Record.ID)
		}
	}
}

// C major. The soprano holds C5 from beat 3 of m.2 while the bass moves C3 to D3 under it.
const heldCadenceYAML = `
tonal_center: C major
parts:
  - id: S
    measures:
      - number: 1
        time: "4/4"
        events: [{pitch: E5, duration: 4}]
      - number: 2
        events:
          - {pitch: D5, duration: 2}
          - {pitch: C5, duration: 2, fermata: expression}
  - id: A
    measures:
      - number: 1
        time: "4/4"
        events: [{pitch: G4, duration: 4}]
      - number: 2
        events: [{pitch: G4, duration: 2}, {pitch: E4, duration: 2}]
  - id: T
    measures:
      - number: 1
        time: "4/4"
        events: [{pitch: C4, duration: 4}]
      - number: 2
        events: [{pitch: D4, duration: 2}, {pitch: G3, duration: 2}]
  - id: B
    measures:
      - number: 1
        time: "4/4"
        events: [{pitch: C3, duration: 4}]
      - number: 2
        events:
          - {pitch: G2, duration: 2}
          - {pitch: C3, duration: 1}
          - {pitch: D3, duration: 1}
`

func TestProcessFile_CadenceStopsAtFermataOnset(t *testing.T) {
	cfg := testConfig(t)
	cfg.Segmentation.Mode = model.ModeCadence
	path := writeScore(t, t.TempDir(), "held.yaml", heldCadenceYAML)

	set, err := newTestPipeline(t, cfg).ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}

	cad := excerptByID(set, "held_cad1_m2-2")
	if cad == nil {
		t.Fatalf("Expected held_cad1_m2-2, got %+v", set.Records())
	}
	if cad.FinalBass.Name != "C3" {
		t.Errorf("Expected bass motion under the fermata cut, final bass %+v", cad.FinalBass)
	}
	if cad.Cadence == nil || cad.Cadence.LastBassInterval == nil || *cad.Cadence.LastBassInterval != 5 {
		t.Fatalf("Expected last bass interval 5, got %+v", cad.Cadence)
	}
	if cad.Cadence.Type != model.CadenceAuthentic || cad.Cadence.FinalSopranoRole != model.RoleRoot {
		t.Errorf("Expected authentic cadence with soprano on the root, got %+v", cad.Cadence)
	}
	if got := cad.Signatures.BassWithRhythm; got != "43:2.0,48:1.0" {
		t.Errorf("Unexpected bass signature %q", got)
	}
}

func TestProcessScore_MissingSopranoWarns(t *testing.T) {
	cfg := testConfig(t)
	cfg.Segmentation.SopranoVoice = 2
	score := &model.Score{Parts: []model.Part{{ID: "S", Measures: []model.Measure{
		{Number: 1, Duration: 4, Events: []model.Event{model.NewNote(0, 4, model.Pitch{MIDI: 72, Name: "C5"}).WithFermata(model.MarkExpression)}},
	}}}}

	set := newTestPipeline(t, cfg).ProcessScore("solo", "solo.yaml", score)

	if len(set.Excerpts) != 0 {
		t.Errorf("Expected no excerpts without a soprano, got %d", len(set.Excerpts))
	}
	if len(set.Warnings) != 1 || !strings.Contains(set.Warnings[0], "missing soprano voice: index 2, score has 1 parts") {
		t.Errorf("Expected one missing soprano warning, got %v", set.Warnings)
	}
}

func TestProcessFile_Malformed(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	p := newTestPipeline(t, cfg)

	bad := writeScore(t, dir, "bad.yaml", "parts:\n  - id: S\n    measures:\n      - number: 1\n        events: [{pitch: C4, duration: -1}]\n")
	if _, err := p.ProcessFile(context.Background(), bad); !errors.Is(err, model.ErrMalformedInput) {
		t.Errorf("Expected malformed input error, got %v", err)
	}

	txt := writeScore(t, dir, "notes.txt", "hello")
	if _, err := p.ProcessFile(context.Background(), txt); !errors.Is(err, model.ErrMalformedInput) {
		t.Errorf("Expected malformed input for unknown extension, got %v", err)
	}

	if _, err := p.ProcessFile(context.Background(), filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestProcessFile_CatalogSuppliesTonalCenter(t *testing.T) {
	dir := t.TempDir()
	noKey := strings.Replace(choraleYAML, "tonal_center: D major\n", "", 1)
	path := writeScore(t, dir, "bwv999.9.yaml", noKey)
	catalogPath := writeScore(t, dir, "catalog.yaml", "- bwv: \"999.9\"\n  title: From Catalog\n  tonal_center: D major\n")

	cfg := testConfig(t)
	cfg.Catalog.Path = catalogPath
	set, err := newTestPipeline(t, cfg).ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}

	if set.TonalCenter != "D major" {
		t.Errorf("Expected tonal center from catalog, got %q", set.TonalCenter)
	}
	rec := set.Excerpts[0].Record
	if rec.Catalog != "BWV 999.9" || rec.Title != "Test Chorale" {
		t.Errorf("Expected document title and catalog id, got %q / %q", rec.Title, rec.Catalog)
	}
}

func TestProcessFile_Cache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Enabled = true
	cfg.Cache.Dir = t.TempDir()
	path := writeScore(t, t.TempDir(), "piece.yaml", choraleYAML)
	p := newTestPipeline(t, cfg)

	first, err := p.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}

	// A cached set keeps its original timestamp
	p.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	second, err := p.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile (cached): %v", err)
	}
	if !second.ProcessedAt.Equal(first.ProcessedAt) {
		t.Errorf("Expected cached result, got fresh timestamp %v", second.ProcessedAt)
	}
	if len(second.Excerpts) != len(first.Excerpts) {
		t.Fatalf("Expected %d cached excerpts, got %d", len(first.Excerpts), len(second.Excerpts))
	}
	if second.Excerpts[1].Record.Cadence.Type != model.CadenceAuthentic {
		t.Errorf("Expected cached cadence record to survive, got %+v", second.Excerpts[1].Record.Cadence)
	}

	// Changed settings miss the cache
	cfg.Segmentation.Mode = model.ModePhrase
	third, err := p.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if len(third.Excerpts) != 2 {
		t.Errorf("Expected fresh phrase-only result, got %d excerpts", len(third.Excerpts))
	}
}

func TestPipeline_WithBatchProcessor(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	writeScore(t, dir, "a.yaml", choraleYAML)
	writeScore(t, dir, "b.json", `{"parts": []}`)

	bp := worker.NewBatchProcessor(newTestPipeline(t, cfg), 2, 0, 0)
	results, err := bp.ProcessDir(context.Background(), dir, cfg.Input.Extensions)
	if err != nil {
		t.Fatalf("ProcessDir: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Error != nil || len(results[0].Set.Excerpts) != 4 {
		t.Errorf("Expected a.yaml to yield 4 excerpts, got %+v", results[0])
	}
	if !errors.Is(results[1].Error, model.ErrMalformedInput) {
		t.Errorf("Expected b.json to be malformed, got %v", results[1].Error)
	}

	m := NewManifest(dir, cfg.Output.Dir, cfg.Segmentation.Mode)
	RecordResults(m, results)
	if m.Files != 2 || m.Succeeded != 1 || m.Failed != 1 || m.Excerpts != 4 {
		t.Errorf("Unexpected manifest counts %+v", m)
	}
	if CountMalformed(results) != 1 {
		t.Errorf("Expected one malformed input")
	}
	if m.RunID == "" {
		t.Error("Expected run id")
	}
}

func TestVoiceNames(t *testing.T) {
	got := voiceNames(5, 0, 3)
	want := []string{"soprano", "alto", "tenor", "bass", "part5"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("voiceNames[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	got = voiceNames(2, 0, -1)
	if got[0] != "soprano" || got[1] != "alto" {
		t.Errorf("Unexpected names without bass: %v", got)
	}
}
