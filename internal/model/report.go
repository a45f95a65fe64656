package model

import "time"

// ExcerptSet is everything derived from one source score
type ExcerptSet struct {
	PieceID     string    `json:"piece_id"` // Source file stem (e.g. "bwv101.7")
	Source      string    `json:"source"`   // Path of the source document
	Title       string    `json:"title,omitempty"`
	TonalCenter string    `json:"tonal_center,omitempty"`
	PickupBeats float64   `json:"pickup_beats"` // Length of the anacrusis in quarter notes, 0 if none
	ProcessedAt time.Time `json:"processed_at"`
	Excerpts    []Excerpt `json:"excerpts"`
	Warnings    []string  `json:"warnings,omitempty"` // File-local problems that skipped a derivation

	Commentary *Commentary `json:"commentary,omitempty"` // Optional LLM notes (separate, never affects records)
}

// Records returns the derived records of the set in excerpt order
func (s *ExcerptSet) Records() []ExcerptRecord {
	records := make([]ExcerptRecord, len(s.Excerpts))
	for i, e := range s.Excerpts {
		records[i] = e.Record
	}
	return records
}

// CountKind returns how many excerpts of the given kind the set holds
func (s *ExcerptSet) CountKind(kind ExcerptKind) int {
	n := 0
	for _, e := range s.Excerpts {
		if e.Record.Kind == kind {
			n++
		}
	}
	return n
}

// Commentary contains optional LLM-generated prose about a piece
// It may cite only excerpt ids of the same piece and never changes any record
type Commentary struct {
	Enabled         bool     `json:"enabled"`
	Provider        string   `json:"provider,omitempty"`
	Model           string   `json:"model,omitempty"`
	StrictCitations bool     `json:"strict_citations"`
	SummaryMD       string   `json:"summary_md,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// Manifest summarizes one batch run
type Manifest struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	InputRoot  string            `json:"input_root"`
	OutputRoot string            `json:"output_root"`
	Mode       string            `json:"mode"`
	Files      int               `json:"files"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Excerpts   int               `json:"excerpts"`
	Failures   map[string]string `json:"failures,omitempty"` // source path -> error
}

// GroupMember is one phrase inside a signature group
type GroupMember struct {
	ID          string `json:"id"`
	PieceID     string `json:"piece_id"`
	PhraseIndex int    `json:"phrase_index"`
	Title       string `json:"title"`
	Measures    string `json:"measures"`
}

// Group collects phrases sharing one interval/duration signature
type Group struct {
	GroupID   string        `json:"group_id"`
	Signature string        `json:"signature"`
	Intervals []int         `json:"intervals"`
	Durations []float64     `json:"durations"`
	Size      int           `json:"size"`
	Phrases   []GroupMember `json:"phrases"`
}

// GroupIndex is the corpus-wide soprano phrase grouping
type GroupIndex struct {
	GeneratedAt time.Time `json:"generated_at"`
	PhraseCount int       `json:"phrase_count"`
	GroupCount  int       `json:"group_count"`
	Groups      []Group   `json:"groups"`
}

// PieceRecords is the on-disk records document of one piece (<piece>.records.json)
type PieceRecords struct {
	PieceID     string          `json:"piece_id"`
	Source      string          `json:"source"`
	Title       string          `json:"title,omitempty"`
	TonalCenter string          `json:"tonal_center,omitempty"`
	PickupBeats float64         `json:"pickup_beats"`
	ProcessedAt time.Time       `json:"processed_at"`
	Warnings    []string        `json:"warnings,omitempty"`
	Records     []ExcerptRecord `json:"records"`
}

// PieceRecords strips the excerpt scores from the set
func (s *ExcerptSet) PieceRecords() PieceRecords {
	return PieceRecords{
		PieceID:     s.PieceID,
		Source:      s.Source,
		Title:       s.Title,
		TonalCenter: s.TonalCenter,
		PickupBeats: s.PickupBeats,
		ProcessedAt: s.ProcessedAt,
		Warnings:    s.Warnings,
		Records:     s.Records(),
	}
}
