package model

// CadenceType classifies the harmonic motion closing an excerpt
type CadenceType string

const (
	CadenceAuthentic  CadenceType = "authentic"
	CadencePlagalHalf CadenceType = "plagal/half"
	CadenceDeceptive  CadenceType = "deceptive"
	CadencePhrygian   CadenceType = "phrygian"
	CadenceOther      CadenceType = "other"
)

// SopranoRole is the chordal function of the final soprano note
type SopranoRole string

const (
	RoleRoot  SopranoRole = "root"
	RoleThird SopranoRole = "third"
	RoleFifth SopranoRole = "fifth"
	RoleOther SopranoRole = "other"
)

// CadenceRecord is the classification of an excerpt's ending
type CadenceRecord struct {
	LastBassInterval *int        `json:"last_bass_interval"` // semitones, nil with fewer than two bass notes
	Type             CadenceType `json:"cadence_type"`
	FinalSopranoRole SopranoRole `json:"final_soprano_role"`
}

// ExcerptKind tells which segmentation produced an excerpt
type ExcerptKind string

const (
	ExcerptPhrase  ExcerptKind = "phrase"
	ExcerptCadence ExcerptKind = "cadence"
)

// VoiceData is the flattened event stream of one voice.
// Nil entries in MIDI and Intervals stand for rests.
type VoiceData struct {
	MIDI      []*int    `json:"midi"`
	Names     []string  `json:"names"`
	Durations []float64 `json:"durations"`
	Intervals []*int    `json:"intervals"`
}

// FinalNote identifies the last sounding note of a voice
type FinalNote struct {
	Pitch *int   `json:"pitch"`
	Name  string `json:"name,omitempty"`
}

// Signatures holds the grouping keys of an excerpt's outer voices
type Signatures struct {
	Soprano           string `json:"soprano_signature"`
	SopranoWithRhythm string `json:"soprano_signature_with_rhythm"`
	Bass              string `json:"bass_signature"`
	BassWithRhythm    string `json:"bass_signature_with_rhythm"`
	SopranoIntervals  string `json:"soprano_interval_signature,omitempty"`
}

// ExcerptRecord is the derived, serializable description of one excerpt
type ExcerptRecord struct {
	ID            string               `json:"id"`
	Kind          ExcerptKind          `json:"kind"`
	Index         int                  `json:"index"` // 1-based within the piece
	PieceID       string               `json:"piece_id"`
	Source        string               `json:"source"`
	Title         string               `json:"title,omitempty"`
	Catalog       string               `json:"catalog,omitempty"`
	TonalCenter   string               `json:"tonal_center,omitempty"`
	TimeSignature string               `json:"time_signature,omitempty"`
	Span          PhraseSpan           `json:"span"`
	StartMeasure  int                  `json:"start_measure"`
	EndMeasure    int                  `json:"end_measure"`
	FermataBeat   *float64             `json:"fermata_beat,omitempty"`
	EventCount    int                  `json:"event_count"`
	Voices        map[string]VoiceData `json:"voices"`
	FinalSoprano  FinalNote            `json:"final_soprano"`
	FinalBass     FinalNote            `json:"final_bass"`
	Cadence       *CadenceRecord       `json:"cadence,omitempty"`
	Signatures    Signatures           `json:"signatures"`
}

// Excerpt pairs a derived record with the excerpt score it describes
type Excerpt struct {
	Record ExcerptRecord `json:"record"`
	Score  *Score        `json:"score"`
}
