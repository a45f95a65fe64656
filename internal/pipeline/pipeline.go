package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/chorale/internal/cache"
	"github.com/ppiankov/chorale/internal/cadence"
	"github.com/ppiankov/chorale/internal/catalog"
	"github.com/ppiankov/chorale/internal/extract"
	"github.com/ppiankov/chorale/internal/fermata"
	"github.com/ppiankov/chorale/internal/llm"
	"github.com/ppiankov/chorale/internal/logger"
	"github.com/ppiankov/chorale/internal/model"
	"github.com/ppiankov/chorale/internal/phrase"
	"github.com/ppiankov/chorale/internal/scoredoc"
	"github.com/ppiankov/chorale/internal/signature"
	"github.com/ppiankov/chorale/internal/voice"
)

// Pipeline derives phrase and cadence excerpts from score files
type Pipeline struct {
	phraseDetector  *fermata.Detector
	cadenceDetector *fermata.Detector
	planner         *phrase.Planner
	extractor       *extract.Extractor
	catalog         *catalog.Catalog
	cache           cache.Cache
	summarizer      *llm.Summarizer // Optional commentary (nil if disabled)
	config          *model.Config
	now             func() time.Time
}

// NewPipeline creates a new pipeline with the given configuration.
// A catalog that cannot be loaded is an error; a broken LLM setup only disables commentary.
func NewPipeline(cfg *model.Config) (*Pipeline, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if cfg.Catalog.Path != "" {
		logger.Info("Loaded catalog %s (%d entries)", cfg.Catalog.Path, cat.Len())
	}

	var summarizer *llm.Summarizer
	if cfg.LLM.Provider != "" {
		s, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			logger.Warn("Failed to initialize LLM provider: %v", err)
		} else {
			summarizer = s
		}
	}

	var c cache.Cache = cache.Noop{}
	if cfg.Cache.Enabled {
		c = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	return &Pipeline{
		phraseDetector:  fermata.NewDetector(fermata.Exhaustive),
		cadenceDetector: fermata.NewDetector(fermata.FirstPerMeasure),
		planner:         phrase.NewPlanner(cfg.Segmentation.Tolerance),
		extractor:       extract.NewExtractor(cfg.Segmentation.Tolerance, cfg.Segmentation.LowerVoices),
		catalog:         cat,
		cache:           c,
		summarizer:      summarizer,
		config:          cfg,
		now:             time.Now,
	}, nil
}

// PieceID derives the piece id from a source path ("scores/bwv101.7.yaml" -> "bwv101.7")
func PieceID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ProcessFile reads, decodes and segments one score file.
// Results are cached by content and settings; commentary is never cached.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*model.ExcerptSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	stem := PieceID(path)
	key := cache.Key(data, p.settingsKey(path, stem))

	if cached, ok := p.cache.Get(key); ok {
		var set model.ExcerptSet
		if err := json.Unmarshal(cached, &set); err == nil {
			logger.Debug("cache hit: %s", path)
			p.comment(ctx, &set)
			return &set, nil
		}
		logger.Debug("discarding unreadable cache entry for %s", path)
		_ = p.cache.Delete(key)
	}

	format, ok := scoredoc.FormatOf(path)
	if !ok {
		return nil, &model.MalformedInputError{Path: path, Reason: "unsupported extension"}
	}
	score, err := scoredoc.Decode(data, format, path)
	if err != nil {
		return nil, err
	}

	set := p.ProcessScore(stem, path, score)

	if encoded, err := json.Marshal(set); err == nil {
		if err := p.cache.Set(key, encoded, 0); err != nil {
			logger.Warn("cache write failed for %s: %v", path, err)
		}
	}

	p.comment(ctx, set)
	return set, nil
}

// CacheStats reports the cache lookups made so far; ok is false when caching is off
func (p *Pipeline) CacheStats() (stats cache.Stats, ok bool) {
	if c, ok := p.cache.(interface{ Stats() cache.Stats }); ok {
		return c.Stats(), true
	}
	return cache.Stats{}, false
}

// settingsKey captures everything besides the file content that shapes the derived set
func (p *Pipeline) settingsKey(path, stem string) string {
	seg := p.config.Segmentation
	entry, _ := p.catalog.Lookup(stem)
	return fmt.Sprintf("%s|%s|%g|%d|%d|%v|%+v", path, seg.Mode, seg.Tolerance,
		seg.SopranoVoice, seg.BassVoice, seg.LowerVoices, entry)
}

// comment attaches optional commentary; failures stay inside the commentary warnings
func (p *Pipeline) comment(ctx context.Context, set *model.ExcerptSet) {
	if p.summarizer == nil || !p.summarizer.IsEnabled() || len(set.Excerpts) == 0 {
		return
	}
	commentary, err := p.summarizer.GenerateSummary(ctx, *set)
	if err != nil {
		logger.Warn("commentary for %s failed: %v", set.PieceID, err)
		return
	}
	set.Commentary = commentary
}

// ProcessScore segments an already decoded score. The input score is not modified.
// A missing reference voice yields an empty set with a warning rather than an error.
func (p *Pipeline) ProcessScore(stem, source string, score *model.Score) *model.ExcerptSet {
	meta := p.catalog.Merge(score.Metadata, stem)
	score = &model.Score{Metadata: meta, Parts: score.Parts}

	set := &model.ExcerptSet{
		PieceID:     stem,
		Source:      source,
		Title:       meta.Title,
		TonalCenter: meta.TonalCenter,
		ProcessedAt: p.now().UTC(),
		Excerpts:    []model.Excerpt{},
	}

	seg := p.config.Segmentation
	sIdx, err := voice.Resolve(score, "soprano", seg.SopranoVoice)
	if err != nil {
		set.Warnings = append(set.Warnings, fmt.Sprintf("no excerpts: %v", err))
		return set
	}
	soprano := score.Parts[sIdx]
	set.PickupBeats = voice.PickupBeats(soprano, seg.Tolerance)

	if p.config.PhraseEnabled() {
		events := p.phraseDetector.Detect(soprano)
		for i, span := range p.planner.PlanVoice(soprano, events) {
			var fermataEvent *model.FermataEvent
			if i < len(events) {
				fermataEvent = &events[i]
			}
			id := fmt.Sprintf("%s_phrase%02d", stem, i+1)
			p.addExcerpt(set, score, sIdx, model.ExcerptPhrase, i+1, id, span, fermataEvent)
		}
	}

	if p.config.CadenceEnabled() {
		events := p.cadenceDetector.Detect(soprano)
		for k, span := range p.planner.PlanCadences(events) {
			id := fmt.Sprintf("%s_cad%d_m%d-%d", stem, k+1, span.StartMeasure, span.EndMeasure)
			p.addExcerpt(set, score, sIdx, model.ExcerptCadence, k+1, id, span, &events[k])
		}
	}

	logger.Debug("%s: %d phrases, %d cadences", stem,
		set.CountKind(model.ExcerptPhrase), set.CountKind(model.ExcerptCadence))
	return set
}

// addExcerpt extracts one span and derives its record
func (p *Pipeline) addExcerpt(set *model.ExcerptSet, score *model.Score, sIdx int, kind model.ExcerptKind,
	index int, id string, span model.PhraseSpan, fermataEvent *model.FermataEvent) {

	sub := p.extractor.Extract(score, span)
	meta := score.Metadata

	rec := model.ExcerptRecord{
		ID:            id,
		Kind:          kind,
		Index:         index,
		PieceID:       set.PieceID,
		Source:        set.Source,
		Title:         meta.Title,
		Catalog:       meta.Catalog,
		TonalCenter:   meta.TonalCenter,
		TimeSignature: meta.TimeSignature,
		Span:          span,
		StartMeasure:  span.StartMeasure,
		EndMeasure:    span.EndMeasure,
		EventCount:    sub.EventCount(),
	}

	if fermataEvent != nil {
		if ts, ok := voice.TimeAt(score.Parts[sIdx], fermataEvent.Measure); ok {
			rec.FermataBeat = model.Float64Ptr(voice.Beat(fermataEvent.Offset, ts))
		}
	}

	bIdx, bassErr := voice.Resolve(sub, "bass", p.config.Segmentation.BassVoice)
	if bassErr != nil {
		bIdx = -1
	}

	names := voiceNames(len(sub.Parts), sIdx, bIdx)
	rec.Voices = make(map[string]model.VoiceData, len(sub.Parts))
	for i, part := range sub.Parts {
		rec.Voices[names[i]] = voice.Data(part)
	}

	sopranoData := rec.Voices["soprano"]
	rec.FinalSoprano = voice.Final(sub.Parts[sIdx])
	rec.Signatures.Soprano = signature.Build(sopranoData.MIDI, nil)
	rec.Signatures.SopranoWithRhythm = signature.Build(sopranoData.MIDI, sopranoData.Durations)
	if intervals, durations := signature.Contour(sopranoData); len(intervals) > 0 {
		rec.Signatures.SopranoIntervals = signature.IntervalKey(intervals, durations)
	}

	if bassErr != nil {
		set.Warnings = append(set.Warnings, fmt.Sprintf("%s: cadence skipped: %v", id, bassErr))
	} else {
		bassData := rec.Voices[names[bIdx]]
		rec.FinalBass = voice.Final(sub.Parts[bIdx])
		rec.Signatures.Bass = signature.Build(bassData.MIDI, nil)
		rec.Signatures.BassWithRhythm = signature.Build(bassData.MIDI, bassData.Durations)

		cad, err := cadence.Analyze(sub, meta.TonalCenter, sIdx, bIdx)
		if err != nil {
			set.Warnings = append(set.Warnings, fmt.Sprintf("%s: cadence skipped: %v", id, err))
		} else {
			rec.Cadence = &cad
		}
	}

	set.Excerpts = append(set.Excerpts, model.Excerpt{Record: rec, Score: sub})
}

// voiceNames labels parts: the reference and bass voices by role, the rest as inner
// voices in score order, and any beyond four by position
func voiceNames(parts, sIdx, bIdx int) []string {
	names := make([]string, parts)
	inner := append([]string(nil), voice.Names[1:3]...)
	for i := range names {
		switch {
		case i == sIdx:
			names[i] = "soprano"
		case i == bIdx:
			names[i] = "bass"
		case len(inner) > 0:
			names[i] = inner[0]
			inner = inner[1:]
		default:
			names[i] = fmt.Sprintf("part%d", i+1)
		}
	}
	return names
}
