package serve

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/chorale/internal/model"
	"github.com/ppiankov/chorale/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func excerptScore(pitches ...int) *model.Score {
	m := model.Measure{Number: 1, Duration: 4, Time: &model.TimeSignature{Numerator: 4, Denominator: 4}}
	for i, p := range pitches {
		m.Events = append(m.Events, model.NewNote(float64(i), 1, model.Pitch{MIDI: p, Name: "x"}))
	}
	return &model.Score{Parts: []model.Part{{ID: "S", Measures: []model.Measure{m}}}}
}

func voiceOf(pitches ...int) model.VoiceData {
	v := model.VoiceData{}
	for _, p := range pitches {
		v.MIDI = append(v.MIDI, model.IntPtr(p))
		v.Durations = append(v.Durations, 1)
	}
	return v
}

func renderFixture(t *testing.T) string {
	t.Helper()
	out := t.TempDir()
	r := pipeline.NewRenderer(out, []string{model.FormatYAML})

	sets := []*model.ExcerptSet{
		{
			PieceID: "bwv1.6", Title: "Wie schön leuchtet", TonalCenter: "F major",
			Excerpts: []model.Excerpt{
				{Record: model.ExcerptRecord{ID: "bwv1.6_phrase01", Kind: model.ExcerptPhrase, Index: 1, PieceID: "bwv1.6",
					StartMeasure: 1, EndMeasure: 2, Voices: map[string]model.VoiceData{"soprano": voiceOf(60, 62, 64)}},
					Score: excerptScore(60, 62, 64)},
				{Record: model.ExcerptRecord{ID: "bwv1.6_cad1_m1-2", Kind: model.ExcerptCadence, Index: 1, PieceID: "bwv1.6",
					Cadence: &model.CadenceRecord{Type: model.CadenceAuthentic, FinalSopranoRole: model.RoleRoot}},
					Score: excerptScore(65)},
			},
		},
		{
			PieceID: "bwv2.6",
			Excerpts: []model.Excerpt{
				{Record: model.ExcerptRecord{ID: "bwv2.6_phrase01", Kind: model.ExcerptPhrase, Index: 1, PieceID: "bwv2.6",
					StartMeasure: 0, EndMeasure: 3, Voices: map[string]model.VoiceData{"soprano": voiceOf(67, 69, 71)}},
					Score: excerptScore(67, 69, 71)},
				{Record: model.ExcerptRecord{ID: "bwv2.6_cad1_m3-3", Kind: model.ExcerptCadence, Index: 1, PieceID: "bwv2.6",
					Cadence: &model.CadenceRecord{Type: model.CadencePhrygian, FinalSopranoRole: model.RoleThird}},
					Score: excerptScore(64)},
			},
		},
	}
	for _, set := range sets {
		_, err := r.RenderSet(set)
		require.NoError(t, err)
	}
	return out
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Origin", "http://viewer.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Pieces(t *testing.T) {
	h := New(renderFixture(t), nil).Handler()

	resp := get(t, h, "/api/pieces")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))

	var list []PieceSummary
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "bwv1.6", list[0].PieceID)
	assert.Equal(t, 1, list[0].Phrases)
	assert.Equal(t, 1, list[0].Cadences)

	resp = get(t, h, "/api/pieces/bwv2.6")
	require.Equal(t, http.StatusOK, resp.Code)
	var piece model.PieceRecords
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &piece))
	assert.Len(t, piece.Records, 2)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/pieces/bwv9.9").Code)
}

func TestServer_RecordFilters(t *testing.T) {
	h := New(renderFixture(t), nil).Handler()

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"bwv1.6_phrase01", "bwv1.6_cad1_m1-2", "bwv2.6_phrase01", "bwv2.6_cad1_m3-3"}},
		{"?kind=phrase", []string{"bwv1.6_phrase01", "bwv2.6_phrase01"}},
		{"?cadence=phrygian", []string{"bwv2.6_cad1_m3-3"}},
		{"?piece=bwv1.6&kind=cadence", []string{"bwv1.6_cad1_m1-2"}},
		{"?cadence=deceptive", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := get(t, h, "/api/records"+tt.query)
			require.Equal(t, http.StatusOK, resp.Code)
			var records []model.ExcerptRecord
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &records))
			ids := make([]string, 0, len(records))
			for _, r := range records {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestServer_RecordAndExcerptFile(t *testing.T) {
	h := New(renderFixture(t), nil).Handler()

	resp := get(t, h, "/api/records/bwv1.6_cad1_m1-2")
	require.Equal(t, http.StatusOK, resp.Code)
	var rec model.ExcerptRecord
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &rec))
	assert.Equal(t, model.CadenceAuthentic, rec.Cadence.Type)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/records/nope").Code)

	resp = get(t, h, "/api/records/bwv1.6_phrase01/score.yaml")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "parts:")

	// MIDI was not among the rendered formats
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/records/bwv1.6_phrase01/score.mid").Code)
}

func TestServer_Groups(t *testing.T) {
	out := renderFixture(t)
	h := New(out, nil).Handler()

	resp := get(t, h, "/api/groups")
	require.Equal(t, http.StatusOK, resp.Code)
	var index model.GroupIndex
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &index))
	assert.Equal(t, 2, index.PhraseCount)
	require.Equal(t, 1, index.GroupCount, "both phrases rise by two whole steps")
	assert.Equal(t, "INT:2,2|DUR:1.0,1.0,1.0", index.Groups[0].Signature)

	// A written index takes precedence
	require.NoError(t, os.WriteFile(filepath.Join(out, GroupsFile), []byte(`{"group_count": 7}`), 0644))
	resp = get(t, h, "/api/groups")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &index))
	assert.Equal(t, 7, index.GroupCount)
}

func TestServer_CORSAndHealth(t *testing.T) {
	h := New(t.TempDir(), []string{"http://viewer.local"}).Handler()

	resp := get(t, h, "/healthz")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "http://viewer.local", resp.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://elsewhere.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// An empty output directory lists nothing
	resp = get(t, h, "/api/pieces")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, "[]", resp.Body.String())
}
