package phrase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chorale/internal/model"
)

func fourFourVoice(numbers ...int) model.Part {
	var measures []model.Measure
	for _, n := range numbers {
		measures = append(measures, model.Measure{
			Number:   n,
			Duration: 4,
			Events: []model.Event{
				model.NewNote(0, 2, model.Pitch{MIDI: 60}),
				model.NewNote(2, 2, model.Pitch{MIDI: 62}),
			},
		})
	}
	return model.Part{ID: "P1", Measures: measures}
}

// normalizedEnd moves an end point sitting on a barline to the next downbeat
func normalizedEnd(s model.PhraseSpan, bars BarLengths) model.Position {
	end := model.Position{Measure: s.EndMeasure, Offset: *s.EndOffset}
	if bar, ok := bars[s.EndMeasure]; ok && end.Offset >= bar-DefaultTolerance {
		return model.Position{Measure: s.EndMeasure + 1}
	}
	return end
}

func TestPlan_NoFermatasCoversWholePiece(t *testing.T) {
	voice := fourFourVoice(1, 2, 3, 4)
	spans := NewPlanner(0).PlanVoice(voice, nil)

	require.Len(t, spans, 1)
	assert.Equal(t, 1, spans[0].StartMeasure)
	assert.Equal(t, 0.0, spans[0].StartOffset)
	assert.Equal(t, 4, spans[0].EndMeasure)
	assert.True(t, spans[0].OpenEnded())
}

func TestPlan_FermataAtBarlineAdvancesToNextMeasure(t *testing.T) {
	voice := fourFourVoice(1, 2, 3, 4)
	events := []model.FermataEvent{{Measure: 2, Offset: 2, Duration: 2}}

	spans := NewPlanner(0).PlanVoice(voice, events)

	require.Len(t, spans, 2)
	assert.Equal(t, 2, spans[0].EndMeasure)
	assert.Equal(t, 4.0, *spans[0].EndOffset)
	assert.Equal(t, 3, spans[1].StartMeasure)
	assert.Equal(t, 0.0, spans[1].StartOffset)
	assert.True(t, spans[1].OpenEnded())
}

func TestPlan_MidMeasureFermataStaysInMeasure(t *testing.T) {
	voice := fourFourVoice(1, 2, 3)
	events := []model.FermataEvent{{Measure: 2, Offset: 0, Duration: 2}}

	spans := NewPlanner(0).PlanVoice(voice, events)

	require.Len(t, spans, 2)
	assert.Equal(t, 2, spans[1].StartMeasure)
	assert.Equal(t, 2.0, spans[1].StartOffset)
}

func TestPlan_FinalFermataLeavesNoTrailingSpan(t *testing.T) {
	voice := fourFourVoice(1, 2)
	events := []model.FermataEvent{{Measure: 2, Offset: 2, Duration: 2}}

	spans := NewPlanner(0).PlanVoice(voice, events)

	require.Len(t, spans, 1)
	assert.False(t, spans[0].OpenEnded())
}

func TestPlan_CoincidentFermatasYieldZeroLengthSpan(t *testing.T) {
	voice := fourFourVoice(1, 2, 3)
	events := []model.FermataEvent{
		{Measure: 2, Offset: 0, Duration: 2},
		{Measure: 2, Offset: 0, Duration: 2},
	}

	spans := NewPlanner(0).PlanVoice(voice, events)

	require.Len(t, spans, 3)
	assert.True(t, spans[1].IsEmpty(), "second span should be zero-length: %s", spans[1])
}

func TestPlan_PickupStartsAtFirstOnset(t *testing.T) {
	pickup := model.Measure{Number: 0, Duration: 4, Events: []model.Event{
		model.NewRest(0, 3),
		model.NewNote(3, 1, model.Pitch{MIDI: 67}),
	}}
	voice := fourFourVoice(1, 2)
	voice.Measures = append([]model.Measure{pickup}, voice.Measures...)

	spans := NewPlanner(0).PlanVoice(voice, nil)

	require.Len(t, spans, 1)
	assert.Equal(t, 0, spans[0].StartMeasure)
	assert.Equal(t, 3.0, spans[0].StartOffset)
}

func TestPlan_EmptyVoiceDefaultsToFirstMeasure(t *testing.T) {
	voice := model.Part{Measures: []model.Measure{
		{Number: 1, Duration: 4, Events: []model.Event{model.NewRest(0, 4)}},
		{Number: 2, Duration: 4, Events: []model.Event{model.NewRest(0, 4)}},
	}}

	spans := NewPlanner(0).PlanVoice(voice, nil)

	require.Len(t, spans, 1)
	assert.Equal(t, model.Position{Measure: 1, Offset: 0}, spans[0].Start())
}

func TestPlan_SpansPartitionThePiece(t *testing.T) {
	voice := fourFourVoice(1, 2, 3, 4, 5, 6)
	events := []model.FermataEvent{
		{Measure: 2, Offset: 2, Duration: 2},
		{Measure: 4, Offset: 1, Duration: 1},
		{Measure: 5, Offset: 0, Duration: 4},
	}
	bars := BarLengthsOf(voice)

	spans := NewPlanner(0).PlanVoice(voice, events)
	require.Len(t, spans, 4)

	for i := 0; i < len(spans)-1; i++ {
		assert.Equal(t, normalizedEnd(spans[i], bars), spans[i+1].Start(), "gap or overlap after span %d", i)
	}
	last := spans[len(spans)-1]
	assert.Equal(t, 6, last.EndMeasure)
	assert.True(t, last.OpenEnded())
}

func TestPlanCadences(t *testing.T) {
	events := []model.FermataEvent{
		{Measure: 1, Offset: 0, Duration: 2},
		{Measure: 4, Offset: 0, Duration: 4},
		{Measure: 7, Offset: 2, Duration: 2},
	}

	spans := NewPlanner(0).PlanCadences(events)

	require.Len(t, spans, 3)
	assert.Equal(t, 1, spans[0].StartMeasure, "measure 1 has no predecessor")
	assert.Equal(t, 3, spans[1].StartMeasure, "downbeat fermata reaches back one measure")
	assert.Equal(t, 7, spans[2].StartMeasure)
	assert.Equal(t, 2.0, *spans[2].EndOffset, "window stops at the fermata onset")
	assert.True(t, spans[2].EndInclusive)
	for _, s := range spans {
		assert.Equal(t, 0.0, s.StartOffset)
	}
}

func TestMeasureRange(t *testing.T) {
	lo, hi := MeasureRange(model.Part{})
	assert.Equal(t, 1, lo)
	assert.Equal(t, 1, hi)

	lo, hi = MeasureRange(fourFourVoice(0, 1, 2, 9))
	assert.Equal(t, 0, lo)
	assert.Equal(t, 9, hi)
}
