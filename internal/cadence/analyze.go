package cadence

import (
	"github.com/ppiankov/chorale/internal/model"
	"github.com/ppiankov/chorale/internal/voice"
)

// Analyze builds the cadence record of an excerpt score from its soprano and bass parts.
// bassIdx -1 selects the last part. A missing voice yields a MissingVoiceError.
func Analyze(score *model.Score, tonalCenter string, sopranoIdx, bassIdx int) (model.CadenceRecord, error) {
	s, err := voice.Resolve(score, "soprano", sopranoIdx)
	if err != nil {
		return model.CadenceRecord{}, err
	}
	b, err := voice.Resolve(score, "bass", bassIdx)
	if err != nil {
		return model.CadenceRecord{}, err
	}

	bass := voice.Data(score.Parts[b])
	finalBass := voice.Final(score.Parts[b])
	interval, kind := Classify(bass.MIDI, tonalCenter, finalBass.Pitch)

	finalSoprano := voice.Final(score.Parts[s])
	role := SopranoRole(voice.FinalSimultaneity(score), finalSoprano.Pitch)

	return model.CadenceRecord{
		LastBassInterval: interval,
		Type:             kind,
		FinalSopranoRole: role,
	}, nil
}
