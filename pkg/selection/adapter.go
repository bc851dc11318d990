package selection

import (
	"context"
	"strconv"

	"lectern/pkg/extract"
	"lectern/pkg/model"
)

// VoiceSelector is the canonical selection interface. There is exactly
// one implementation of the algorithm (Orchestrator); older call
// shapes wrap it instead of reimplementing it.
type VoiceSelector interface {
	SelectVoiceForProfile(ctx context.Context, profile *model.Profile, overrides extract.Overrides) (*model.VoiceRecord, error)
}

var _ VoiceSelector = (*Orchestrator)(nil)

// AttrAdapter adapts the legacy loosely-typed attribute-map call shape
// onto the canonical orchestrator. It performs conversion only.
type AttrAdapter struct {
	Inner VoiceSelector
}

// SelectVoice resolves a voice from a bare attribute map. Recognized
// keys: profile_id, name, background, department, gender, accent, age
// (numeric). Unknown keys are ignored.
func (a *AttrAdapter) SelectVoice(ctx context.Context, attrs map[string]string) (*model.VoiceRecord, error) {
	profile := &model.Profile{
		ID:         attrs["profile_id"],
		Name:       attrs["name"],
		Background: attrs["background"],
		Department: attrs["department"],
		Gender:     attrs["gender"],
		Accent:     attrs["accent"],
	}
	if ageStr, ok := attrs["age"]; ok {
		if age, err := strconv.Atoi(ageStr); err == nil {
			profile.Age = age
		}
	}
	return a.Inner.SelectVoiceForProfile(ctx, profile, extract.Overrides{})
}
