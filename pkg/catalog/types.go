package catalog

import (
	"math"
	"net/url"
	"strconv"
	"time"

	"lectern/pkg/model"
)

// Filters narrow a voice listing request. Zero values are omitted from
// the query string.
type Filters struct {
	Gender          string
	Accent          string
	Age             string
	Language        string
	UseCase         string
	Category        string
	Search          string
	MinNoticePeriod int // Days
	Featured        bool
}

// Values encodes the filters as URL query parameters.
func (f Filters) Values() url.Values {
	q := url.Values{}
	set := func(key, val string) {
		if val != "" {
			q.Set(key, val)
		}
	}
	set("gender", f.Gender)
	set("accent", f.Accent)
	set("age", f.Age)
	set("language", f.Language)
	set("use_cases", f.UseCase)
	set("category", f.Category)
	set("search", f.Search)
	if f.MinNoticePeriod > 0 {
		q.Set("min_notice_period_days", strconv.Itoa(f.MinNoticePeriod))
	}
	if f.Featured {
		q.Set("featured", "true")
	}
	return q
}

// voiceRaw is the catalog's wire representation of a voice.
type voiceRaw struct {
	VoiceID        string `json:"voice_id"`
	Name           string `json:"name"`
	Gender         string `json:"gender"`
	Accent         string `json:"accent"`
	Age            string `json:"age"`
	Category       string `json:"category"`
	Language       string `json:"language"`
	UseCase        string `json:"use_case"`
	Description    string `json:"description"`
	PreviewURL     string `json:"preview_url"`
	ClonedByCount  int64  `json:"cloned_by_count"`
	UsageCharCount int64  `json:"usage_character_count_1y"`
}

type listResponse struct {
	Voices  []voiceRaw `json:"voices"`
	HasMore bool       `json:"has_more"`
}

type synthesizeRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id,omitempty"`
	VoiceSettings model.SynthesisSettings `json:"voice_settings"`
}

// Category base weights for the quality heuristic.
var categoryQuality = map[string]float64{
	"professional": 0.90,
	"high_quality": 0.80,
	"famous":       0.70,
	"generated":    0.50,
}

const defaultCategoryQuality = 0.40

// toRecord converts a wire voice into a model record, computing the
// quality score once at ingestion. The score never changes afterwards
// unless the record is re-fetched.
func (v voiceRaw) toRecord(now time.Time) *model.VoiceRecord {
	base, ok := categoryQuality[v.Category]
	if !ok {
		base = defaultCategoryQuality
	}

	// Usage bonus: log-scaled so a handful of clones doesn't dominate,
	// capped at +0.1 to keep the score within [0,1].
	usage := float64(v.ClonedByCount) + float64(v.UsageCharCount)/10000.0
	bonus := 0.02 * math.Log10(usage+1)
	if bonus > 0.1 {
		bonus = 0.1
	}

	score := base + bonus
	if score > 1.0 {
		score = 1.0
	}

	return &model.VoiceRecord{
		VoiceID:        v.VoiceID,
		Name:           v.Name,
		Gender:         v.Gender,
		Accent:         v.Accent,
		Age:            v.Age,
		Category:       v.Category,
		Language:       v.Language,
		UseCase:        v.UseCase,
		Description:    v.Description,
		PreviewURL:     v.PreviewURL,
		ClonedByCount:  v.ClonedByCount,
		UsageCharCount: v.UsageCharCount,
		QualityScore:   score,
		FetchedAt:      now,
	}
}
