package model

import (
	"strings"
)

// Gender is a closed voice gender domain.
type Gender string

// Gender values. Unset means "no preference".
const (
	GenderUnset   Gender = ""
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderNeutral Gender = "neutral"
)

// AgeBucket is a closed age domain matching the catalog's buckets.
type AgeBucket string

// AgeBucket values.
const (
	AgeUnset      AgeBucket = ""
	AgeYoung      AgeBucket = "young"
	AgeMiddleAged AgeBucket = "middle_aged"
	AgeOld        AgeBucket = "old"
)

// SupportedAccents is the set of accent tags the catalog understands.
// Values outside this set are discarded during extraction, not errored.
var SupportedAccents = map[string]bool{
	"american":       true,
	"british":        true,
	"african":        true,
	"australian":     true,
	"indian":         true,
	"irish":          true,
	"scottish":       true,
	"canadian":       true,
	"german":         true,
	"french":         true,
	"italian":        true,
	"spanish":        true,
	"russian":        true,
	"polish":         true,
	"swedish":        true,
	"japanese":       true,
	"chinese":        true,
	"korean":         true,
	"middle_eastern": true,
	"latin_american": true,
}

// Criteria is the normalized, closed attribute set derived from a
// Profile. It is always recomputed, never persisted directly; cached
// query results are keyed by its deterministic string form instead.
type Criteria struct {
	Gender   Gender    `json:"gender,omitempty"`
	Accent   string    `json:"accent,omitempty"`
	Age      AgeBucket `json:"age,omitempty"`
	Language string    `json:"language,omitempty"` // ISO code, default "en"
	UseCase  string    `json:"use_case,omitempty"`
}

// NormalizeAccent lowercases an accent value and replaces spaces with
// underscores. Returns "" if the result is not a supported accent.
func NormalizeAccent(s string) string {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	if !SupportedAccents[norm] {
		return ""
	}
	return norm
}

// ParseGender maps a free-form gender value onto the closed domain.
func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m", "man":
		return GenderMale
	case "female", "f", "woman":
		return GenderFemale
	case "neutral", "non-binary", "nonbinary":
		return GenderNeutral
	default:
		return GenderUnset
	}
}

// BucketAge maps a numeric age onto the catalog's age buckets.
func BucketAge(age int) AgeBucket {
	switch {
	case age <= 0:
		return AgeUnset
	case age < 35:
		return AgeYoung
	case age > 60:
		return AgeOld
	default:
		return AgeMiddleAged
	}
}

// Matches reports whether a voice record satisfies the given criteria
// field-by-field. Unset fields always match.
func (c Criteria) Matches(v *VoiceRecord) (gender, accent, age, useCase bool) {
	gender = c.Gender != GenderUnset && strings.EqualFold(string(c.Gender), v.Gender)
	accent = c.Accent != "" && strings.EqualFold(c.Accent, v.Accent)
	age = c.Age != AgeUnset && strings.EqualFold(string(c.Age), v.Age)
	useCase = c.UseCase != "" && strings.EqualFold(c.UseCase, v.UseCase)
	return gender, accent, age, useCase
}
