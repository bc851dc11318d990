// Package extract derives voice-selection criteria from a speaker
// profile. Explicit fields win; free-text inference is a fallback; all
// unresolvable attributes degrade to defaults instead of erroring.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"lectern/pkg/model"
)

// Overrides are per-call attribute overrides. They take precedence
// over everything in the profile.
type Overrides struct {
	Gender   model.Gender
	Accent   string
	Age      model.AgeBucket
	Language string
	UseCase  string
}

// Defaults applied when neither overrides, profile fields, nor text
// inference resolve an attribute.
type Defaults struct {
	Language string
	UseCase  string
}

// Extractor derives Criteria from Profiles. It is stateless; all rule
// tables are package data so individual rules stay testable.
type Extractor struct {
	defaults Defaults
}

// New creates an Extractor.
func New(defaults Defaults) *Extractor {
	if defaults.Language == "" {
		defaults.Language = "en"
	}
	return &Extractor{defaults: defaults}
}

// Extract computes Criteria for a profile. Pure function of its
// inputs: identical profile and overrides always produce identical
// criteria.
func (e *Extractor) Extract(profile *model.Profile, overrides Overrides) model.Criteria {
	c := model.Criteria{
		Language: e.defaults.Language,
		UseCase:  e.defaults.UseCase,
	}
	if overrides.Language != "" {
		c.Language = overrides.Language
	}
	if overrides.UseCase != "" {
		c.UseCase = overrides.UseCase
	}

	c.Gender = e.resolveGender(profile, overrides)
	c.Accent = e.resolveAccent(profile, overrides)
	c.Age = e.resolveAge(profile, overrides)
	return c
}

func (e *Extractor) resolveGender(profile *model.Profile, overrides Overrides) model.Gender {
	if overrides.Gender != model.GenderUnset {
		return overrides.Gender
	}
	if g := model.ParseGender(profile.Gender); g != model.GenderUnset {
		return g
	}
	return inferGender(profile.Background, profile.Name)
}

func (e *Extractor) resolveAccent(profile *model.Profile, overrides Overrides) string {
	if overrides.Accent != "" {
		// Overrides are normalized too; an unsupported override is
		// discarded rather than errored.
		if a := model.NormalizeAccent(overrides.Accent); a != "" {
			return a
		}
	}
	if a := model.NormalizeAccent(profile.Accent); a != "" {
		return a
	}
	return inferAccent(profile.Background)
}

func (e *Extractor) resolveAge(profile *model.Profile, overrides Overrides) model.AgeBucket {
	if overrides.Age != model.AgeUnset {
		return overrides.Age
	}
	if b := model.BucketAge(profile.Age); b != model.AgeUnset {
		return b
	}
	if b := inferAge(profile.Background); b != model.AgeUnset {
		return b
	}
	return model.AgeMiddleAged
}

// --- Gender inference ---

// genderRule maps a word-boundary pattern to a gender. Female rules
// run first: "female" contains "male", so order is load-bearing.
type genderRule struct {
	pattern *regexp.Regexp
	gender  model.Gender
}

var genderRules = []genderRule{
	{regexp.MustCompile(`(?i)\b(she|her|hers|herself|female|woman|women)\b`), model.GenderFemale},
	{regexp.MustCompile(`(?i)\b(he|him|his|himself|male|man|men)\b`), model.GenderMale},
}

// Honorific name prefixes checked against the profile name.
var honorificRules = []genderRule{
	{regexp.MustCompile(`(?i)^(mrs|ms|miss|madam|dame|lady)\.?\s`), model.GenderFemale},
	{regexp.MustCompile(`(?i)^(mr|sir|lord)\.?\s`), model.GenderMale},
}

// Small curated lexicon of common first names, used as a last resort.
var femaleNames = map[string]bool{
	"mary": true, "susan": true, "linda": true, "karen": true, "lisa": true,
	"sarah": true, "emily": true, "anna": true, "maria": true, "elena": true,
	"margaret": true, "ruth": true, "alice": true, "grace": true, "helen": true,
}

var maleNames = map[string]bool{
	"james": true, "john": true, "robert": true, "michael": true, "william": true,
	"david": true, "richard": true, "thomas": true, "charles": true, "george": true,
	"peter": true, "paul": true, "frank": true, "henry": true, "carl": true,
}

func inferGender(biography, name string) model.Gender {
	for _, rule := range genderRules {
		if rule.pattern.MatchString(biography) {
			return rule.gender
		}
	}

	for _, rule := range honorificRules {
		if rule.pattern.MatchString(name) {
			return rule.gender
		}
	}

	first := firstName(name)
	if femaleNames[first] {
		return model.GenderFemale
	}
	if maleNames[first] {
		return model.GenderMale
	}

	return model.GenderNeutral
}

var titlePrefix = regexp.MustCompile(`(?i)^((prof|dr|mr|mrs|ms|sir)\.?\s+)+`)

func firstName(name string) string {
	name = titlePrefix.ReplaceAllString(strings.TrimSpace(name), "")
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// --- Accent inference ---

// accentKeywords maps nationality/place keywords to accent tags.
// First match in table order wins.
var accentKeywords = []struct {
	keyword string
	accent  string
}{
	{"american", "american"},
	{"united states", "american"},
	{"new york", "american"},
	{"california", "american"},
	{"boston", "american"},
	{"british", "british"},
	{"english", "british"},
	{"london", "british"},
	{"oxford", "british"},
	{"cambridge", "british"},
	{"scottish", "scottish"},
	{"scotland", "scottish"},
	{"edinburgh", "scottish"},
	{"irish", "irish"},
	{"ireland", "irish"},
	{"dublin", "irish"},
	{"australian", "australian"},
	{"australia", "australian"},
	{"sydney", "australian"},
	{"canadian", "canadian"},
	{"canada", "canadian"},
	{"toronto", "canadian"},
	{"indian", "indian"},
	{"india", "indian"},
	{"mumbai", "indian"},
	{"delhi", "indian"},
	{"german", "german"},
	{"germany", "german"},
	{"berlin", "german"},
	{"french", "french"},
	{"france", "french"},
	{"paris", "french"},
	{"italian", "italian"},
	{"italy", "italian"},
	{"spanish", "spanish"},
	{"spain", "spanish"},
	{"madrid", "spanish"},
	{"russian", "russian"},
	{"russia", "russian"},
	{"moscow", "russian"},
	{"polish", "polish"},
	{"poland", "polish"},
	{"swedish", "swedish"},
	{"sweden", "swedish"},
	{"japanese", "japanese"},
	{"japan", "japanese"},
	{"tokyo", "japanese"},
	{"chinese", "chinese"},
	{"china", "chinese"},
	{"beijing", "chinese"},
	{"korean", "korean"},
	{"korea", "korean"},
}

func inferAccent(biography string) string {
	lower := strings.ToLower(biography)
	for _, rule := range accentKeywords {
		if strings.Contains(lower, rule.keyword) {
			return rule.accent
		}
	}
	return ""
}

// --- Age inference ---

var yearsOldRe = regexp.MustCompile(`(?i)\b(\d{1,3})[\s-]?years?[\s-]?old\b`)

// ageKeywords map career-stage vocabulary to buckets. Checked in
// table order after the explicit "N years old" pattern.
var ageKeywords = []struct {
	keyword string
	bucket  model.AgeBucket
}{
	{"emeritus", model.AgeOld},
	{"emerita", model.AgeOld},
	{"distinguished", model.AgeOld},
	{"veteran", model.AgeOld},
	{"retired", model.AgeOld},
	{"junior", model.AgeYoung},
	{"assistant professor", model.AgeYoung},
	{"postdoc", model.AgeYoung},
	{"early-career", model.AgeYoung},
	{"phd student", model.AgeYoung},
	{"graduate student", model.AgeYoung},
}

func inferAge(biography string) model.AgeBucket {
	if m := yearsOldRe.FindStringSubmatch(biography); m != nil {
		if age, err := strconv.Atoi(m[1]); err == nil {
			return model.BucketAge(age)
		}
	}

	lower := strings.ToLower(biography)
	for _, rule := range ageKeywords {
		if strings.Contains(lower, rule.keyword) {
			return rule.bucket
		}
	}
	return model.AgeUnset
}
