// Package textprep turns raw lecture text into synthesis-ready markup
// and splits it into size-bounded chunks. Stage directions written as
// bracketed cues ("[pauses]") become engine pause markup; anything
// bracketed that has no mapping is stripped.
package textprep

import (
	"regexp"
	"strings"
)

// directionRule maps a bracketed stage direction to engine markup.
// Rules run in table order: more specific patterns must precede the
// generic ones ("long pause" before "pause") or the generic pattern
// swallows the span first.
type directionRule struct {
	pattern *regexp.Regexp
	markup  string
}

var directionRules = []directionRule{
	{regexp.MustCompile(`(?i)\[\s*long\s+pause\s*\]`), `<break time="2.0s" />`},
	{regexp.MustCompile(`(?i)\[\s*(short|brief)\s+pause\s*\]`), `<break time="0.3s" />`},
	{regexp.MustCompile(`(?i)\[\s*pauses?\s*\]`), `<break time="1.0s" />`},
	{regexp.MustCompile(`(?i)\[\s*(takes\s+a\s+)?(deep\s+)?breath\s*\]`), `<break time="0.8s" />`},
	{regexp.MustCompile(`(?i)\[\s*clears\s+throat\s*\]`), `<break time="0.6s" />`},
	{regexp.MustCompile(`(?i)\[\s*(sighs?|chuckles?|laughs?)\s*\]`), `<break time="0.5s" />`},
	{regexp.MustCompile(`(?i)\[\s*(beat|silence)\s*\]`), `<break time="1.5s" />`},
}

// Any bracketed span that survived the direction table.
var leftoverBracketRe = regexp.MustCompile(`\[[^\]\[]*\]`)

// Punctuation that earns an inserted pause.
var (
	sentenceEndRe = regexp.MustCompile(`([.!?])(\s+)`)
	semicolonRe   = regexp.MustCompile(`([;:])(\s+)`)
)

// Preparer applies the substitution pipeline and splits text into
// chunks. All patterns are compiled once at construction.
type Preparer struct {
	maxChunkSize int
	domainSets   map[string][]replacement
}

// NewPreparer creates a Preparer with the given soft chunk budget.
func NewPreparer(maxChunkSize int) *Preparer {
	return &Preparer{
		maxChunkSize: maxChunkSize,
		domainSets:   domainSubstitutions,
	}
}

// Enhance converts lecture text into synthesis markup. Steps, in
// order: stage directions, punctuation pauses, pronunciation
// dictionary, math symbols, then the optional domain set for the
// subject tag. The output contains no literal square brackets.
func (p *Preparer) Enhance(text, subject string) string {
	out := text

	// 1. Stage directions, most specific first; leftovers are stripped.
	for _, rule := range directionRules {
		out = rule.pattern.ReplaceAllString(out, rule.markup)
	}
	out = leftoverBracketRe.ReplaceAllString(out, "")

	// 2. Punctuation pauses.
	out = sentenceEndRe.ReplaceAllString(out, `$1 <break time="0.3s" />$2`)
	out = semicolonRe.ReplaceAllString(out, `$1 <break time="0.2s" />$2`)

	// 3. Pronunciation dictionary (word-boundary, case-sensitive).
	out = applyPronunciations(out)

	// 4. Mathematical notation.
	out = applySymbols(out)

	// 5. Domain-specific set.
	domain := normalizeSubject(subject)
	if set, ok := p.domainSets[domain]; ok {
		out = applyReplacements(out, set)
	}
	if domain == "chemistry" {
		// "H2O" should read "H 2 O", not "H twenty".
		out = SpaceChemicalFormulas(out)
	}

	return collapseSpaces(out)
}

var multiSpaceRe = regexp.MustCompile(`[^\S\n]{2,}`)

// collapseSpaces squeezes runs of spaces introduced by substitutions,
// preserving newlines so paragraph structure survives for Split.
func collapseSpaces(s string) string {
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
}

func normalizeSubject(subject string) string {
	lower := strings.ToLower(subject)
	switch {
	case strings.Contains(lower, "quantum"), strings.Contains(lower, "physics"):
		return "physics"
	case strings.Contains(lower, "computer"), strings.Contains(lower, "software"), strings.Contains(lower, "programming"):
		return "code"
	case strings.Contains(lower, "chemistr"):
		return "chemistry"
	default:
		return ""
	}
}
