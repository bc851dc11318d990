package textprep

import (
	"regexp"
	"strings"
)

// replacement is one literal-for-literal substitution.
type replacement struct {
	from string
	to   string
}

// pronunciations is the whole-word pronunciation dictionary. Lookup is
// case-sensitive: "IT" the acronym must not rewrite "it".
var pronunciations = []replacement{
	{"Dr.", "Doctor"},
	{"Prof.", "Professor"},
	{"Ph.D.", "P H D"},
	{"PhD", "P H D"},
	{"M.Sc.", "Master of Science"},
	{"B.Sc.", "Bachelor of Science"},
	{"et al.", "and colleagues"},
	{"i.e.", "that is"},
	{"e.g.", "for example"},
	{"etc.", "et cetera"},
	{"vs.", "versus"},
	{"cf.", "compare"},
	{"SQL", "sequel"},
	{"LaTeX", "lay tech"},
	{"NumPy", "num pie"},
	{"GUI", "gooey"},
	{"API", "A P I"},
	{"IEEE", "I triple E"},
	{"arXiv", "archive"},
	{"Nobel", "no bell"},
	{"fMRI", "functional M R I"},
	{"DNA", "D N A"},
	{"RNA", "R N A"},
}

// pronunciationRes holds one compiled pattern per dictionary term.
// Built once at package init; terms containing dots need the custom
// boundary because `\b` does not sit after a period.
var pronunciationRes = buildPronunciationRes()

type pronunciationRe struct {
	re *regexp.Regexp
	to string
}

func buildPronunciationRes() []pronunciationRe {
	out := make([]pronunciationRe, 0, len(pronunciations))
	for _, r := range pronunciations {
		// Leading boundary only when the term starts with a word
		// character; trailing boundary via lookahead-free idiom:
		// match must be followed by a non-word char or end of text.
		pattern := `(^|[^\w])` + regexp.QuoteMeta(r.from) + `($|[^\w])`
		out = append(out, pronunciationRe{
			re: regexp.MustCompile(pattern),
			to: `${1}` + r.to + `${2}`,
		})
	}
	return out
}

func applyPronunciations(text string) string {
	for _, p := range pronunciationRes {
		// Two passes: adjacent terms share the boundary character, and
		// a single ReplaceAll cannot reuse it for both matches.
		text = p.re.ReplaceAllString(text, p.to)
		text = p.re.ReplaceAllString(text, p.to)
	}
	return text
}

// symbols maps mathematical notation to spoken words. Applied after
// the pronunciation dictionary so dictionary terms keep priority.
var symbols = []replacement{
	{"≈", " approximately equal to "},
	{"≠", " not equal to "},
	{"≤", " less than or equal to "},
	{"≥", " greater than or equal to "},
	{"±", " plus or minus "},
	{"×", " times "},
	{"÷", " divided by "},
	{"√", " square root of "},
	{"∑", " the sum over "},
	{"∏", " the product over "},
	{"∫", " the integral of "},
	{"∂", " partial "},
	{"∞", " infinity "},
	{"∈", " in "},
	{"⊂", " subset of "},
	{"∝", " proportional to "},
	{"→", " goes to "},
	{"π", " pi "},
	{"Δ", " delta "},
	{"θ", " theta "},
	{"λ", " lambda "},
	{"σ", " sigma "},
	{"μ", " mu "},
	{"°", " degrees "},
	{"%", " percent"},
}

var symbolReplacer = buildReplacer(symbols)

func applySymbols(text string) string {
	return symbolReplacer.Replace(text)
}

// domainSubstitutions holds the optional per-subject sets, selected by
// the coarse subject tag derived from the profile's department.
var domainSubstitutions = map[string][]replacement{
	"physics": {
		{"ℏ", " h bar "},
		{"⟩", " ket "},
		{"⟨", " bra "},
		{"|ψ", " psi "},
		{"ψ", " psi "},
		{"⊗", " tensor "},
		{"†", " dagger "},
		{"eV", "electron volts"},
	},
	"code": {
		{"==", " equals "},
		{"!=", " not equals "},
		{"=>", " arrow "},
		{"->", " arrow "},
		{"&&", " and "},
		{"||", " or "},
		{"++", " plus plus "},
		{"::", " double colon "},
	},
	"chemistry": {
		{"⇌", " is in equilibrium with "},
		{"↑", " released as gas "},
		{"↓", " precipitates "},
	},
}

func buildReplacer(set []replacement) *strings.Replacer {
	pairs := make([]string, 0, len(set)*2)
	for _, r := range set {
		pairs = append(pairs, r.from, r.to)
	}
	return strings.NewReplacer(pairs...)
}

func applyReplacements(text string, set []replacement) string {
	if len(set) == 0 {
		return text
	}
	return buildReplacer(set).Replace(text)
}

// chemFormulaRe spaces element/count pairs in chemical formulas.
var chemFormulaRe = regexp.MustCompile(`\b([A-Z][a-z]?)(\d+)`)

// SpaceChemicalFormulas inserts spaces between element symbols and
// their subscripted counts.
func SpaceChemicalFormulas(text string) string {
	return chemFormulaRe.ReplaceAllString(text, "$1 $2 ")
}
