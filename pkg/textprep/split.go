package textprep

import (
	"regexp"
	"strings"
	"unicode"
)

// Chunk is one synthesis unit: a contiguous text span within the soft
// size budget, except for oversized atomic sentences which are kept
// whole. Created here, consumed exactly once by the synthesis driver.
type Chunk struct {
	Index int
	Text  string
}

// Valid reports whether the chunk is worth synthesizing: non-empty,
// at least three whitespace-delimited words, and at least one
// alphanumeric character.
func (c Chunk) Valid() bool {
	trimmed := strings.TrimSpace(c.Text)
	if trimmed == "" {
		return false
	}
	if len(strings.Fields(trimmed)) < 3 {
		return false
	}
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

var paragraphSplitRe = regexp.MustCompile(`\n\s*\n`)

// Split cuts markup text into chunks of at most the configured byte
// budget. Paragraphs are the primary unit: blank-line groups are
// recombined greedily; a paragraph that alone exceeds the budget is
// split on sentence boundaries; a single oversized sentence stays
// whole as an atomic chunk (the budget is soft).
func (p *Preparer) Split(text string) []Chunk {
	var texts []string

	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			texts = append(texts, current.String())
			current.Reset()
		}
	}

	for _, para := range paragraphSplitRe.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(para) > p.maxChunkSize {
			flush()
			texts = append(texts, splitSentencesGreedy(para, p.maxChunkSize)...)
			continue
		}

		// +2 for the paragraph separator
		if current.Len() > 0 && current.Len()+2+len(para) > p.maxChunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Index: i, Text: t}
	}
	return chunks
}

// splitSentencesGreedy splits one oversized paragraph on sentence
// boundaries and recombines greedily up to maxSize.
func splitSentencesGreedy(para string, maxSize int) []string {
	sentences := splitSentences(para)

	var out []string
	var current strings.Builder
	for _, s := range sentences {
		if current.Len() > 0 && current.Len()+1+len(s) > maxSize {
			out = append(out, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

// splitSentences cuts text at sentence-ending punctuation followed by
// whitespace. Boundaries inside an unclosed bracket span are ignored
// so a stage direction is never split across chunks.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)

	depth := 0
	start := 0
	i := 0
	for i < len(runes) {
		switch runes[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case '.', '!', '?':
			if depth > 0 {
				break
			}
			// Consume the punctuation run (e.g. "?!", "...").
			j := i
			for j+1 < len(runes) && isSentenceEnd(runes[j+1]) {
				j++
			}
			if j+1 >= len(runes) || unicode.IsSpace(runes[j+1]) {
				sentence := strings.TrimSpace(string(runes[start : j+1]))
				if sentence != "" {
					sentences = append(sentences, sentence)
				}
				i = j + 1
				for i < len(runes) && unicode.IsSpace(runes[i]) {
					i++
				}
				start = i
				continue
			}
			i = j
		}
		i++
	}

	if start < len(runes) {
		if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
			sentences = append(sentences, tail)
		}
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
