package textprep

import (
	"strings"
	"testing"
)

const lectureHTML = `<html><head><style>p { margin: 0; }</style></head><body>
<h1>Thermodynamics, Lecture 4</h1>
<p>The second law states that entropy never decreases in an isolated system.</p>
<p>Consider a gas expanding into a vacuum<sup class="footnote">3</sup> as the canonical example.</p>
<ul><li>Entropy is a state function.</li><li>Heat flows from hot to cold.</li></ul>
<script>console.log("tracking")</script>
<p class="footnote">3. See Clausius (1865) for the original formulation.</p>
</body></html>`

func TestExtractProse(t *testing.T) {
	info, err := ExtractProse(strings.NewReader(lectureHTML))
	if err != nil {
		t.Fatalf("ExtractProse failed: %v", err)
	}

	if !strings.Contains(info.Prose, "Thermodynamics, Lecture 4") {
		t.Error("heading lost")
	}
	if !strings.Contains(info.Prose, "entropy never decreases") {
		t.Error("paragraph text lost")
	}
	if !strings.Contains(info.Prose, "Entropy is a state function.") {
		t.Error("list item lost")
	}

	if strings.Contains(info.Prose, "console.log") {
		t.Error("script content leaked into prose")
	}
	if strings.Contains(info.Prose, "margin") {
		t.Error("style content leaked into prose")
	}
	if strings.Contains(info.Prose, "Clausius") {
		t.Error("footnote block not skipped")
	}
	if strings.Contains(info.Prose, "vacuum3") {
		t.Error("superscript citation marker not stripped")
	}

	// Blocks become blank-line separated paragraphs for Split.
	if !strings.Contains(info.Prose, "\n\n") {
		t.Error("paragraphs not blank-line separated")
	}

	if info.WordCount < 20 {
		t.Errorf("word count implausibly low: %d", info.WordCount)
	}
	if !info.IsReliable {
		t.Error("expected reliable extraction for a full document")
	}
}

func TestExtractProseSparse(t *testing.T) {
	info, err := ExtractProse(strings.NewReader("<html><body><p>Too short.</p></body></html>"))
	if err != nil {
		t.Fatal(err)
	}
	if info.IsReliable {
		t.Error("two words must not count as reliable")
	}
	if info.Prose != "Too short." {
		t.Errorf("prose = %q", info.Prose)
	}
}

func TestExtractProseFeedsSplit(t *testing.T) {
	info, err := ExtractProse(strings.NewReader(lectureHTML))
	if err != nil {
		t.Fatal(err)
	}

	p := NewPreparer(4000)
	chunks := p.Split(info.Prose)
	if len(chunks) != 1 {
		t.Fatalf("short lecture should fit one chunk, got %d", len(chunks))
	}
	if !chunks[0].Valid() {
		t.Error("extracted prose should form a valid chunk")
	}
}
