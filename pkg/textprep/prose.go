package textprep

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ProseInfo contains the flattened prose and metadata about the
// extraction.
type ProseInfo struct {
	Prose      string
	WordCount  int
	IsReliable bool
}

// ExtractProse flattens HTML lecture content into plain prose
// paragraphs, one per block element, separated by blank lines so
// Split sees the same structure a plain-text lecture would have.
// Scripts, styles and footnote markers are dropped.
func ExtractProse(r io.Reader) (*ProseInfo, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var output []string
	var totalWords int

	body := findBody(doc)
	if body != nil {
		collectParagraphs(body, &output, &totalWords)
	}

	prose := strings.Join(output, "\n\n")
	return &ProseInfo{
		Prose:      prose,
		WordCount:  totalWords,
		IsReliable: totalWords > 20,
	}, nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findBody(c); res != nil {
			return res
		}
	}
	return nil
}

// Block elements that become their own paragraph.
func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.H1, atom.H2, atom.H3, atom.H4, atom.Li, atom.Blockquote:
		return true
	}
	return false
}

func collectParagraphs(n *html.Node, output *[]string, totalWords *int) {
	if n.Type == html.ElementNode && isBlock(n.DataAtom) {
		text := cleanBlock(n)
		if text != "" {
			*output = append(*output, text)
			*totalWords += len(strings.Fields(text))
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectParagraphs(c, output, totalWords)
	}
}

func cleanBlock(block *html.Node) string {
	var b strings.Builder
	traverseBlock(block, &b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func traverseBlock(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}

	if n.Type == html.ElementNode {
		// Skip citation superscripts and non-prose elements.
		if n.DataAtom == atom.Sup || n.DataAtom == atom.Style || n.DataAtom == atom.Script {
			return
		}
		for _, a := range n.Attr {
			if a.Key == "class" && strings.Contains(a.Val, "footnote") {
				return
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		traverseBlock(c, b)
	}
}
