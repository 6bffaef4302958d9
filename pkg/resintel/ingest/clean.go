package ingest

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	structuralLabels = regexp.MustCompile(`(?i)(Design/methodology/approach:|Originality/value:|Purpose:|Findings:|Research limitations:|Practical implications:|Social implications:|Managerial implications:)`)
	editorialNotes   = regexp.MustCompile(`(?i)(Copyright:|corrected-proof ts1|Peer review.*?responsibility.*?\.)`)
	metadataTail     = regexp.MustCompile(`(?i)(Keywords?:|Article info).*`)
	nonASCII         = regexp.MustCompile(`[^\x00-\x7F]+`)
	whitespace       = regexp.MustCompile(`\s+`)
)

// Clean strips publisher boilerplate from a title or abstract:
// everything from the first copyright sign, structured-abstract labels,
// editorial notes, trailing keyword and article-info blocks, and non-ASCII runes.
// Whitespace is collapsed to single spaces.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	if i := strings.Index(text, "©"); i >= 0 {
		text = strings.TrimRight(text[:i], " \t\r\n")
	}
	if strings.ContainsRune(text, '<') {
		text = StripHTML(text)
	}
	text = structuralLabels.ReplaceAllString(text, "")
	text = editorialNotes.ReplaceAllString(text, "")
	// (?s) is off, so only the line holding the marker goes.
	text = metadataTail.ReplaceAllString(text, "")
	text = nonASCII.ReplaceAllString(text, "")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// StripHTML returns the text content of an HTML fragment.
func StripHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		// Fallback to string if parsing fails
		return s
	}

	var buf strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
	}
	extractText(doc)

	return strings.TrimSpace(buf.String())
}
