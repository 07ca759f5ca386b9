package text

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripMarkup removes HTML tags, decodes entities and collapses whitespace.
// Script and style bodies are dropped. Input that fails to parse is
// entity-decoded and whitespace-collapsed as plain text.
func StripMarkup(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return CollapseWhitespace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return CollapseWhitespace(html.UnescapeString(s))
	}
	doc.Find("script,style,noscript").Remove()
	// Separate adjacent block contents so "<p>a</p><p>b</p>" does not become "ab".
	doc.Find("p,div,br,li,h1,h2,h3,h4,h5,h6,td,tr").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})
	return CollapseWhitespace(doc.Text())
}

// CollapseWhitespace trims s and replaces every whitespace run with a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
