// Package text extracts the visible text fed to extraction from captured
// HTML pages and PDF documents.
package text

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

var whitespacePat = regexp.MustCompile(`\s+`)

// NormalizeWhitespace collapses runs of whitespace to single spaces and
// trims the ends.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespacePat.ReplaceAllString(s, " "))
}

// FromHTML returns the visible text of an HTML document. Script, style
// and hidden subtrees are skipped; whitespace is collapsed.
func FromHTML(raw []byte) (string, error) {
	doc, err := html.Parse(strings.NewReader(string(raw)))
	if err != nil {
		return "", eris.Wrap(err, "text: parse html")
	}
	var sb strings.Builder
	visibleText(doc, &sb, 0)
	return NormalizeWhitespace(sb.String()), nil
}

func visibleText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 100 {
		return
	}
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			sb.WriteString(t)
			sb.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "svg", "head", "meta", "link", "iframe":
			return
		}
		if hiddenElement(n) {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		visibleText(c, sb, depth+1)
	}
}

func hiddenElement(n *html.Node) bool {
	for _, attr := range n.Attr {
		switch attr.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if attr.Val == "true" {
				return true
			}
		case "style":
			style := strings.ToLower(strings.ReplaceAll(attr.Val, " ", ""))
			if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}
