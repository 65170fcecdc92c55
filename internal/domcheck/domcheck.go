// Package domcheck evaluates locator queries against captured HTML so that
// failure diagnostics can say whether an element was absent or only hidden.
package domcheck

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Query is anything that renders to an XPath expression and a description.
type Query interface {
	XPath() string
	String() string
}

// Parse parses an HTML document.
func Parse(page string) (*html.Node, error) {
	doc, err := htmlquery.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Count returns how many nodes in doc match expr.
func Count(doc *html.Node, expr string) (int, error) {
	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		return 0, fmt.Errorf("xpath %q: %w", expr, err)
	}
	return len(nodes), nil
}

// Texts returns the normalized text of each node matching expr, in document order.
func Texts(doc *html.Node, expr string) ([]string, error) {
	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, strings.Join(strings.Fields(htmlquery.InnerText(n)), " "))
	}
	return out, nil
}

// Explain describes how q relates to a page snapshot, for use in diagnostics.
func Explain(page string, q Query) string {
	doc, err := Parse(page)
	if err != nil {
		return fmt.Sprintf("page snapshot unavailable (%v)", err)
	}
	n, err := Count(doc, q.XPath())
	if err != nil {
		return fmt.Sprintf("page snapshot not searchable (%v)", err)
	}
	switch n {
	case 0:
		return fmt.Sprintf("%s matches no elements in the page snapshot", q)
	case 1:
		return fmt.Sprintf("%s matches 1 element in the page snapshot, but it is not visible", q)
	default:
		return fmt.Sprintf("%s matches %d elements in the page snapshot; the selected one is not visible", q, n)
	}
}
