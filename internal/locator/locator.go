// Package locator turns text, role and placeholder criteria into XPath
// queries that resolve lazily against the live page.
package locator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"pkt.systems/vibaverify/schema"
)

// Kind is the selection criterion of a locator.
type Kind int

const (
	KindText Kind = iota
	KindRole
	KindPlaceholder
)

// Policy decides which match is used when several elements qualify.
type Policy int

const (
	// PolicyUnique requires exactly one match.
	PolicyUnique Policy = iota
	// PolicyFirst takes the first match in document order.
	PolicyFirst
	// PolicyNth takes the match at a zero-based index.
	PolicyNth
)

// Locator describes a UI target without binding it to a DOM node.
type Locator struct {
	kind   Kind
	value  string
	role   string
	exact  bool
	policy Policy
	index  int
}

// Text matches the innermost elements whose normalized text contains s,
// ignoring ASCII case.
func Text(s string) Locator {
	return Locator{kind: KindText, value: normalizeSpace(s)}
}

// ExactText matches the innermost elements whose normalized text equals s.
func ExactText(s string) Locator {
	return Text(s).Exact()
}

// Role matches elements with the given ARIA role (explicit or implicit)
// whose accessible name contains name, ignoring ASCII case. An empty name
// matches any element with the role.
func Role(role, name string) Locator {
	return Locator{kind: KindRole, role: strings.ToLower(strings.TrimSpace(role)), value: normalizeSpace(name)}
}

// Placeholder matches inputs and textareas whose placeholder contains s,
// ignoring ASCII case.
func Placeholder(s string) Locator {
	return Locator{kind: KindPlaceholder, value: normalizeSpace(s)}
}

// Exact switches text, name and placeholder matching to case-sensitive
// equality after whitespace normalization.
func (l Locator) Exact() Locator {
	l.exact = true
	return l
}

// First selects the first match in document order.
func (l Locator) First() Locator {
	l.policy = PolicyFirst
	l.index = 0
	return l
}

// Nth selects the match at zero-based index i.
func (l Locator) Nth(i int) Locator {
	if i < 0 {
		i = 0
	}
	l.policy = PolicyNth
	l.index = i
	return l
}

// Unique requires exactly one match. This is the default.
func (l Locator) Unique() Locator {
	l.policy = PolicyUnique
	l.index = 0
	return l
}

// XPath returns an expression matching every candidate element.
func (l Locator) XPath() string {
	switch l.kind {
	case KindText:
		cond := l.match(".")
		return fmt.Sprintf("//*[not(%s)][%s][not(*[%s])]", skipped, cond, cond)
	case KindPlaceholder:
		return fmt.Sprintf("//*[self::input or self::textarea][%s]", l.match("@placeholder"))
	case KindRole:
		expr := fmt.Sprintf("//*[%s]", roleCondition(l.role))
		if l.value != "" {
			expr += fmt.Sprintf("[%s or %s or %s or %s]", l.match("@aria-label"), l.match("."), l.match("@value"), l.match("@title"))
		}
		return expr
	default:
		return "//*[false()]"
	}
}

// match renders the comparison of the normalized value of node against l.value.
func (l Locator) match(node string) string {
	norm := fmt.Sprintf("normalize-space(%s)", node)
	if l.exact {
		return fmt.Sprintf("%s=%s", norm, literal(l.value))
	}
	return fmt.Sprintf("contains(translate(%s, '%s', '%s'), %s)", norm, upperASCII, lowerASCII, literal(lowerASCIIString(l.value)))
}

// Target returns an expression resolving to the single element actions apply to.
func (l Locator) Target() string {
	switch l.policy {
	case PolicyNth:
		return fmt.Sprintf("(%s)[%d]", l.XPath(), l.index+1)
	default:
		return fmt.Sprintf("(%s)[1]", l.XPath())
	}
}

// Check applies the policy to an observed match count.
func (l Locator) Check(count int) error {
	switch l.policy {
	case PolicyUnique:
		if count > 1 {
			return fmt.Errorf("%w: %s matched %d elements", schema.ErrAmbiguousLocator, l, count)
		}
		if count == 0 {
			return fmt.Errorf("%w: %s matched no elements", schema.ErrElementNotVisible, l)
		}
	case PolicyNth:
		if count <= l.index {
			return fmt.Errorf("%w: %s matched only %d elements", schema.ErrElementNotVisible, l, count)
		}
	default:
		if count == 0 {
			return fmt.Errorf("%w: %s matched no elements", schema.ErrElementNotVisible, l)
		}
	}
	return nil
}

// Count evaluates XPath in the page and returns the number of matches.
func (l Locator) Count(ctx context.Context) (int, error) {
	var n int
	if err := chromedp.Run(ctx, chromedp.Evaluate(l.countScript(), &n)); err != nil {
		return 0, fmt.Errorf("count %s: %w", l, err)
	}
	return n, nil
}

func (l Locator) countScript() string {
	quoted, _ := json.Marshal(l.XPath())
	return fmt.Sprintf("document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null).snapshotLength", quoted)
}

func (l Locator) String() string {
	var desc string
	switch l.kind {
	case KindText:
		desc = fmt.Sprintf("text %q", l.value)
		if l.exact {
			desc = "exact " + desc
		}
	case KindPlaceholder:
		desc = fmt.Sprintf("placeholder %q", l.value)
	case KindRole:
		desc = "role " + l.role
		if l.value != "" {
			desc += fmt.Sprintf(" named %q", l.value)
		}
	}
	switch l.policy {
	case PolicyFirst:
		desc += " (first)"
	case PolicyNth:
		desc += fmt.Sprintf(" (nth %d)", l.index)
	}
	return desc
}

const (
	upperASCII = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerASCII = "abcdefghijklmnopqrstuvwxyz"
)

const skipped = "self::script or self::style or self::noscript or self::template or self::head or self::title"

var implicitRoles = map[string]string{
	"button":   "self::button or (self::input and (@type='button' or @type='submit' or @type='reset' or @type='image'))",
	"link":     "(self::a or self::area) and @href",
	"textbox":  "self::textarea or (self::input and (not(@type) or @type='text' or @type='email' or @type='search' or @type='tel' or @type='url'))",
	"checkbox": "self::input and @type='checkbox'",
	"heading":  "self::h1 or self::h2 or self::h3 or self::h4 or self::h5 or self::h6",
	"listitem": "self::li",
}

func roleCondition(role string) string {
	explicit := fmt.Sprintf("@role=%s", literal(role))
	implicit, ok := implicitRoles[role]
	if !ok {
		return explicit
	}
	return fmt.Sprintf("%s or (not(@role) and (%s))", explicit, implicit)
}

// lowerASCIIString folds only A-Z, matching what translate does in the page.
func lowerASCIIString(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// literal quotes s as an XPath 1.0 string literal.
func literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(quoted, `, "'", `) + ")"
}
