package driver

import (
	"context"
	"fmt"
	"strings"
)

// TargetAttribute marks the element a text query matched, so it can be
// addressed by a plain CSS selector afterwards.
const TargetAttribute = "data-pageprobe-target"

// TargetSelector returns the CSS selector of an element tagged with TargetAttribute.
func TargetSelector(tag string) string {
	return fmt.Sprintf("[%s=%q]", TargetAttribute, tag)
}

// ContainsText reports whether text contains sub. Like Playwright's text
// matching it ignores case and collapses whitespace.
func ContainsText(text, sub string) bool {
	return strings.Contains(normalizeText(text), normalizeText(sub))
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// TextQuery selects elements by text.
type TextQuery struct {
	// Selector with HasText selects the first element matching Selector whose text contains HasText.
	Selector string
	HasText  string
	// Text alone selects the innermost element whose text contains it.
	Text string
}

// TextMatcher is implemented by pages that can evaluate text queries
// without a script. Pages without it are queried by an in-page script.
type TextMatcher interface {
	// MatchText reports whether the query satisfies state right now. When it
	// does and an element matched, the element is tagged with tag.
	MatchText(ctx context.Context, q TextQuery, state WaitState, tag string) (bool, error)
}
