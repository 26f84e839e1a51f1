package browser

import "strings"

// PageState is a snapshot of the rendered page that predicates evaluate.
type PageState struct {
	Text string
	HTML string
	// Present probes the live DOM for a selector. Nil means nothing is present.
	Present func(selector string) bool
}

// Has reports whether selector matches an element on the page.
func (p PageState) Has(selector string) bool {
	return p.Present != nil && p.Present(selector)
}

// Predicate is a boolean check against page state.
type Predicate func(PageState) bool

// CaptchaChallenge matches pages that show a CAPTCHA or robot check.
func CaptchaChallenge(p PageState) bool {
	return strings.Contains(strings.ToLower(p.Text), "captcha") ||
		strings.Contains(strings.ToLower(p.HTML), "robot")
}

// AnyPresent matches when at least one selector is on the page.
func AnyPresent(selectors ...string) Predicate {
	return func(p PageState) bool {
		for _, sel := range selectors {
			if p.Has(sel) {
				return true
			}
		}
		return false
	}
}
