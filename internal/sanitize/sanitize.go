// Package sanitize strips markup from user-supplied plain-text fields such as
// note titles and display names. Uses bluemonday's strict policy, which
// removes every tag and escapes what remains.
//
// Note bodies are markdown and are stored verbatim; they are never passed
// through this package.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared strict policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text removes all HTML from input, unescapes the entities bluemonday emits
// and collapses runs of whitespace. The result is plain text; templates
// escape it again on output.
func Text(input string) string {
	if input == "" {
		return ""
	}
	stripped := html.UnescapeString(getPolicy().Sanitize(input))
	return strings.Join(strings.Fields(stripped), " ")
}
