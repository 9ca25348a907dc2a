// Package slug derives URL-safe identifiers from free text.
//
// Two distinct normalizations live here. Anchor produces in-page fragment
// identifiers from headings and keeps raw ASCII alphanumerics only. Slugify
// produces general document slugs and spells "&" out as "and".
package slug

import (
	"regexp"
	"strings"
)

var (
	anchorDisallowed = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
	nonWord          = regexp.MustCompile(`[^\w-]+`)
	hyphenRun        = regexp.MustCompile(`-{2,}`)
)

// Anchor normalizes a heading into a fragment identifier matching
// ^[a-z0-9-]*$. The result may be empty; Anchor(Anchor(s)) == Anchor(s).
func Anchor(input string) string {
	s := strings.TrimSpace(strings.ToLower(input))
	s = anchorDisallowed.ReplaceAllString(s, "")
	return whitespaceRun.ReplaceAllString(s, "-")
}

// AnchorOr returns Anchor(input), or fallback verbatim when that is empty.
func AnchorOr(input, fallback string) string {
	if anchor := Anchor(input); anchor != "" {
		return anchor
	}
	return fallback
}

// Slugify converts free text into a document slug: whitespace becomes "-",
// "&" becomes "-and-", other non-word characters are dropped and hyphen runs
// collapse to one. The result never starts or ends with "-".
func Slugify(input string) string {
	s := strings.TrimSpace(strings.ToLower(input))
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = strings.ReplaceAll(s, "&", "-and-")
	s = nonWord.ReplaceAllString(s, "")
	s = hyphenRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
