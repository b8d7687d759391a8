package utils

import "github.com/microcosm-cc/bluemonday"

var (
	// ugcPolicy keeps the formatting subset allowed in post and
	// comment bodies.
	ugcPolicy = bluemonday.UGCPolicy()
	// textPolicy strips all markup, for single line fields such as
	// titles, tags and report reasons.
	textPolicy = bluemonday.StrictPolicy()
)

// Sanitize cleans user supplied HTML, keeping safe formatting tags.
func Sanitize(input string) string {
	return ugcPolicy.Sanitize(input)
}

// SanitizeText strips all HTML from input.
func SanitizeText(input string) string {
	return textPolicy.Sanitize(input)
}
