package validate

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy = bluemonday.StrictPolicy()

	jsScheme      = regexp.MustCompile(`(?i)javascript\s*:`)
	eventHandler  = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
	unsafeSymbols = regexp.MustCompile("[<>\"'`;()]")
)

// Sanitize removes markup and script-injection vectors from free text before
// it is persisted or re-rendered. Tags are dropped by a strict bluemonday
// policy; the entity-escaped result is decoded again so the remaining symbol
// pass sees the literal characters.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}

	out := html.UnescapeString(strictPolicy.Sanitize(s))
	out = jsScheme.ReplaceAllString(out, "")
	out = eventHandler.ReplaceAllString(out, "")
	out = unsafeSymbols.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// SanitizeEmail trims and lowercases an address.
func SanitizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
