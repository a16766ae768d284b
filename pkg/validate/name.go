package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	nameMinLength = 2
	nameMaxLength = 50
)

// Letters (ASCII, the Latin-1 range and any other Unicode letter), spaces,
// hyphens and apostrophes.
var namePattern = regexp.MustCompile(`^[a-zA-ZÀ-ÿ\p{L}\s'-]+$`)

// Name validates a first or last name. field is the human label used in the
// message, e.g. "First name". Decomposed input (e.g. "e" followed by a
// combining accent) is composed to NFC before the charset check.
func Name(s, field string) Result {
	if field == "" {
		field = "Name"
	}

	s = norm.NFC.String(strings.TrimSpace(s))
	if s == "" {
		return fail(field + " is required")
	}

	n := utf8.RuneCountInString(s)
	if n < nameMinLength || n > nameMaxLength {
		return fail(fmt.Sprintf("%s must be between %d and %d characters", field, nameMinLength, nameMaxLength))
	}
	if !namePattern.MatchString(s) {
		return fail(field + " can only contain letters, spaces, hyphens, and apostrophes")
	}

	first, _ := utf8.DecodeRuneInString(s)
	if !unicode.IsUpper(first) {
		return fail(field + " must start with an uppercase letter")
	}
	return OK
}
