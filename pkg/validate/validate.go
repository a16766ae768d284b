package validate

import (
	"regexp"
	"slices"
	"strings"
)

// Result is the outcome of a single validation.
type Result struct {
	Valid   bool
	Message string
}

// OK is the passing Result.
var OK = Result{Valid: true}

func fail(msg string) Result {
	return Result{Valid: false, Message: msg}
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail reports whether s has the local@domain.tld shape.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Email validates an e-mail address.
func Email(s string) Result {
	if strings.TrimSpace(s) == "" {
		return fail("Email is required")
	}
	if !IsValidEmail(s) {
		return fail("Invalid email format")
	}
	return OK
}

// Genders is the fixed set accepted by Gender.
var Genders = []string{"male", "female", "other", "prefer_not_to_say"}

// Gender validates that s is one of Genders.
func Gender(s string) Result {
	if s == "" {
		return fail("Gender is required")
	}
	if !slices.Contains(Genders, s) {
		return fail("Gender must be one of: " + strings.Join(Genders, ", "))
	}
	return OK
}

// BloodTypes is the fixed set accepted by BloodType.
var BloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// BloodType validates s against BloodTypes. Blood type is optional, so the
// empty string passes.
func BloodType(s string) Result {
	if s == "" || slices.Contains(BloodTypes, strings.ToUpper(s)) {
		return OK
	}
	return fail("Blood type must be one of: " + strings.Join(BloodTypes, ", "))
}
