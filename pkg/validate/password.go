package validate

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// PasswordPolicy configures Password. Each Require* toggle is independent.
type PasswordPolicy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPasswordPolicy is the policy used for sign-up and password changes.
var DefaultPasswordPolicy = PasswordPolicy{
	MinLength:      8,
	MaxLength:      128,
	RequireUpper:   true,
	RequireLower:   true,
	RequireDigit:   true,
	RequireSpecial: true,
}

// Password checks pw against policy and reports the first failing rule.
// Rules are evaluated in order: minimum length, maximum length, uppercase,
// lowercase, digit, special character.
func Password(pw string, policy PasswordPolicy) Result {
	n := utf8.RuneCountInString(pw)
	if n == 0 {
		return fail("Password is required")
	}
	if policy.MinLength > 0 && n < policy.MinLength {
		return fail(fmt.Sprintf("Password must be at least %d characters long", policy.MinLength))
	}
	if policy.MaxLength > 0 && n > policy.MaxLength {
		return fail(fmt.Sprintf("Password must be at most %d characters long", policy.MaxLength))
	}

	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r) && !unicode.IsSpace(r):
			special = true
		}
	}

	switch {
	case policy.RequireUpper && !upper:
		return fail("Password must contain at least one uppercase letter")
	case policy.RequireLower && !lower:
		return fail("Password must contain at least one lowercase letter")
	case policy.RequireDigit && !digit:
		return fail("Password must contain at least one number")
	case policy.RequireSpecial && !special:
		return fail("Password must contain at least one special character")
	}
	return OK
}
