package validate_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/medrec/pkg/validate"
	"github.com/stretchr/testify/require"
)

func TestEmail(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
	}{
		{"a@b.co", true},
		{"jane.doe@clinic.example.com", true},
		{"", false},
		{"no-at-sign.com", false},
		{"a@bc", false},
		{"a.b@c", false},
		{"a b@c.d", false},
		{"a@@b.c", false},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.valid, validate.Email(tc.in).Valid)
			require.Equal(t, tc.valid, validate.IsValidEmail(tc.in))
		})
	}
}

func TestPassword(t *testing.T) {
	p := validate.DefaultPasswordPolicy

	t.Run("accepts strong password", func(t *testing.T) {
		require.True(t, validate.Password("Str0ng!pass", p).Valid)
	})

	t.Run("reports first failing rule", func(t *testing.T) {
		cases := map[string]string{
			"Sh0rt!":                   "at least 8",
			"alllower1!":               "uppercase",
			"ALLUPPER1!":               "lowercase",
			"NoDigits!!":               "number",
			"NoSpecial12":              "special",
			strings.Repeat("Aa1!", 33): "at most 128",
		}
		for pw, want := range cases {
			r := validate.Password(pw, p)
			require.False(t, r.Valid, pw)
			require.Contains(t, r.Message, want, pw)
		}
	})

	t.Run("toggles are independent", func(t *testing.T) {
		relaxed := validate.PasswordPolicy{MinLength: 4, RequireDigit: true}
		require.True(t, validate.Password("abc1", relaxed).Valid)
		require.False(t, validate.Password("abcd", relaxed).Valid)
	})

	t.Run("empty is required", func(t *testing.T) {
		require.False(t, validate.Password("", p).Valid)
	})
}

func TestName(t *testing.T) {
	valid := []string{"Jo", "Mary-Jane", "O'Neil", "José", "Zoë Ann", "Élodie"}
	for _, n := range valid {
		t.Run("valid "+n, func(t *testing.T) {
			r := validate.Name(n, "First name")
			require.True(t, r.Valid, r.Message)
		})
	}

	invalid := map[string]string{
		"":                      "First name is required",
		"   ":                   "First name is required",
		"J":                     "between 2 and 50",
		strings.Repeat("A", 51): "between 2 and 50",
		"John3":                 "can only contain",
		"<b>Al</b>":             "can only contain",
		"john":                  "uppercase",
	}
	for n, want := range invalid {
		t.Run("invalid "+n, func(t *testing.T) {
			r := validate.Name(n, "First name")
			require.False(t, r.Valid)
			require.Contains(t, r.Message, want)
		})
	}

	t.Run("composes decomposed accents", func(t *testing.T) {
		require.True(t, validate.Name("E\u0301lodie", "First name").Valid)
	})

	t.Run("default label", func(t *testing.T) {
		require.Equal(t, "Name is required", validate.Name("", "").Message)
	})
}

func TestDateOfBirth(t *testing.T) {
	now := time.Date(2026, time.October, 16, 15, 30, 0, 0, time.UTC)

	cases := []struct {
		name  string
		in    string
		valid bool
	}{
		{"ordinary", "1990-05-20", true},
		{"exactly one year", "2025-10-16", true},
		{"one day short of a year", "2025-10-17", false},
		{"exactly 120 years", "1906-10-16", true},
		{"120 years and one day", "1906-10-15", false},
		{"future", "2026-10-17", false},
		{"today", "2026-10-16", false},
		{"nonexistent day", "2023-02-30", false},
		{"leap day", "2024-02-29", true},
		{"bad layout", "20/05/1990", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validate.DateOfBirth(tc.in, now)
			require.Equal(t, tc.valid, r.Valid, r.Message)
		})
	}
}

func TestAge(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, 35, validate.Age(time.Date(1990, time.March, 1, 0, 0, 0, 0, time.UTC), now.AddDate(-1, 0, 0)))
	require.Equal(t, 36, validate.Age(time.Date(1990, time.March, 1, 0, 0, 0, 0, time.UTC), now))
	require.Equal(t, 35, validate.Age(time.Date(1990, time.March, 2, 0, 0, 0, 0, time.UTC), now))
}

func TestGender(t *testing.T) {
	for _, g := range validate.Genders {
		require.True(t, validate.Gender(g).Valid, g)
	}
	require.False(t, validate.Gender("Male").Valid)
	require.False(t, validate.Gender("").Valid)
	require.Contains(t, validate.Gender("x").Message, "prefer_not_to_say")
}

func TestPhone(t *testing.T) {
	cases := []struct {
		code, number string
		valid        bool
		msg          string
	}{
		{"+1", "(415) 555-2671", true, ""},
		{"+20", "01012345678", true, ""},
		{"+20", "1012345678", true, ""},
		{"20", "1012345678", true, ""},
		{"+20", "1312345678", false, "Invalid Egypt"},
		{"+44", "7911 123456", true, ""},
		{"+44", "123", false, "must have 10 digits"},
		{"+966", "512345678", true, ""},
		{"+971", "501234567", true, ""},
		{"+999", "123456789", false, "Unsupported country code"},
		{"+1", "", false, "required"},
	}

	for _, tc := range cases {
		t.Run(tc.code+" "+tc.number, func(t *testing.T) {
			r := validate.Phone(tc.code, tc.number)
			require.Equal(t, tc.valid, r.Valid, r.Message)
			if tc.msg != "" {
				require.Contains(t, r.Message, tc.msg)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	t.Run("drops tags", func(t *testing.T) {
		require.Equal(t, "Bold text", validate.Sanitize("<b>Bold</b> text"))
	})

	t.Run("drops script blocks", func(t *testing.T) {
		out := validate.Sanitize(`<script>alert("x")</script>Hello`)
		require.NotContains(t, out, "alert")
		require.Contains(t, out, "Hello")
	})

	t.Run("removes javascript scheme", func(t *testing.T) {
		require.Equal(t, "alert1", validate.Sanitize("JavaScript:alert(1)"))
	})

	t.Run("removes inline handlers", func(t *testing.T) {
		out := validate.Sanitize("x onclick=steal")
		require.NotContains(t, strings.ToLower(out), "onclick")
	})

	t.Run("strips quote and bracket symbols", func(t *testing.T) {
		require.Equal(t, "OBrien", validate.Sanitize("  O'Brien;  "))
	})

	t.Run("keeps plain text", func(t *testing.T) {
		require.Equal(t, "Penicillin allergy", validate.Sanitize("Penicillin allergy"))
	})

	t.Run("empty", func(t *testing.T) {
		require.Equal(t, "", validate.Sanitize(""))
	})
}

func TestSanitizeEmail(t *testing.T) {
	require.Equal(t, "jane@example.com", validate.SanitizeEmail("  Jane@Example.COM "))
}

func TestBloodType(t *testing.T) {
	for _, bt := range []string{"", "A+", "ab-", "O+"} {
		require.True(t, validate.BloodType(bt).Valid, bt)
	}
	require.False(t, validate.BloodType("C+").Valid)
}
