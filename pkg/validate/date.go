package validate

import "time"

const (
	// DateLayout is the accepted date-of-birth format.
	DateLayout = "2006-01-02"

	minAgeYears = 1
	maxAgeYears = 120
)

// DateOfBirth validates s as a YYYY-MM-DD date relative to now. The date must
// exist on the calendar, must not be in the future and must imply an age in
// [1, 120] years. The upper bound is exact to the day: someone born exactly
// 120 years ago today passes, one day earlier does not.
func DateOfBirth(s string, now time.Time) Result {
	if s == "" {
		return fail("Date of birth is required")
	}

	// time.Parse rejects out-of-range days such as 2023-02-30.
	dob, err := time.Parse(DateLayout, s)
	if err != nil {
		return fail("Invalid date of birth")
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if dob.After(today) {
		return fail("Date of birth cannot be in the future")
	}

	oldest := today.AddDate(-maxAgeYears, 0, 0)
	if dob.Before(oldest) || Age(dob, today) < minAgeYears {
		return fail("Age must be between 1 and 120 years")
	}
	return OK
}

// Age returns the number of full years between dob and now, comparing year,
// month and day.
func Age(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}
