package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// PhoneRule describes the national number format for one calling code.
type PhoneRule struct {
	Country string
	Code    string
	Digits  int
	Pattern *regexp.Regexp
}

// PhoneRules is keyed by calling code including the leading "+".
var PhoneRules = map[string]PhoneRule{
	"+1":   {Country: "United States", Code: "+1", Digits: 10, Pattern: regexp.MustCompile(`^[2-9]\d{2}[2-9]\d{6}$`)},
	"+20":  {Country: "Egypt", Code: "+20", Digits: 10, Pattern: regexp.MustCompile(`^1[0125]\d{8}$`)},
	"+33":  {Country: "France", Code: "+33", Digits: 9, Pattern: regexp.MustCompile(`^[1-9]\d{8}$`)},
	"+44":  {Country: "United Kingdom", Code: "+44", Digits: 10, Pattern: regexp.MustCompile(`^[1-9]\d{9}$`)},
	"+49":  {Country: "Germany", Code: "+49", Digits: 11, Pattern: regexp.MustCompile(`^1[5-7]\d{9}$`)},
	"+61":  {Country: "Australia", Code: "+61", Digits: 9, Pattern: regexp.MustCompile(`^4\d{8}$`)},
	"+91":  {Country: "India", Code: "+91", Digits: 10, Pattern: regexp.MustCompile(`^[6-9]\d{9}$`)},
	"+966": {Country: "Saudi Arabia", Code: "+966", Digits: 9, Pattern: regexp.MustCompile(`^5\d{8}$`)},
	"+971": {Country: "United Arab Emirates", Code: "+971", Digits: 9, Pattern: regexp.MustCompile(`^5[024568]\d{7}$`)},
}

var nonDigits = regexp.MustCompile(`\D`)

// DigitsOnly strips everything but ASCII digits from s.
func DigitsOnly(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// NationalNumber returns the digits of number with a single leading trunk
// zero removed when the rule's digit count is exceeded by exactly one.
func NationalNumber(rule PhoneRule, number string) string {
	digits := DigitsOnly(number)
	if len(digits) == rule.Digits+1 && strings.HasPrefix(digits, "0") {
		digits = digits[1:]
	}
	return digits
}

// Phone validates number against the rule for countryCode.
func Phone(countryCode, number string) Result {
	code := strings.TrimSpace(countryCode)
	if code != "" && !strings.HasPrefix(code, "+") {
		code = "+" + code
	}

	rule, ok := PhoneRules[code]
	if !ok {
		return fail(fmt.Sprintf("Unsupported country code %q", countryCode))
	}

	digits := NationalNumber(rule, number)
	if digits == "" {
		return fail("Phone number is required")
	}
	if len(digits) != rule.Digits {
		return fail(fmt.Sprintf("%s phone numbers must have %d digits", rule.Country, rule.Digits))
	}
	if !rule.Pattern.MatchString(digits) {
		return fail(fmt.Sprintf("Invalid %s phone number format", rule.Country))
	}
	return OK
}
