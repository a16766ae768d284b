package slogx

import "strings"

// MaskEmail keeps enough of an address to correlate log lines without
// recording it: "jane.doe@example.com" becomes "j***@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
