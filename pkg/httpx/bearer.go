package httpx

import "strings"

// ExtractBearerToken returns the token from an Authorization header value of
// exactly the form "Bearer <token>". Anything else, including extra
// segments or a lower-case scheme, yields false.
func ExtractBearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
