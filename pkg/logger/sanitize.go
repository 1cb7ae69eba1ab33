package logger

import (
	"net/url"
	"strings"
)

// sensitiveParams are query parameter names whose values must never be
// written to logs.
var sensitiveParams = []string{
	"password",
	"invite_code",
	"inviteCode",
	"token",
	"secret",
	"code",
}

// SanitizeQueryString reports whether a raw query string carries a
// sensitive parameter and must be redacted before logging.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		// Unparseable query strings are redacted wholesale.
		return true
	}

	for key := range values {
		lowered := strings.ToLower(key)
		for _, sensitive := range sensitiveParams {
			if lowered == strings.ToLower(sensitive) {
				return true
			}
		}
	}

	return false
}
