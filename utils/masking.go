package utils

import (
	"regexp"
)

// #nosec G101 -- False positive - no hardcoded credentials.
const CredentialsInUrlRegexp = `((?:http|https|git)://)[^/@\s]+@`

var credentialsInUrl = regexp.MustCompile(CredentialsInUrlRegexp)

// MaskCredentials removes user info embedded in URLs, so the line can be logged.
func MaskCredentials(line string) string {
	return credentialsInUrl.ReplaceAllString(line, "${1}***@")
}
