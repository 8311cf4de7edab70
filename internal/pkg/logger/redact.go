package logger

import "strings"

// RedactEmail masks an address for safe logging:
// "john.doe@example.com" → "jo***@example.com".
// Short local parts (≤2 chars) are fully masked, and anything that is not
// shaped like an email comes back as "***@***".
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}
