package logger

import (
	"strings"
)

// SanitizedSubject masks a subject key for logging. Email-shaped subjects
// keep the first character and the TLD (e.g. "u***@***.com"); anything else
// keeps only the first character.
func SanitizedSubject(subject string) string {
	if subject == "" {
		return "[empty-subject]"
	}

	parts := strings.Split(subject, "@")
	if len(parts) != 2 {
		return string(subject[0]) + strings.Repeat("*", len(subject)-1)
	}

	username := parts[0]
	domain := parts[1]

	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := map[string]bool{
		"password":   true,
		"token":      true,
		"secret":     true,
		"api_key":    true,
		"apikey":     true,
		"email":      true,
		"subject":    true,
		"subjectkey": true,
		"auth":       true,
	}

	query := strings.ToLower(rawQuery)
	for param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
