package logging

import "regexp"

const (
	// MaxTextLogLength is the maximum length of submission or content
	// text to include in a log line.
	MaxTextLogLength = 120
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match potential passwords in connection strings
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Pattern to match connection string credentials (user:pass@host format)
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)
)

// RedactConnectionString removes credentials from a database DSN or a
// source URL before it is logged.
func RedactConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	redacted := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	redacted = connStringPattern.ReplaceAllString(redacted, "://"+RedactedText+"@"+RedactedText)
	return redacted
}

// RedactError redacts error messages that might embed a DSN or URL
// credentials. Use this before logging errors from storage operations.
func RedactError(err error) string {
	if err == nil {
		return ""
	}
	redacted := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	redacted = connStringPattern.ReplaceAllString(redacted, "://"+RedactedText+"@"+RedactedText)
	return redacted
}

// Snippet truncates submission or content text for logging.
func Snippet(s string) string {
	return TruncateString(s, MaxTextLogLength)
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
