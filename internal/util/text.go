package util

import "strings"

// SanitizePostgresText drops NUL bytes and invalid UTF-8, neither of which a
// Postgres text column accepts.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}
	return strings.ReplaceAll(strings.ToValidUTF8(value, ""), "\x00", "")
}

// CleanField sanitizes a short single value such as a name or a fact and
// strips the surrounding whitespace that removing NUL bytes may expose.
func CleanField(value string) string {
	return strings.TrimSpace(SanitizePostgresText(value))
}
