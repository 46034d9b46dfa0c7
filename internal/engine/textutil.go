package engine

import (
	"strings"
	"unicode"

	"github.com/anatolykoptev/go-kit/strutil"
)

// User-Agent string for API clients that do not rotate.
const UserAgentBot = "go_cortex/1.0"

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Safe for UTF-8 (CJK titles are the common case).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}

// SanitizeName keeps letters, digits, space, '-' and '_' and trims the result.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// firstN returns the first n bytes of s, or s when shorter.
func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// CreatorDirName derives a creator's storage directory: first 8 chars of the
// external id, an underscore, then the sanitized display name.
func CreatorDirName(externalID, name string) string {
	return firstN(externalID, 8) + "_" + SanitizeName(name)
}
