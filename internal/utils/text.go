package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims surrounding whitespace and converts s to Unicode NFC,
// so visually identical names compare equal. Case is preserved.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// NormalizeEmail trims the address and lower-cases its domain part. The local
// part keeps its case, since mailbox names may be case-sensitive.
func NormalizeEmail(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return s
	}
	return s[:at+1] + cases.Lower(language.Und).String(s[at+1:])
}
