// Package iso canonicalizes ISO3 country codes across all sources.
package iso

import "strings"

// CodeLength is the fixed length of an ISO3 country code.
const CodeLength = 3

// ExclusionSet holds country codes to drop from every source, typically
// obsolete or dependent territories.
type ExclusionSet map[string]struct{}

// NewExclusionSet builds an exclusion set from raw codes. Codes are
// normalized before insertion so membership checks are canonical.
func NewExclusionSet(codes []string) ExclusionSet {
	set := make(ExclusionSet, len(codes))
	for _, c := range codes {
		if norm, ok := Normalize(c); ok {
			set[norm] = struct{}{}
		}
	}
	return set
}

// Contains reports whether a normalized code is excluded.
func (s ExclusionSet) Contains(code string) bool {
	_, ok := s[code]
	return ok
}

// Normalize uppercases and trims a country code and reports whether the
// result is a well-formed ISO3 code. The literal "NAN" (a failed cast
// surviving as text in source spreadsheets) is rejected like an empty
// value. Normalize is idempotent: feeding its output back in returns the
// same code.
func Normalize(code string) (string, bool) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != CodeLength || c == "NAN" {
		return "", false
	}
	return c, true
}

// Clean normalizes a code and applies the exclusion set in one step.
// Rows with a false result are silently dropped by callers; no error is
// ever raised for malformed input.
func Clean(code string, excluded ExclusionSet) (string, bool) {
	c, ok := Normalize(code)
	if !ok || excluded.Contains(c) {
		return "", false
	}
	return c, true
}
