package enrich

import (
	"strings"
	"unicode"

	"github.com/sells-group/contacts-cli/internal/refdata"
)

// IsPlausibleName reports whether a raw text fragment looks like a
// person's name: 4-50 chars, 2-4 tokens, no digits, at least one token
// in the first-name dictionary and none in the non-name blocklist.
func IsPlausibleName(ref *refdata.Reference, fragment string) bool {
	fragment = strings.TrimSpace(fragment)
	if len(fragment) < 4 || len(fragment) > 50 {
		return false
	}
	words := strings.Fields(fragment)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		if len(w) < 2 || containsDigit(w) {
			return false
		}
		if ref.NonNames.Has(strings.Trim(strings.ToLower(w), ".,")) {
			return false
		}
	}
	for _, w := range words {
		if ref.FirstNames.Has(strings.Trim(strings.ToLower(w), ".,")) {
			return true
		}
	}
	return false
}

// PlausiblePerson checks an already-split first/last pair: both parts
// at least two letters, digit-free, first or last in the dictionary,
// and neither in the blocklist.
func PlausiblePerson(ref *refdata.Reference, first, last string) bool {
	f := strings.ToLower(strings.TrimSpace(first))
	l := strings.ToLower(strings.TrimSpace(last))
	if len(f) < 2 || len(l) < 2 {
		return false
	}
	if containsDigit(f) || containsDigit(l) {
		return false
	}
	if ref.NonNames.Has(f) || ref.NonNames.Has(l) {
		return false
	}
	return ref.FirstNames.Has(f) || ref.FirstNames.Has(l)
}

// SplitName splits a full name fragment into first name and the
// remaining tokens as last name. Returns ok=false for single tokens.
func SplitName(fragment string) (first, last string, ok bool) {
	words := strings.Fields(strings.TrimSpace(fragment))
	if len(words) < 2 {
		return "", "", false
	}
	return words[0], strings.Join(words[1:], " "), true
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
