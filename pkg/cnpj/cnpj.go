// Package cnpj resolves Brazilian company registry numbers against a fixed
// chain of independent public registry APIs.
package cnpj

import (
	"regexp"
	"strings"
)

// pattern matches CNPJ-like substrings in free text: either the punctuated
// form 12.345.678/0001-90 or a bare 14-digit run.
var pattern = regexp.MustCompile(`\d{2}\.?\d{3}\.?\d{3}\/?\d{4}-?\d{2}|\b\d{14}\b`)

var nonDigits = regexp.MustCompile(`\D`)

// Normalize strips non-digit characters and reports whether the remainder
// is exactly 14 digits. Only exact-14 candidates are valid lookup inputs.
func Normalize(s string) (string, bool) {
	digits := nonDigits.ReplaceAllString(s, "")
	if len(digits) != 14 {
		return "", false
	}
	return digits, true
}

// FromText extracts all distinct CNPJ candidates from free text, in order
// of first appearance. Substrings that do not normalize to exactly 14
// digits are discarded; duplicates appear once.
func FromText(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range pattern.FindAllString(text, -1) {
		digits, ok := Normalize(m)
		if !ok {
			continue
		}
		if _, dup := seen[digits]; dup {
			continue
		}
		seen[digits] = struct{}{}
		out = append(out, digits)
	}
	return out
}

// Format renders a 14-digit number in the punctuated display form.
func Format(digits string) string {
	if len(digits) != 14 {
		return digits
	}
	var b strings.Builder
	b.WriteString(digits[0:2])
	b.WriteByte('.')
	b.WriteString(digits[2:5])
	b.WriteByte('.')
	b.WriteString(digits[5:8])
	b.WriteByte('/')
	b.WriteString(digits[8:12])
	b.WriteByte('-')
	b.WriteString(digits[12:14])
	return b.String()
}
