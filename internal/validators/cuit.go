/*
Package validators - identity and amount validation

Grounded on this codebase's RFC-handling style (cfdi_service.go) generalized
from the Mexican RFC checksum to the Argentine CUIT mod-11 checksum.
*/
package validators

import (
	"regexp"
	"strings"
)

var cuitWeights = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

var validCuitPrefixes = map[string]bool{
	"20": true, "23": true, "24": true, "27": true,
	"30": true, "33": true, "34": true,
}

var digitsOnly = regexp.MustCompile(`\D`)

// StripSeparators removes every non-digit character from an identifier.
func StripSeparators(s string) string {
	return digitsOnly.ReplaceAllString(s, "")
}

// IsValidCUIT checks the mod-11 checksum and prefix of an 11-digit CUIT.
// The input may contain separators; they are stripped first.
func IsValidCUIT(raw string) bool {
	s := StripSeparators(raw)
	if len(s) != 11 {
		return false
	}
	if !validCuitPrefixes[s[0:2]] {
		return false
	}

	sum := 0
	for i := 0; i < 10; i++ {
		sum += int(s[i]-'0') * cuitWeights[i]
	}
	c := 11 - (sum % 11)
	var check int
	switch c {
	case 11:
		check = 0
	case 10:
		check = 9
	default:
		check = c
	}
	return int(s[10]-'0') == check
}

// IsValidDNI checks the 7-8 digit shape of an Argentine national ID.
func IsValidDNI(raw string) bool {
	s := StripSeparators(raw)
	return len(s) >= 7 && len(s) <= 8
}

// ExtractDNI returns the DNI embedded in a CUIT's positions 2..10 (0-indexed
// 2..9 inclusive), with leading zeros stripped.
func ExtractDNI(cuit string) string {
	s := StripSeparators(cuit)
	if len(s) != 11 {
		return ""
	}
	dni := strings.TrimLeft(s[2:10], "0")
	if dni == "" {
		dni = "0"
	}
	return dni
}

// IdentifierMatch reports whether a and b refer to the same party: either
// both are equal CUITs, or one is a DNI and the other a CUIT whose embedded
// DNI (positions 2..10, leading zeros stripped) equals it.
func IdentifierMatch(a, b string) bool {
	sa, sb := StripSeparators(a), StripSeparators(b)
	if sa == "" || sb == "" {
		return false
	}
	if len(sa) == 11 && len(sb) == 11 {
		return sa == sb
	}
	if len(sa) == 11 && IsValidDNI(sb) {
		return ExtractDNI(sa) == strings.TrimLeft(sb, "0")
	}
	if len(sb) == 11 && IsValidDNI(sa) {
		return ExtractDNI(sb) == strings.TrimLeft(sa, "0")
	}
	return false
}

var (
	labeledCuitRe   = regexp.MustCompile(`(?i)CUI[TL][:\s]*(\d{2}[-\s]?\d{8}[-\s]?\d)`)
	separatedCuitRe = regexp.MustCompile(`(\d{2})[-\s](\d{8})[-\s](\d)`)
	plainCuitRe     = regexp.MustCompile(`\d{11}`)
)

// ExtractCUIT searches free text for the first checksum-valid CUIT, trying
// a labeled form, then a separated form, then any bare 11-digit run.
func ExtractCUIT(text string) (string, bool) {
	if m := labeledCuitRe.FindStringSubmatch(text); m != nil {
		if c := StripSeparators(m[1]); IsValidCUIT(c) {
			return c, true
		}
	}
	if m := separatedCuitRe.FindStringSubmatch(text); m != nil {
		c := m[1] + m[2] + m[3]
		if IsValidCUIT(c) {
			return c, true
		}
	}
	for _, m := range plainCuitRe.FindAllString(text, -1) {
		if IsValidCUIT(m) {
			return m, true
		}
	}
	return "", false
}
