package bankmatch

import (
	"regexp"
	"strings"
)

var bankPrefixRe = regexp.MustCompile(`^D\s+\d{2,3}\s+`)

// stripBankPrefix removes the optional "D ddd " bank-origin prefix some
// concepto strings carry before the descriptive text.
func stripBankPrefix(s string) string {
	return bankPrefixRe.ReplaceAllString(strings.TrimSpace(s), "")
}

var referenceRe = regexp.MustCompile(`(\d{7})\.\d{2}\.\d{4}`)

// ExtractReference returns the first 7-digit ORDEN-DE-PAGO reference
// embedded in concepto, if any.
func ExtractReference(concepto string) (string, bool) {
	m := referenceRe.FindStringSubmatch(concepto)
	if m == nil {
		return "", false
	}
	return m[1], true
}

var splitRe = regexp.MustCompile(`[\s\-.]+`)
var digitLetterBoundaryRe = regexp.MustCompile(`(\d+)([A-Za-z])|([A-Za-z])(\d+)`)

var jargon = map[string]bool{
	"DEBITO": true, "CREDITO": true, "TRANSFERENCIA": true, "TRANSFERENCI": true,
	"PAGO": true, "COBRO": true, "OG": true, "DI": true, "AUT": true, "AUTO": true,
	"DIR": true, "REF": true, "NRO": true, "NUM": true, "CTA": true, "CBU": true,
}

var accentFold = strings.NewReplacer(
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ñ", "N", "Ü", "U",
	"á", "A", "é", "E", "í", "I", "ó", "O", "ú", "U", "ñ", "N", "ü", "U",
)

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// splitDigitLetterBoundary turns "20751CUOTA" into ["20751", "CUOTA"].
func splitDigitLetterBoundary(part string) []string {
	loc := digitLetterBoundaryRe.FindStringIndex(part)
	if loc == nil {
		return []string{part}
	}
	// Split right after the boundary match's first rune transition.
	splitAt := loc[0] + 1
	for splitAt < len(part) {
		prevDigit := part[splitAt-1] >= '0' && part[splitAt-1] <= '9'
		curDigit := part[splitAt] >= '0' && part[splitAt] <= '9'
		if prevDigit != curDigit {
			break
		}
		splitAt++
	}
	left, right := part[:splitAt], part[splitAt:]
	out := []string{}
	if left != "" {
		out = append(out, splitDigitLetterBoundary(left)...)
	}
	if right != "" {
		out = append(out, splitDigitLetterBoundary(right)...)
	}
	return out
}

// Tokenize implements the Phase 1 token-extraction rules: strip the
// bank-origin prefix, split on whitespace/hyphen/dot, split digit<->letter
// boundaries within each part, uppercase and fold accents, then drop
// short/numeric/jargon tokens.
func Tokenize(concepto string) []string {
	stripped := stripBankPrefix(concepto)
	parts := splitRe.Split(stripped, -1)

	var tokens []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		for _, sub := range splitDigitLetterBoundary(part) {
			sub = strings.ToUpper(accentFold.Replace(sub))
			if len(sub) < 3 || isDigits(sub) || jargon[sub] {
				continue
			}
			tokens = append(tokens, sub)
		}
	}
	return tokens
}

var wordBoundaryCache = map[string]*regexp.Regexp{}

func wordBoundaryRegexp(token string) *regexp.Regexp {
	if re, ok := wordBoundaryCache[token]; ok {
		return re
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(token) + `\b`)
	wordBoundaryCache[token] = re
	return re
}

// KeywordScore scores tokens against an entity name and an optional
// concepto field: +2 per token matching a whole word in either, case
// insensitive.
func KeywordScore(tokens []string, entityName, conceptoField string) int {
	entityName = strings.ToUpper(accentFold.Replace(entityName))
	conceptoField = strings.ToUpper(accentFold.Replace(conceptoField))

	score := 0
	for _, tok := range tokens {
		re := wordBoundaryRegexp(tok)
		if re.MatchString(entityName) {
			score += 2
		}
		if conceptoField != "" && re.MatchString(conceptoField) {
			score += 2
		}
	}
	return score
}
