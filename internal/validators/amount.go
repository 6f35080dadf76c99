package validators

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"adva-reconciliation-engine/internal/model"
)

var amountCleanRe = regexp.MustCompile(`[^0-9.,\-]`)

// ParseAmount parses an Argentine-locale formatted amount ("2.917.310,00" ->
// 2917310.00). Dots are thousands separators, a comma is the sole decimal
// marker. A string with no comma is parsed as a plain integer amount (every
// dot treated as a thousands separator) to avoid the ambiguity the spec
// calls out between "1.234" (thousands) and a stray decimal.
func ParseAmount(raw string) (model.Amount, error) {
	s := strings.TrimSpace(amountCleanRe.ReplaceAllString(raw, ""))
	if s == "" {
		return model.Amount{}, fmt.Errorf("empty amount")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	var intPart, fracPart string
	if i := strings.LastIndex(s, ","); i >= 0 {
		intPart = strings.ReplaceAll(s[:i], ".", "")
		fracPart = s[i+1:]
	} else {
		intPart = strings.ReplaceAll(s, ".", "")
		fracPart = "00"
	}
	if len(fracPart) == 1 {
		fracPart += "0"
	}
	if len(fracPart) > 2 {
		fracPart = fracPart[:2]
	}
	if intPart == "" {
		intPart = "0"
	}

	cents, err := strconv.ParseInt(intPart+fracPart, 10, 64)
	if err != nil {
		return model.Amount{}, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if neg {
		cents = -cents
	}
	return model.Amount{Cents: cents}, nil
}

// FormatAmount renders an Amount in Argentine locale ("2.917.310,00").
func FormatAmount(a model.Amount) string {
	cents := a.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	intPart := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(intPart, 10)
	var grouped strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(d)
	}

	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%s,%02d", sign, grouped.String(), frac)
}
