package bankmatch

import "regexp"

var bankFeeRe = regexp.MustCompile(`(?i)^(IMPUESTO LEY|IMP\.?\s*LEY\s*25413|LEY\s*NRO\.?\s*25\.?4|COMISION|COM\.?\s*MANT|COMI\s*TRANSFERENCIA|COM\.?\s*TRANSF|IVA\s*TASA|GP-COM\.?OPAGO|GP-IVA\s*TASA)`)

var creditCardRe = regexp.MustCompile(`(?i)^PAGO\s*TARJETA\s*(\d+|VISA|MASTERCARD|AMEX|NARANJA|CABAL)`)

// detectAutoCategory implements Phase 0: a small set of concepto patterns
// that are recognized outright without touching the document pool at all.
func detectAutoCategory(concepto string) (matchType, description string, ok bool) {
	stripped := stripBankPrefix(concepto)

	if bankFeeRe.MatchString(stripped) {
		return matchTypeBankFee, "Gastos bancarios", true
	}
	if creditCardRe.MatchString(stripped) {
		return matchTypeCreditCardPayment, "Pago de tarjeta de credito", true
	}
	return "", "", false
}
