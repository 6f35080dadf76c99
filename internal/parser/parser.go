/*
Package parser - LLM response to typed record conversion

Converts an LLM vision reply into the typed records defined in
internal/model: strips markdown fences before decoding JSON (the same
defensive cleanup the ocr extractor in this codebase's sibling projects
applies), normalizes CUITs, detects the reference organization by name
pattern, and derives extraction confidence and the needsReview flag.
*/
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"adva-reconciliation-engine/internal/apperrors"
	"adva-reconciliation-engine/internal/model"
	"adva-reconciliation-engine/internal/validators"
)

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON strips optional markdown code fences from an LLM reply and
// returns the first balanced-looking JSON object found in it.
func ExtractJSON(reply string) (string, error) {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	match := jsonObjectRe.FindString(cleaned)
	if match == "" {
		return "", apperrors.ErrPermanentExtract.WithMessage("no JSON object found in LLM reply")
	}
	return match, nil
}

// Decode extracts and unmarshals an LLM JSON reply into v.
func Decode(reply string, v any) error {
	jsonText, err := ExtractJSON(reply)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(jsonText), v); err != nil {
		return apperrors.Wrap(err, apperrors.ErrPermanentExtract)
	}
	return nil
}

// NormalizeCUIT strips separators and validates a CUIT extracted from an
// LLM reply.
func NormalizeCUIT(raw string) (string, bool) {
	stripped := validators.StripSeparators(raw)
	if !validators.IsValidCUIT(stripped) {
		return stripped, false
	}
	return stripped, true
}

var (
	advaLiteralRe = regexp.MustCompile(`(?i)ADVA`)
	advaPatternRe = regexp.MustCompile(`(?i)ASOC.*CIVIL.*DESARROLL`)
	videogameRe   = regexp.MustCompile(`(?i)VIDEOJUEGO`)
)

// IsAdvaName reports whether name identifies the reference organization,
// tolerating OCR variants of its legal name (e.g. "DESARROLLARODES").
func IsAdvaName(name string) bool {
	if name == "" {
		return false
	}
	return advaLiteralRe.MatchString(name) ||
		advaPatternRe.MatchString(name) ||
		videogameRe.MatchString(name)
}

// PartyAssignment is the resolved issuer/receiver pair for an invoice-like
// document.
type PartyAssignment struct {
	Direction    model.Direction
	CuitEmisor   string
	CuitReceptor string
}

// AssignParties implements the issuer/receiver assignment rule from the
// response-parser contract: exactly one of issuer/receiver name should
// match the reference organization.
func AssignParties(nameIssuer, nameReceiver string, cuits []string) (PartyAssignment, error) {
	issuerIsAdva := IsAdvaName(nameIssuer)
	receiverIsAdva := IsAdvaName(nameReceiver)

	if issuerIsAdva && receiverIsAdva {
		return PartyAssignment{}, apperrors.ErrUnrecognized
	}

	if receiverIsAdva && !issuerIsAdva {
		nonAdva := firstNonAdvaCuit(cuits)
		return PartyAssignment{
			Direction:    model.DirFacturaRecibida,
			CuitEmisor:   nonAdva,
			CuitReceptor: advaCuit(cuits, nonAdva),
		}, nil
	}

	if issuerIsAdva && !receiverIsAdva {
		if len(cuits) == 1 {
			return PartyAssignment{
				Direction:    model.DirFacturaEmitida,
				CuitEmisor:   cuits[0],
				CuitReceptor: "",
			}, nil
		}
		nonAdva := firstNonAdvaCuit(cuits)
		return PartyAssignment{
			Direction:    model.DirFacturaEmitida,
			CuitEmisor:   advaCuit(cuits, nonAdva),
			CuitReceptor: nonAdva,
		}, nil
	}

	return PartyAssignment{}, apperrors.ErrUnrecognized
}

func advaCuit(cuits []string, nonAdva string) string {
	for _, c := range cuits {
		if c != nonAdva {
			return c
		}
	}
	return model.ADVACuit
}

func firstNonAdvaCuit(cuits []string) string {
	for _, c := range cuits {
		if c != model.ADVACuit {
			return c
		}
	}
	if len(cuits) > 0 {
		return cuits[0]
	}
	return ""
}

// FieldPresence reports which required fields an extraction actually
// populated, for confidence scoring.
type FieldPresence struct {
	Present int
	Total   int
}

// Confidence computes presentRequiredFields / totalRequiredFields, floored
// at 0.5 and ceiled at 1.0.
func (f FieldPresence) Confidence() float64 {
	if f.Total <= 0 {
		return 0.5
	}
	c := float64(f.Present) / float64(f.Total)
	if c < 0.5 {
		return 0.5
	}
	if c > 1.0 {
		return 1.0
	}
	return c
}

// NeedsReview implements needsReview = confidence <= 0.9 AND
// (anyRequiredMissing OR suspiciousEmptyOptional).
func NeedsReview(confidence float64, anyRequiredMissing, suspiciousEmptyOptional bool) bool {
	return confidence <= 0.9 && (anyRequiredMissing || suspiciousEmptyOptional)
}

// Classification is the typed result of a classification-stage LLM call.
type Classification struct {
	DocumentType string   `json:"documentType"`
	Confidence   float64  `json:"confidence"`
	Indicators   []string `json:"indicators"`
}

// ParseClassification decodes a classification reply.
func ParseClassification(reply string) (Classification, error) {
	var c Classification
	if err := Decode(reply, &c); err != nil {
		return Classification{}, err
	}
	if strings.TrimSpace(c.DocumentType) == "" {
		return Classification{}, apperrors.ErrUnrecognized
	}
	return c, nil
}

// RequireString fails with a descriptive error when a required field was
// left empty by the extraction.
func RequireString(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.ErrValidation.WithMessage(fmt.Sprintf("missing required field %q", field))
	}
	return nil
}
