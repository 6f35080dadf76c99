package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidCUIT(t *testing.T) {
	cases := []struct {
		name string
		cuit string
		want bool
	}{
		{"ADVA cuit", "30709076783", true},
		{"with dashes", "30-70907678-3", true},
		{"bad checksum", "30709076780", false},
		{"bad prefix", "99709076783", false},
		{"too short", "3070907678", false},
		{"non numeric", "abcdefghijk", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValidCUIT(tc.cuit))
		})
	}
}

func TestIdentifierMatch(t *testing.T) {
	// CUIT 20-12345678-6 (constructed with a valid checksum below) embeds
	// DNI 12345678 at positions 2..10.
	cuit := cuitWithDNI(t, "20", "12345678")

	assert.True(t, IdentifierMatch(cuit, "12345678"))
	assert.True(t, IdentifierMatch("12345678", cuit))
	assert.False(t, IdentifierMatch(cuit, "99999999"))
	assert.True(t, IdentifierMatch(cuit, cuit))
}

func TestExtractDNI(t *testing.T) {
	cuit := cuitWithDNI(t, "20", "00345678")
	require.Equal(t, "345678", ExtractDNI(cuit))
}

func TestExtractCUIT(t *testing.T) {
	valid := "30709076783"

	cases := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"labeled", "CUIT: 30-70907678-3 emisor", valid, true},
		{"separated", "doc 30-70907678-3 firmado", valid, true},
		{"plain", "ref 30709076783 fin", valid, true},
		{"none", "no id here", "", false},
		{"invalid checksum ignored", "CUIT: 30709076780", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractCUIT(tc.text)
			assert.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

// cuitWithDNI builds a checksum-valid CUIT for the given 2-digit prefix and
// 8-digit body, by brute-forcing the single check digit.
func cuitWithDNI(t *testing.T, prefix, body string) string {
	t.Helper()
	base := prefix + body
	require.Len(t, base, 10)
	for check := 0; check <= 9; check++ {
		candidate := base + string(rune('0'+check))
		if IsValidCUIT(candidate) {
			return candidate
		}
	}
	t.Fatalf("no valid check digit found for %s", base)
	return ""
}
