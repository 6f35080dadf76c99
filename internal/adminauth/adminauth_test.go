package adminauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	hash, err := HashSecret("correct-horse-battery-staple", 4)
	require.NoError(t, err)
	cfg := NewConfig("test-secret", hash)
	cfg.TokenExpiry = time.Minute
	return cfg
}

func TestCheckSecretAcceptsCorrectCredential(t *testing.T) {
	cfg := testConfig(t)
	assert.NoError(t, cfg.CheckSecret("correct-horse-battery-staple"))
}

func TestCheckSecretRejectsWrongCredential(t *testing.T) {
	cfg := testConfig(t)
	assert.Error(t, cfg.CheckSecret("wrong-password"))
}

func TestIssueAndValidateTokenRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	token, err := cfg.IssueToken()
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := cfg.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, cfg.Issuer, claims.Issuer)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	cfg := testConfig(t)
	token, err := cfg.IssueToken()
	require.NoError(t, err)

	other := cfg
	other.JWTSecret = "different-secret"
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	cfg := testConfig(t)
	cfg.TokenExpiry = -time.Minute
	token, err := cfg.IssueToken()
	require.NoError(t, err)

	_, err = cfg.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestExtractBearerToken(t *testing.T) {
	token, err := ExtractBearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	_, err = ExtractBearerToken("")
	assert.Error(t, err)

	_, err = ExtractBearerToken("Basic abc")
	assert.Error(t, err)
}
