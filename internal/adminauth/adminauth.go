/*
Package adminauth - single-principal admin authentication

The thin admin HTTP surface in cmd/server has exactly one caller: an
operator triggering or inspecting a scan. There is no user table, so this
trims the teacher's multi-role JWT scheme (access/refresh pairs, per-user
claims, enums.UserRole) down to one bcrypt-checked static credential and
one token type, keeping the same HMAC-SHA256/RegisteredClaims shape.
*/
package adminauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Claims is the admin token's payload.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// Config holds the secret material and token lifetime for the admin
// surface. JWTSecret signs tokens; APISecretHash is the bcrypt hash of
// the operator credential checked at login.
type Config struct {
	JWTSecret     string
	APISecretHash string
	TokenExpiry   time.Duration
	Issuer        string
}

// NewConfig builds a Config with the spec's default one-hour token
// lifetime.
func NewConfig(jwtSecret, apiSecretHash string) Config {
	return Config{
		JWTSecret:     jwtSecret,
		APISecretHash: apiSecretHash,
		TokenExpiry:   time.Hour,
		Issuer:        "adva-reconciliation-engine",
	}
}

// HashSecret bcrypt-hashes a plaintext admin credential at the given
// cost, for use when provisioning Config.APISecretHash.
func HashSecret(plaintext string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("hashing admin secret: %w", err)
	}
	return string(hashed), nil
}

// CheckSecret reports whether plaintext matches the configured admin
// credential.
func (c Config) CheckSecret(plaintext string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(c.APISecretHash), []byte(plaintext)); err != nil {
		return errors.New("invalid admin credential")
	}
	return nil
}

// IssueToken signs a fresh admin access token.
func (c Config) IssueToken() (string, error) {
	now := time.Now()
	claims := &Claims{
		Subject: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(c.TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    c.Issuer,
			Subject:   "admin",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing admin token: %w", err)
	}
	return token, nil
}

// ValidateToken parses and verifies an admin access token.
func (c Config) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(c.JWTSecret), nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "token is expired") {
			return nil, errors.New("admin token has expired")
		}
		return nil, fmt.Errorf("invalid admin token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid admin token claims")
	}
	return claims, nil
}

// ExtractBearerToken pulls the token out of an "Authorization: Bearer
// ..." header value.
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("authorization header is required")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("authorization header must be 'Bearer {token}'")
	}
	return parts[1], nil
}
