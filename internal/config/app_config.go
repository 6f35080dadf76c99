/*
Package config - Reconciliation Engine Application Configuration

DESCRIPTION:
    Central configuration for the document pipeline and matchers. Loads
    settings from environment variables, .env files, and optionally from
    HashiCorp Vault for production secrets.

CONFIGURATION SOURCES (priority order):
    1. HashiCorp Vault (if VAULT_ADDR is set)
    2. Environment variables
    3. .env file
    4. Default values in DefaultAppConfig()
*/
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/joho/godotenv"
)

// AppConfig contains all engine configuration.
type AppConfig struct {
	// Server
	Port     int
	Env      string
	LogLevel string

	CORSAllowedOrigins string

	// Idempotency / state store
	DBDriver    string // "sqlite" | "postgres"
	DatabaseURL string

	// Admin trigger endpoint auth
	APISecret  string
	JWTSecret  string
	BcryptCost int

	// Document store root
	DriveRootFolderId string
	WebhookURL        string

	// LLM
	GeminiAPIKey   string
	GeminiRPMLimit int
	GeminiEndpoint string

	// Exchange rate provider
	FxRateBaseURL string

	// Local filesystem roots used by the dev/local document and tabular
	// store collaborators in place of a real cloud drive
	LocalDocumentRoot string
	LocalLedgerRoot   string

	// Number of files downloaded/classified/extracted concurrently
	ScannerWorkerCount int

	// Google service account used by the document/tabular store collaborators
	GoogleServiceAccountKey string

	// Matching
	MatchDaysBefore        int
	MatchDaysAfter         int
	UsdArsTolerancePercent float64

	// Displacement cascades
	MaxCascadeDepth  int
	CascadeTimeoutMs int

	// Per-call timeout for external I/O (LLM, store, fx)
	CallTimeout time.Duration

	VaultClient *api.Client
}

// DefaultAppConfig returns configuration with the defaults named in the
// specification's configuration table.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Port:                   8080,
		Env:                    "development",
		LogLevel:               "info",
		CORSAllowedOrigins:     "*",
		DBDriver:               "sqlite",
		DatabaseURL:            "./adva_reconciliation.db",
		BcryptCost:             12,
		GeminiRPMLimit:         150,
		GeminiEndpoint:         "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent",
		FxRateBaseURL:          "https://api.argentinadatos.com/v1",
		LocalDocumentRoot:      "./data/documents",
		LocalLedgerRoot:        "./data/ledgers",
		ScannerWorkerCount:     4,
		MatchDaysBefore:        10,
		MatchDaysAfter:         60,
		UsdArsTolerancePercent: 5,
		MaxCascadeDepth:        10,
		CascadeTimeoutMs:       30000,
		CallTimeout:            30 * time.Second,
	}
}

// LoadAppConfig loads configuration from env/.env, optionally layering in
// Vault-managed secrets when VAULT_ADDR is set.
func LoadAppConfig() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := DefaultAppConfig()

	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("NODE_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.DBDriver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("API_SECRET"); v != "" {
		cfg.APISecret = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("DRIVE_ROOT_FOLDER_ID"); v != "" {
		cfg.DriveRootFolderId = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("GEMINI_RPM_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GeminiRPMLimit = n
		}
	}
	if v := os.Getenv("GOOGLE_SERVICE_ACCOUNT_KEY"); v != "" {
		cfg.GoogleServiceAccountKey = v
	}
	if v := os.Getenv("GEMINI_ENDPOINT"); v != "" {
		cfg.GeminiEndpoint = v
	}
	if v := os.Getenv("FX_RATE_BASE_URL"); v != "" {
		cfg.FxRateBaseURL = v
	}
	if v := os.Getenv("LOCAL_DOCUMENT_ROOT"); v != "" {
		cfg.LocalDocumentRoot = v
	}
	if v := os.Getenv("LOCAL_LEDGER_ROOT"); v != "" {
		cfg.LocalLedgerRoot = v
	}
	if v := os.Getenv("SCANNER_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ScannerWorkerCount = n
		}
	}
	if v := os.Getenv("MATCH_DAYS_BEFORE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MatchDaysBefore = n
		}
	}
	if v := os.Getenv("MATCH_DAYS_AFTER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MatchDaysAfter = n
		}
	}
	if v := os.Getenv("USD_ARS_TOLERANCE_PERCENT"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.UsdArsTolerancePercent = n
		}
	}
	if v := os.Getenv("MAX_CASCADE_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxCascadeDepth = n
		}
	}
	if v := os.Getenv("CASCADE_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CascadeTimeoutMs = n
		}
	}

	if os.Getenv("VAULT_ADDR") != "" {
		if err := loadFromVault(cfg); err != nil {
			fmt.Printf("warning: could not load secrets from vault: %v\n", err)
		}
	}

	if cfg.IsProduction() {
		if cfg.APISecret == "" || cfg.GoogleServiceAccountKey == "" || cfg.GeminiAPIKey == "" || cfg.DriveRootFolderId == "" {
			return nil, fmt.Errorf("missing required production configuration (apiSecret/googleServiceAccountKey/geminiApiKey/driveRootFolderId)")
		}
	}

	return cfg, nil
}

// loadFromVault connects to Vault and overlays secrets onto cfg.
func loadFromVault(c *AppConfig) error {
	vaultConfig := api.DefaultConfig()

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return fmt.Errorf("failed to create vault client: %w", err)
	}
	c.VaultClient = client

	secretPath := os.Getenv("VAULT_SECRET_PATH")
	if secretPath == "" {
		secretPath = "secret/data/adva-reconciliation"
	}

	secret, err := client.KVv2(secretPath).Get(context.Background(), "")
	if err != nil {
		return fmt.Errorf("failed to read secrets from vault path %s: %w", secretPath, err)
	}

	if v, ok := secret.Data["API_SECRET"].(string); ok {
		c.APISecret = v
	}
	if v, ok := secret.Data["JWT_SECRET"].(string); ok {
		c.JWTSecret = v
	}
	if v, ok := secret.Data["GEMINI_API_KEY"].(string); ok {
		c.GeminiAPIKey = v
	}
	if v, ok := secret.Data["GOOGLE_SERVICE_ACCOUNT_KEY"].(string); ok {
		c.GoogleServiceAccountKey = v
	}

	return nil
}

func (c *AppConfig) IsProduction() bool  { return c.Env == "production" }
func (c *AppConfig) IsDevelopment() bool { return c.Env == "development" }
func (c *AppConfig) IsTesting() bool     { return c.Env == "testing" }
