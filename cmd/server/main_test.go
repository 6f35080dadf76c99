package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adva-reconciliation-engine/internal/adminauth"
	"adva-reconciliation-engine/internal/config"
	"adva-reconciliation-engine/internal/fxrate"
	"adva-reconciliation-engine/internal/pipeline"
	"adva-reconciliation-engine/internal/scanner"
	"adva-reconciliation-engine/internal/state"
	"adva-reconciliation-engine/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T) (*gin.Engine, adminauth.Config) {
	gin.SetMode(gin.TestMode)

	hash, err := adminauth.HashSecret("super-secret", 4)
	require.NoError(t, err)
	authCfg := adminauth.NewConfig("jwt-secret", hash)
	authCfg.TokenExpiry = time.Minute

	log := logrus.New()
	log.SetOutput(io.Discard)

	s, err := state.Open(":memory:", "sqlite")
	require.NoError(t, err)

	tmp := t.TempDir()
	deps := &pipeline.Deps{
		Docs:    store.NewLocalDocumentStore(tmp),
		Tabular: store.NewExcelTabularStore(tmp),
		State:   s,
		Log:     log,
		Prompts: pipeline.DefaultPrompts(),
		Sheets: pipeline.SheetIds{
			InvoicesReceived: "invoices_received",
			PaymentsSent:     "payments_sent",
		},
		RootFolderId: ".",
	}

	runner := &scanRunner{
		deps: deps,
		fx:   fxrate.NewCache(fxrate.NewHTTPProvider("http://unused.invalid")),
		cfg:  scanner.Config{},
	}

	cfg := config.DefaultAppConfig()
	cfg.CORSAllowedOrigins = "*"

	router := setupRouter(cfg, log, authCfg, runner)
	return router, authCfg
}

func TestHealthzReturnsOk(t *testing.T) {
	router, _ := testRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminScanRequiresAuth(t *testing.T) {
	router, _ := testRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/scan", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginThenTriggerScan(t *testing.T) {
	router, _ := testRouter(t)

	body, _ := json.Marshal(map[string]string{"secret": "super-secret"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var loginResp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loginResp))
	require.NotEmpty(t, loginResp.Token)

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/admin/scan", nil)
	req2.Header.Set("Authorization", "Bearer "+loginResp.Token)
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusAccepted, w2.Code)

	var triggerResp struct {
		ScanId string `json:"scanId"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &triggerResp))
	require.NotEmpty(t, triggerResp.ScanId)

	w3 := httptest.NewRecorder()
	req3 := httptest.NewRequest(http.MethodGet, "/admin/scans/"+triggerResp.ScanId+"/summary", nil)
	req3.Header.Set("Authorization", "Bearer "+loginResp.Token)
	router.ServeHTTP(w3, req3)
	assert.Equal(t, http.StatusOK, w3.Code)
}

func TestAdminScanSummaryUnknownIdReturnsNotFound(t *testing.T) {
	router, authCfg := testRouter(t)
	token, err := authCfg.IssueToken()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/scans/does-not-exist/summary", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoginRejectsWrongSecret(t *testing.T) {
	router, _ := testRouter(t)

	body, _ := json.Marshal(map[string]string{"secret": "wrong"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
