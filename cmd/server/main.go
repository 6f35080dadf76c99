/*
Package main - reconciliation engine admin server

A thin HTTP surface around the scanner: health checks, a login endpoint
that exchanges the operator's static credential for a short-lived admin
token, and a scan-trigger/scan-summary pair behind that token. There is
no user table and no payroll API here; cmd/scanner is the batch worker
this surface merely pokes and inspects.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"adva-reconciliation-engine/internal/adminauth"
	"adva-reconciliation-engine/internal/config"
	"adva-reconciliation-engine/internal/fxrate"
	"adva-reconciliation-engine/internal/llm"
	"adva-reconciliation-engine/internal/logger"
	"adva-reconciliation-engine/internal/match/bankmatch"
	"adva-reconciliation-engine/internal/match/invoicepay"
	"adva-reconciliation-engine/internal/match/receiptpay"
	"adva-reconciliation-engine/internal/match/reconcile"
	"adva-reconciliation-engine/internal/pipeline"
	"adva-reconciliation-engine/internal/ratelimit"
	"adva-reconciliation-engine/internal/scanner"
	"adva-reconciliation-engine/internal/state"
	"adva-reconciliation-engine/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// runRecord is one completed or in-flight scan, keyed by scanner.Summary.Id.
type runRecord struct {
	summary *scanner.Summary
	err     error
}

// scanRunner owns scan-run history and serializes scan runs so two
// operators can't trigger overlapping passes over the same ledger sheets.
type scanRunner struct {
	mu      sync.Mutex
	running bool
	lastId  string
	runs    map[string]*runRecord
	deps    *pipeline.Deps
	fx      *fxrate.Cache
	cfg     scanner.Config
}

// trigger starts a scan run in the background and returns its id, which
// callers hand back to operators for later GET /admin/scans/{id}/summary
// lookups. Returns ("", false) if a run is already in flight.
func (r *scanRunner) trigger(log *logrus.Logger) (string, bool) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return "", false
	}
	id := uuid.NewString()
	r.running = true
	r.lastId = id
	if r.runs == nil {
		r.runs = make(map[string]*runRecord)
	}
	r.runs[id] = &runRecord{}
	r.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		summary, err := scanner.Run(ctx, r.deps, r.fx, r.cfg)
		summary.Id = id

		r.mu.Lock()
		r.running = false
		r.runs[id] = &runRecord{summary: &summary, err: err}
		r.mu.Unlock()

		if err != nil {
			log.WithError(err).Error("scan run failed")
		}
	}()

	return id, true
}

func (r *scanRunner) status() (running bool, last *scanner.Summary, lastErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastId == "" {
		return r.running, nil, nil
	}
	rec := r.runs[r.lastId]
	if rec == nil {
		return r.running, nil, nil
	}
	return r.running, rec.summary, rec.err
}

// byId looks up a specific run's outcome for GET /admin/scans/{id}/summary.
func (r *scanRunner) byId(id string) (rec *runRecord, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, found = r.runs[id]
	return rec, found
}

func main() {
	cfg, err := config.LoadAppConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading configuration:", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.Env)

	stateStore, err := state.Open(cfg.DatabaseURL, cfg.DBDriver)
	if err != nil {
		log.WithError(err).Fatal("opening state store")
	}

	docs := store.NewLocalDocumentStore(cfg.LocalDocumentRoot)
	tabular := store.NewExcelTabularStore(cfg.LocalLedgerRoot)
	limiter := ratelimit.New(cfg.GeminiRPMLimit, time.Minute)
	gateway := llm.NewGateway(cfg.GeminiEndpoint, cfg.GeminiAPIKey, limiter, log)
	fxCache := fxrate.NewCache(fxrate.NewHTTPProvider(cfg.FxRateBaseURL))

	deps := &pipeline.Deps{
		Docs:    docs,
		Tabular: tabular,
		Gateway: gateway,
		State:   stateStore,
		Log:     log,
		Prompts: pipeline.DefaultPrompts(),
		Sheets: pipeline.SheetIds{
			InvoicesReceived: "invoices_received",
			InvoicesEmitidas: "invoices_emitidas",
			PaymentsSent:     "payments_sent",
			PaymentsReceived: "payments_received",
			Receipts:         "receipts",
			Statements:       "statements",
		},
		RootFolderId: cfg.DriveRootFolderId,
		MaxRetries:   3,
	}

	runner := &scanRunner{
		deps: deps,
		fx:   fxCache,
		cfg: scanner.Config{
			Bankmatch:   bankmatch.DefaultConfig(),
			Invoicepay:  invoicepay.Config{MatchDaysBefore: cfg.MatchDaysBefore, MatchDaysAfter: cfg.MatchDaysAfter, UsdArsTolerancePercent: cfg.UsdArsTolerancePercent},
			Receiptpay:  receiptpay.Config{MatchDaysBefore: cfg.MatchDaysBefore, MatchDaysAfter: cfg.MatchDaysAfter},
			Cascade:     reconcile.CascadeConfig{MaxDepth: cfg.MaxCascadeDepth, Timeout: time.Duration(cfg.CascadeTimeoutMs) * time.Millisecond},
			WorkerCount: cfg.ScannerWorkerCount,
		},
	}

	authCfg := adminauth.NewConfig(cfg.JWTSecret, cfg.APISecret)

	router := setupRouter(cfg, log, authCfg, runner)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Infof("starting admin server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func setupRouter(cfg *config.AppConfig, log *logrus.Logger, authCfg adminauth.Config, runner *scanRunner) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.CORSAllowedOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(logger.GinLogger(log))
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/admin/login", func(c *gin.Context) {
		var body struct {
			Secret string `json:"secret" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := authCfg.CheckSecret(body.Secret); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		token, err := authCfg.IssueToken()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	})

	admin := router.Group("/admin", adminauth.RequireAdmin(authCfg))
	admin.POST("/scan", func(c *gin.Context) {
		id, started := runner.trigger(log)
		if !started {
			c.JSON(http.StatusConflict, gin.H{"error": "scan already running"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "triggered", "scanId": id})
	})
	admin.GET("/scan", func(c *gin.Context) {
		running, last, lastErr := runner.status()
		resp := gin.H{"running": running}
		if last != nil {
			resp["lastSummary"] = last
		}
		if lastErr != nil {
			resp["lastError"] = lastErr.Error()
		}
		c.JSON(http.StatusOK, resp)
	})
	admin.GET("/scans/:id/summary", func(c *gin.Context) {
		rec, found := runner.byId(c.Param("id"))
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown scan id"})
			return
		}
		if rec.summary == nil {
			c.JSON(http.StatusOK, gin.H{"status": "running"})
			return
		}
		resp := gin.H{"summary": rec.summary}
		if rec.err != nil {
			resp["error"] = rec.err.Error()
		}
		c.JSON(http.StatusOK, resp)
	})

	return router
}
