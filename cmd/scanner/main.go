/*
Package main - reconciliation engine scanner entry point

Runs one intake-and-reconcile pass over the configured document inbox:
lists unseen files, drives each through the pipeline state machine, then
reconciles every ledger sheet. Intended to run as a scheduled job (cron,
systemd timer) rather than a long-lived server.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"time"

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
)

func main() {
	cfg, err := config.LoadAppConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading configuration:", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.Env)
	log.Info("starting reconciliation scan")

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

	scanCfg := scannerConfig(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CallTimeout*10)
	defer cancel()

	summary, err := scanner.Run(ctx, deps, fxCache, scanCfg)
	if err != nil {
		log.WithError(err).Fatal("scan failed")
	}

	log.WithFields(map[string]any{
		"filesSeen":            summary.FilesSeen,
		"done":                 summary.Done,
		"sinProcesar":          summary.SinProcesar,
		"errored":              summary.Errored,
		"invoicePaymentEvents": len(summary.InvoicePaymentEvents),
		"receiptPaymentEvents": len(summary.ReceiptPaymentEvents),
		"bankMovementResults":  len(summary.BankMovementResults),
		"durationMs":           summary.FinishedAt.Sub(summary.StartedAt).Milliseconds(),
	}).Info("scan complete")
}

func scannerConfig(cfg *config.AppConfig) scanner.Config {
	return scanner.Config{
		Bankmatch:   bankmatch.DefaultConfig(),
		Invoicepay:  invoicepay.Config{MatchDaysBefore: cfg.MatchDaysBefore, MatchDaysAfter: cfg.MatchDaysAfter, UsdArsTolerancePercent: cfg.UsdArsTolerancePercent},
		Receiptpay:  receiptpay.Config{MatchDaysBefore: cfg.MatchDaysBefore, MatchDaysAfter: cfg.MatchDaysAfter},
		Cascade:     reconcile.CascadeConfig{MaxDepth: cfg.MaxCascadeDepth, Timeout: time.Duration(cfg.CascadeTimeoutMs) * time.Millisecond},
		WorkerCount: cfg.ScannerWorkerCount,
	}
}
