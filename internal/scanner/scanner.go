package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"adva-reconciliation-engine/internal/apperrors"
	"adva-reconciliation-engine/internal/fxrate"
	"adva-reconciliation-engine/internal/match/bankmatch"
	"adva-reconciliation-engine/internal/match/invoicepay"
	"adva-reconciliation-engine/internal/match/receiptpay"
	"adva-reconciliation-engine/internal/match/reconcile"
	"adva-reconciliation-engine/internal/model"
	"adva-reconciliation-engine/internal/pipeline"
	"adva-reconciliation-engine/internal/workqueue"

	"github.com/google/uuid"
)

// Config bundles the matcher tolerances driving one reconciliation pass.
type Config struct {
	Bankmatch  bankmatch.Config
	Invoicepay invoicepay.Config
	Receiptpay receiptpay.Config
	Cascade    reconcile.CascadeConfig

	// WorkerCount bounds how many files are downloaded/classified/extracted
	// concurrently. Defaults to 1 (sequential) when zero or negative.
	WorkerCount int
}

// Summary reports one intake-and-reconcile run. Id identifies the run for
// later retrieval (cmd/server's GET /admin/scans/{id}/summary).
type Summary struct {
	Id         string
	StartedAt  time.Time
	FinishedAt time.Time

	FilesSeen    int
	Done         int
	SinProcesar  int
	Errored      int
	Outcomes     []pipeline.Outcome

	InvoicePaymentEvents []reconcile.LinkEvent
	ReceiptPaymentEvents []reconcile.LinkEvent
	BankMovementResults  []reconcile.BankMovementOutcome
}

// Run lists every file under deps.RootFolderId not yet processed, drives
// each through the pipeline state machine, then reconciles the ledgers.
func Run(ctx context.Context, deps *pipeline.Deps, fx *fxrate.Cache, cfg Config) (Summary, error) {
	summary := Summary{Id: uuid.NewString(), StartedAt: time.Now()}

	files, err := deps.Docs.List(ctx, deps.RootFolderId)
	if err != nil {
		return summary, fmt.Errorf("listing inbox: %w", err)
	}
	summary.FilesSeen = len(files)

	workerCount := cfg.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}
	pool := workqueue.New(ctx, workerCount)
	pool.Start()
	defer pool.Stop()

	tasks := make([]workqueue.Task, len(files))
	for i, f := range files {
		f := f
		tasks[i] = func(ctx context.Context) (any, error) {
			outcome := pipeline.ProcessFile(ctx, deps, f)
			if outcome.Err != nil {
				return outcome, outcome.Err
			}
			return outcome, nil
		}
	}
	for _, future := range pool.AddAll(tasks) {
		value, _ := future.Wait()
		outcome, ok := value.(pipeline.Outcome)
		if !ok {
			continue
		}
		if apperrors.Is(outcome.Err, apperrors.ErrQuotaExceeded) {
			pool.Clear()
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
		switch outcome.FinalStage {
		case pipeline.StageDone:
			summary.Done++
		case pipeline.StageSinProcesar:
			summary.SinProcesar++
		case pipeline.StageError:
			summary.Errored++
		}
	}

	if err := Reconcile(ctx, deps, fx, cfg, &summary); err != nil {
		return summary, fmt.Errorf("reconciling: %w", err)
	}

	summary.FinishedAt = time.Now()
	return summary, nil
}

// Reconcile reads every ledger sheet back into typed pools and runs the
// three matchers, persisting every link/displacement/bank-match it makes.
func Reconcile(ctx context.Context, deps *pipeline.Deps, fx *fxrate.Cache, cfg Config, summary *Summary) error {
	invoicesReceived, invReceivedIdx, err := readSheet(ctx, deps, deps.Sheets.InvoicesReceived, model.DirFacturaRecibida)
	if err != nil {
		return err
	}
	invoicesEmitidas, invEmitidasIdx, err := readSheet(ctx, deps, deps.Sheets.InvoicesEmitidas, model.DirFacturaEmitida)
	if err != nil {
		return err
	}
	paymentsSent, paySentIdx, err := readPaymentSheet(ctx, deps, deps.Sheets.PaymentsSent, model.DirPagoEnviado)
	if err != nil {
		return err
	}
	paymentsReceived, payReceivedIdx, err := readPaymentSheet(ctx, deps, deps.Sheets.PaymentsReceived, model.DirPagoRecibido)
	if err != nil {
		return err
	}
	receipts, receiptIdx, err := readReceiptSheet(ctx, deps, deps.Sheets.Receipts)
	if err != nil {
		return err
	}

	invPool := reconcile.InvoicePaymentPool{
		Invoices: append(append([]*model.Invoice{}, invoicesReceived...), invoicesEmitidas...),
		Payments: append(append([]*model.Payment{}, paymentsSent...), paymentsReceived...),
	}
	summary.InvoicePaymentEvents = reconcile.ReconcileInvoicePayments(ctx, invPool, fx, cfg.Invoicepay, cfg.Cascade)

	recPool := reconcile.ReceiptPaymentPool{Receipts: receipts, Payments: paymentsSent}
	summary.ReceiptPaymentEvents = reconcile.ReconcileReceiptPayments(ctx, recPool, cfg.Receiptpay, cfg.Cascade)

	for _, inv := range invoicesReceived {
		if err := writeInvoiceMatch(ctx, deps.Tabular, deps.Sheets.InvoicesReceived, invReceivedIdx, inv); err != nil {
			return err
		}
	}
	for _, inv := range invoicesEmitidas {
		if err := writeInvoiceMatch(ctx, deps.Tabular, deps.Sheets.InvoicesEmitidas, invEmitidasIdx, inv); err != nil {
			return err
		}
	}
	for _, p := range paymentsSent {
		if err := writePaymentMatch(ctx, deps.Tabular, deps.Sheets.PaymentsSent, paySentIdx, p); err != nil {
			return err
		}
	}
	for _, p := range paymentsReceived {
		if err := writePaymentMatch(ctx, deps.Tabular, deps.Sheets.PaymentsReceived, payReceivedIdx, p); err != nil {
			return err
		}
	}
	for _, r := range receipts {
		if err := writeReceiptMatch(ctx, deps.Tabular, deps.Sheets.Receipts, receiptIdx, r); err != nil {
			return err
		}
	}

	movements, movIdx, err := readBankMovements(ctx, deps, deps.Sheets.Statements)
	if err != nil {
		return err
	}
	bankPool := bankmatch.Pool{
		InvoicesReceived: invoicesReceived,
		InvoicesEmitidas: invoicesEmitidas,
		PaymentsSent:      paymentsSent,
		PaymentsReceived:  paymentsReceived,
		Receipts:          receipts,
	}
	writer := &movementWriter{ctx: ctx, tab: deps.Tabular, sheetId: deps.Sheets.Statements, idx: movIdx}
	summary.BankMovementResults = reconcile.ReconcileBankMovements(ctx, movements, bankPool, fx, cfg.Bankmatch, writer)

	return nil
}

func readSheet(ctx context.Context, deps *pipeline.Deps, sheetId string, direction model.Direction) ([]*model.Invoice, rowIndex, error) {
	if sheetId == "" {
		return nil, nil, nil
	}
	raw, err := deps.Tabular.GetValues(ctx, sheetId, "")
	if err != nil {
		return nil, nil, err
	}
	idx := buildRowIndex(raw, 1)
	invoices := make([]*model.Invoice, 0, len(raw))
	for _, row := range raw {
		if inv := parseInvoiceRow(row, direction); inv != nil {
			invoices = append(invoices, inv)
		}
	}
	return invoices, idx, nil
}

func readPaymentSheet(ctx context.Context, deps *pipeline.Deps, sheetId string, direction model.Direction) ([]*model.Payment, rowIndex, error) {
	if sheetId == "" {
		return nil, nil, nil
	}
	raw, err := deps.Tabular.GetValues(ctx, sheetId, "")
	if err != nil {
		return nil, nil, err
	}
	idx := buildRowIndex(raw, 1)
	payments := make([]*model.Payment, 0, len(raw))
	for _, row := range raw {
		if p := parsePaymentRow(row, direction); p != nil {
			payments = append(payments, p)
		}
	}
	return payments, idx, nil
}

func readReceiptSheet(ctx context.Context, deps *pipeline.Deps, sheetId string) ([]*model.Receipt, rowIndex, error) {
	if sheetId == "" {
		return nil, nil, nil
	}
	raw, err := deps.Tabular.GetValues(ctx, sheetId, "")
	if err != nil {
		return nil, nil, err
	}
	idx := buildRowIndex(raw, 1)
	receipts := make([]*model.Receipt, 0, len(raw))
	for _, row := range raw {
		if r := parseReceiptRow(row); r != nil {
			receipts = append(receipts, r)
		}
	}
	return receipts, idx, nil
}

func readBankMovements(ctx context.Context, deps *pipeline.Deps, sheetId string) ([]*model.BankMovement, rowIndex, error) {
	if sheetId == "" {
		return nil, nil, nil
	}
	raw, err := deps.Tabular.GetValues(ctx, sheetId, "")
	if err != nil {
		return nil, nil, err
	}
	idx := buildRowIndex(raw, 1)
	movements := make([]*model.BankMovement, 0, len(raw))
	for _, row := range raw {
		if strings.TrimSpace(cell(row, 3)) != "movimiento" {
			continue
		}
		if m := parseBankMovementRow(row); m != nil {
			movements = append(movements, m)
		}
	}
	return movements, idx, nil
}
