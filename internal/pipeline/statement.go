package pipeline

import (
	"context"
	"strings"
	"time"

	"adva-reconciliation-engine/internal/apperrors"
	"adva-reconciliation-engine/internal/dateutil"
	"adva-reconciliation-engine/internal/filing"
	"adva-reconciliation-engine/internal/model"
	"adva-reconciliation-engine/internal/parser"
	"adva-reconciliation-engine/internal/store"
	"adva-reconciliation-engine/internal/validators"
)

// rawMovement is one bank-movement row inside a statement's LLM reply.
type rawMovement struct {
	Fecha      string `json:"fecha"`
	FechaValor string `json:"fechaValor"`
	Concepto   string `json:"concepto"`
	Codigo     string `json:"codigo"`
	Oficina    string `json:"oficina"`
	Credito    string `json:"credito"`
	Debito     string `json:"debito"`
	Detalle    string `json:"detalle"`
}

type rawStatement struct {
	Banco        string        `json:"banco"`
	NumeroCuenta string        `json:"numeroCuenta"`
	FechaDesde   string        `json:"fechaDesde"`
	FechaHasta   string        `json:"fechaHasta"`
	SaldoInicial string        `json:"saldoInicial"`
	SaldoFinal   string        `json:"saldoFinal"`
	Moneda       string        `json:"moneda"`
	Movimientos  []rawMovement `json:"movimientos"`
}

// processStatement is the dedicated EXTRACTING/PERSISTING/FILING path for
// resumen_bancario documents: a statement header plus N bank-movement rows
// fan out to multiple appended rows, which doesn't fit the single-row
// extracted interface used by invoice/payment/receipt.
func processStatement(ctx context.Context, deps *Deps, docBytes []byte, info store.FileInfo, outcome Outcome) Outcome {
	outcome.Direction = model.DirResumenBancario
	outcome.DocumentType = "statement"

	prompt, ok := deps.Prompts.Extract["statement"]
	if !ok {
		return sinProcesar(ctx, deps, info, outcome, apperrors.ErrUnrecognized.WithMessage("no extraction prompt for statement"))
	}
	reply, err := deps.Gateway.AnalyzeDocument(ctx, docBytes, info.MimeType, prompt, deps.MaxRetries)
	if err != nil {
		return sinProcesar(ctx, deps, info, outcome, err)
	}

	var raw rawStatement
	if err := parser.Decode(reply, &raw); err != nil {
		return sinProcesar(ctx, deps, info, outcome, err)
	}

	fechaDesde, desdeErr := dateutil.ParseDate(raw.FechaDesde)
	fechaHasta, hastaErr := dateutil.ParseDate(raw.FechaHasta)
	if desdeErr != nil || hastaErr != nil {
		// Dates cannot be produced: no row appended, file keeps its
		// original name (sinProcesar already moves by info.Name).
		return sinProcesar(ctx, deps, info, outcome, apperrors.ErrPermanentExtract.WithMessage("statement missing fechaDesde/fechaHasta"))
	}

	moneda := model.Currency(strings.ToUpper(strings.TrimSpace(raw.Moneda)))
	if !moneda.Valid() {
		moneda = model.ARS
	}
	saldoInicial, _ := validators.ParseAmount(raw.SaldoInicial)
	saldoFinal, _ := validators.ParseAmount(raw.SaldoFinal)

	stmt := &model.Statement{
		DocumentMeta: model.DocumentMeta{
			FileId:      model.FileId(info.Id),
			FileName:    info.Name,
			ProcessedAt: time.Now(),
			Confidence:  1.0,
		},
		Banco:               raw.Banco,
		NumeroCuenta:        raw.NumeroCuenta,
		FechaDesde:          fechaDesde,
		FechaHasta:          fechaHasta,
		SaldoInicial:        saldoInicial,
		SaldoFinal:          saldoFinal,
		Moneda:              moneda,
		CantidadMovimientos: len(raw.Movimientos),
	}

	movements := make([]*model.BankMovement, 0, len(raw.Movimientos))
	rows := make([][]any, 0, len(raw.Movimientos)+1)
	rows = append(rows, statementHeaderRow(stmt))

	for _, rm := range raw.Movimientos {
		fecha, fechaErr := dateutil.ParseDate(rm.Fecha)
		if fechaErr != nil {
			continue
		}
		fechaValor, _ := dateutil.ParseDate(rm.FechaValor)

		mov := &model.BankMovement{
			DocumentMeta: model.DocumentMeta{FileId: model.FileId(info.Id), FileName: info.Name, ProcessedAt: time.Now()},
			Fecha:        fecha,
			FechaValor:   fechaValor,
			Concepto:     rm.Concepto,
			Codigo:       rm.Codigo,
			Oficina:      rm.Oficina,
			Detalle:      rm.Detalle,
		}
		if credito, err := validators.ParseAmount(rm.Credito); err == nil && strings.TrimSpace(rm.Credito) != "" {
			mov.Credito = &credito
		} else if debito, err := validators.ParseAmount(rm.Debito); err == nil && strings.TrimSpace(rm.Debito) != "" {
			mov.Debito = &debito
		} else {
			continue
		}

		movements = append(movements, mov)
		rows = append(rows, bankMovementRow(mov))
	}

	// PERSISTING
	outcome.FinalStage = StagePersist
	sheetId := deps.Sheets.Statements
	if sheetId == "" {
		return sinProcesar(ctx, deps, info, outcome, apperrors.ErrUnrecognized)
	}
	lock := deps.State.SheetLock(sheetId)
	lock.Lock()
	persistErr := func() error {
		defer lock.Unlock()
		already, err := deps.State.IsProcessed(ctx, info.Id)
		if err != nil {
			return err
		}
		if already {
			return nil
		}
		if err := deps.Tabular.AppendRows(ctx, sheetId, rows); err != nil {
			return apperrors.Wrap(err, apperrors.ErrStorage)
		}
		return deps.State.MarkProcessed(ctx, info.Id, sheetId)
	}()
	if persistErr != nil {
		return errOutcome(outcome, StagePersist, persistErr)
	}

	// FILING
	outcome.FinalStage = StageFile
	dest := filing.Destination{
		FolderPath: filing.FolderPath(fechaDesde, filing.ClassFor(model.DirResumenBancario)),
		FileName:   filing.StatementFilename(fechaDesde, stmt.Banco, stmt.NumeroCuenta, stmt.Moneda),
	}
	if err := fileInto(ctx, deps, info, dest); err != nil {
		return errOutcome(outcome, StageFile, err)
	}

	outcome.FinalStage = StageDone
	return outcome
}

func statementHeaderRow(s *model.Statement) []any {
	return []any{
		s.FechaDesde.Format("2006-01-02"), string(s.FileId), s.FileName, "header",
		s.Banco, s.NumeroCuenta, s.FechaHasta.Format("2006-01-02"),
		s.SaldoInicial.Float(), s.SaldoFinal.Float(), string(s.Moneda),
		s.CantidadMovimientos, s.ProcessedAt.Format(time.RFC3339),
	}
}

// bankMovementRow follows the BankMovement field order from the entity
// contract: fecha, fechaValor, concepto, codigo, oficina, credito/debito,
// detalle, matchedFileId, with fileId/fileName/row-kind prefixed.
func bankMovementRow(m *model.BankMovement) []any {
	var credito, debito any
	if m.Credito != nil {
		credito = m.Credito.Float()
	}
	if m.Debito != nil {
		debito = m.Debito.Float()
	}
	return []any{
		m.Fecha.Format("2006-01-02"), string(m.FileId), m.FileName, "movimiento",
		m.FechaValor.Format("2006-01-02"), m.Concepto, m.Codigo, m.Oficina,
		credito, debito, m.Detalle, string(m.MatchedFileId),
	}
}
