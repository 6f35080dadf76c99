/*
Package filing - canonical folder tree and filename generation

Builds the dated folder hierarchy (<root>/<year>/<class>/<MM - Month>/) and
the six canonical filename templates from spec §6, and sanitizes names the
same way a destination filesystem or drive API would reject raw LLM output:
stripped accents, forbidden characters removed, whitespace collapsed.
*/
package filing

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"adva-reconciliation-engine/internal/dateutil"
	"adva-reconciliation-engine/internal/model"
)

// Class is the second folder-tree level under a year.
type Class string

const (
	ClassCreditos    Class = "creditos"
	ClassDebitos     Class = "debitos"
	ClassBancos      Class = "bancos"
	ClassSinProcesar Class = "sin_procesar"
)

// FolderPath returns the canonical "<year>/<class>/<MM - MonthName>"
// relative folder path for a document dated t.
func FolderPath(t time.Time, class Class) string {
	month := fmt.Sprintf("%02d - %s", int(t.Month()), dateutil.MonthNameEs(t.Month()))
	return fmt.Sprintf("%d/%s/%s", t.Year(), class, month)
}

var (
	forbiddenCharsRe = regexp.MustCompile(`[<>:"|?*]`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

var accentFold = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n", "ü", "u",
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ñ", "N", "Ü", "U",
)

// Sanitize folds accents, strips characters forbidden in filenames,
// replaces "/" with "-", and collapses internal whitespace.
func Sanitize(name string) string {
	name = accentFold.Replace(name)
	name = strings.ReplaceAll(name, "/", "-")
	name = forbiddenCharsRe.ReplaceAllString(name, "")
	name = whitespaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

func withOptionalConcepto(base, concepto string) string {
	if strings.TrimSpace(concepto) == "" {
		return base
	}
	return base + " - " + concepto
}

// InvoiceReceivedFilename builds "YYYY-MM-DD - Factura Recibida - <nro> - <razonSocialEmisor>[ - <concepto>].pdf".
func InvoiceReceivedFilename(fecha time.Time, nroFactura, razonSocialEmisor, concepto string) string {
	base := fmt.Sprintf("%s - Factura Recibida - %s - %s", fecha.Format("2006-01-02"), nroFactura, razonSocialEmisor)
	return Sanitize(withOptionalConcepto(base, concepto)) + ".pdf"
}

// InvoiceIssuedFilename builds "YYYY-MM-DD - Factura Emitida - <nro> - <razonSocialReceptor>[ - <concepto>].pdf".
func InvoiceIssuedFilename(fecha time.Time, nroFactura, razonSocialReceptor, concepto string) string {
	base := fmt.Sprintf("%s - Factura Emitida - %s - %s", fecha.Format("2006-01-02"), nroFactura, razonSocialReceptor)
	return Sanitize(withOptionalConcepto(base, concepto)) + ".pdf"
}

// PaymentSentFilename builds "YYYY-MM-DD - Pago Enviado - <nombreBeneficiario>[ - <concepto>].pdf".
func PaymentSentFilename(fecha time.Time, nombreBeneficiario, concepto string) string {
	base := fmt.Sprintf("%s - Pago Enviado - %s", fecha.Format("2006-01-02"), nombreBeneficiario)
	return Sanitize(withOptionalConcepto(base, concepto)) + ".pdf"
}

// PaymentReceivedFilename builds "YYYY-MM-DD - Pago Recibido - <nombrePagador>[ - <concepto>].pdf".
func PaymentReceivedFilename(fecha time.Time, nombrePagador, concepto string) string {
	base := fmt.Sprintf("%s - Pago Recibido - %s", fecha.Format("2006-01-02"), nombrePagador)
	return Sanitize(withOptionalConcepto(base, concepto)) + ".pdf"
}

// ReceiptFilename builds "YYYY-MM - Recibo de Sueldo - <nombreEmpleado>.pdf".
func ReceiptFilename(fecha time.Time, nombreEmpleado string) string {
	base := fmt.Sprintf("%s - Recibo de Sueldo - %s", fecha.Format("2006-01"), nombreEmpleado)
	return Sanitize(base) + ".pdf"
}

// StatementFilename builds "YYYY-MM - Resumen - <banco> - <numeroCuenta> <moneda>.pdf".
func StatementFilename(fecha time.Time, banco, numeroCuenta string, moneda model.Currency) string {
	base := fmt.Sprintf("%s - Resumen - %s - %s %s", fecha.Format("2006-01"), banco, numeroCuenta, moneda)
	return Sanitize(base) + ".pdf"
}

// Destination is the folder path and canonical filename derived for a
// document. Building one does not touch the document store; callers pass
// it on to DocumentStore.Move.
type Destination struct {
	FolderPath string
	FileName   string
}

// ClassFor maps a document direction to its folder-tree class.
func ClassFor(dir model.Direction) Class {
	switch dir {
	case model.DirFacturaEmitida, model.DirPagoRecibido:
		return ClassCreditos
	case model.DirFacturaRecibida, model.DirPagoEnviado, model.DirRecibo:
		return ClassDebitos
	case model.DirResumenBancario:
		return ClassBancos
	default:
		return ClassSinProcesar
	}
}
