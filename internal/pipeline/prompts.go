package pipeline

// DefaultPrompts returns the vision-LLM instructions for each pipeline
// stage. Wording lives here rather than in cmd/scanner so it ships with
// the package that defines the JSON shape each prompt must produce.
func DefaultPrompts() Prompts {
	return Prompts{
		Classify: classifyPrompt,
		Extract: map[string]string{
			"invoice":   invoicePrompt,
			"payment":   paymentPrompt,
			"receipt":   receiptPrompt,
			"statement": statementPrompt,
		},
	}
}

const classifyPrompt = `Sos un clasificador de comprobantes contables argentinos para la
asociacion civil ADVA. Mira el documento adjunto y devolve UNICAMENTE un
objeto JSON (sin texto adicional, sin markdown) con esta forma:

{"documentType": "invoice|payment|receipt|statement", "confidence": 0.0,
 "indicators": ["..."]}

- "invoice": factura A/B/C/E o nota de credito/debito (emitida o recibida).
- "payment": comprobante de transferencia bancaria o pago.
- "receipt": recibo de sueldo o liquidacion final.
- "statement": resumen de cuenta bancaria con uno o mas movimientos.
"indicators" lista frases del documento que sustentan la clasificacion.`

const invoicePrompt = `Extrae los datos de esta factura argentina y devolve UNICAMENTE un
objeto JSON (sin texto adicional) con esta forma exacta:

{"type":"A|B|C|E|NC|ND","number":"0001-00000001","fechaEmision":"DD/MM/YYYY",
 "nombreEmisor":"...","nombreReceptor":"...","cuits":["20-12345678-9","30-71234567-1"],
 "importeNeto":"1000,00","importeIva":"210,00","importeTotal":"1210,00",
 "moneda":"ARS","concepto":"..."}

cuits debe incluir todos los CUIT/CUIL visibles en el documento, en el
orden en que aparecen. Usa el formato numerico argentino (coma decimal,
punto de miles) para los importes.`

const paymentPrompt = `Extrae los datos de este comprobante de pago o transferencia bancaria
argentino y devolve UNICAMENTE un objeto JSON (sin texto adicional) con
esta forma exacta:

{"banco":"...","fechaPago":"DD/MM/YYYY","importePagado":"1210,00",
 "moneda":"ARS","referencia":"...","cuitPagador":"30-71234567-1",
 "nombrePagador":"...","cuitBeneficiario":"20-12345678-9",
 "nombreBeneficiario":"...","concepto":"..."}

Identifica claramente quien paga y quien recibe el pago.`

const receiptPrompt = `Extrae los datos de este recibo de sueldo o liquidacion final
argentino y devolve UNICAMENTE un objeto JSON (sin texto adicional) con
esta forma exacta:

{"type":"sueldo|liquidacion_final","nombreEmpleado":"...","cuilEmpleado":"20-12345678-9",
 "legajo":"...","cuitEmpleador":"30-70907678-3","periodoAbonado":"MM/YYYY",
 "fechaPago":"DD/MM/YYYY","subtotalRemuneraciones":"...","subtotalDescuentos":"...",
 "totalNeto":"...","tareaDesempenada":"..."}`

const statementPrompt = `Extrae los datos de este resumen de cuenta bancaria argentino y
devolve UNICAMENTE un objeto JSON (sin texto adicional) con esta forma
exacta:

{"banco":"...","numeroCuenta":"...","fechaDesde":"DD/MM/YYYY","fechaHasta":"DD/MM/YYYY",
 "saldoInicial":"...","saldoFinal":"...","moneda":"ARS",
 "movimientos":[{"fecha":"DD/MM/YYYY","fechaValor":"DD/MM/YYYY","concepto":"...",
 "codigo":"...","oficina":"...","credito":"...","debito":"...","detalle":"..."}]}

Lista TODOS los movimientos del periodo, en el orden en que aparecen en
el resumen. Cada movimiento tiene credito O debito, nunca ambos.`
