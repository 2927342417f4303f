package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/nurpe/freight-quotes/internal/model"
)

const fontName = "Helvetica"

var (
	quoteHeaders   = []string{"Data", "Responsável", "Transportadora", "Destino", "Nº Cotação", "Valor do Frete", "Previsão", "Fechado"}
	quoteWidths    = []float64{22, 38, 45, 45, 30, 32, 35, 20}
	carrierHeaders = []string{"Transportadora", "Cotações", "Fechadas", "Valor total"}
	carrierWidths  = []float64{110, 35, 35, 50}
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(report model.QuoteReport) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(fontName, "", 8)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("Página %d", pdf.PageNo())), "", 0, "R", false, 0, "")
	})
	pdf.SetFillColor(235, 235, 235)
	pdf.AddPage()

	pdf.SetFont(fontName, "B", 14)
	pdf.CellFormat(0, 10, tr("Relatório de Cotações de Frete"), "", 1, "C", false, 0, "")

	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Período: %s", report.PeriodLabel())), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Gerado por %s em %s", safeValue(report.GeneratedBy), formatDateTime(report.GeneratedAt))), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(fontName, "B", 12)
	pdf.CellFormat(0, 8, tr("Resumo"), "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Cotações: %d   Negócios fechados: %d   Valor total: %s",
		len(report.Quotes), report.ClosedCount, model.FormatCurrency(report.TotalPrice))), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	drawTableRow(pdf, tr, carrierHeaders, carrierWidths, true, 1)
	for _, carrier := range report.Carriers {
		drawTableRow(pdf, tr, []string{
			carrier.Carrier,
			fmt.Sprintf("%d", carrier.QuoteCount),
			fmt.Sprintf("%d", carrier.ClosedCount),
			model.FormatCurrency(carrier.TotalPrice),
		}, carrierWidths, false, 1)
	}
	pdf.Ln(4)

	pdf.SetFont(fontName, "B", 12)
	pdf.CellFormat(0, 8, tr("Cotações"), "", 1, "L", false, 0, "")
	if len(report.Quotes) == 0 {
		pdf.SetFont(fontName, "", 11)
		pdf.CellFormat(0, 6, tr("Nenhuma cotação encontrada para o filtro selecionado."), "", 1, "L", false, 0, "")
	} else {
		drawTableRow(pdf, tr, quoteHeaders, quoteWidths, true, 5)
		for _, q := range report.Quotes {
			drawTableRow(pdf, tr, []string{
				q.QuoteDate.Time().Format("02/01/2006"),
				q.Requester,
				q.Carrier,
				q.Destination,
				q.QuoteNumber,
				model.FormatCurrency(q.Price),
				q.DeliveryEstimate,
				formatBool(q.DealClosed),
			}, quoteWidths, false, 5)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// drawTableRow writes one bordered row. Columns from rightFrom on are right
// aligned; text that does not fit its column is cut with an ellipsis.
func drawTableRow(pdf *gofpdf.Fpdf, tr func(string) string, cols []string, widths []float64, header bool, rightFrom int) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 9)
	for i, col := range cols {
		align := "L"
		if i >= rightFrom && !header {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, fit(pdf, tr(col), widths[i]-2), "1", 0, align, header, 0, "")
	}
	pdf.Ln(-1)
}

func fit(pdf *gofpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	for len(text) > 0 && pdf.GetStringWidth(text+"...") > width {
		text = text[:len(text)-1]
	}
	return text + "..."
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatBool(value bool) string {
	if value {
		return "Sim"
	}
	return "Não"
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006 15:04")
}
