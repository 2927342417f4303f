package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nurpe/freight-quotes/internal/model"
)

const (
	summarySheet = "Resumo"
	detailSheet  = "Cotações"
	maxSheetName = 31
)

var detailHeaders = []string{
	"Data",
	"Responsável",
	"Transportadora",
	"Destino",
	"Nº Cotação",
	"Valor do Frete",
	"Vendedor",
	"Nº Documento",
	"Previsão de Entrega",
	"Canal",
	"Código de Coleta",
	"Contato Transportadora",
	"Negócio Fechado",
	"Observações",
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(report model.QuoteReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, summarySheet, report)

	if _, err := file.NewSheet(detailSheet); err != nil {
		return nil, err
	}
	g.writeQuotes(file, detailSheet, 1, report.Quotes)

	usedNames := map[string]struct{}{summarySheet: {}, detailSheet: {}}
	for _, carrier := range report.Carriers {
		sheetName := buildSheetName(carrier.Carrier, usedNames)
		usedNames[sheetName] = struct{}{}

		if _, err := file.NewSheet(sheetName); err != nil {
			return nil, err
		}
		g.writeCarrier(file, sheetName, report, carrier)
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, report model.QuoteReport) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Período")
	set("B1", report.PeriodLabel())
	set("A2", "Gerado por")
	set("B2", report.GeneratedBy)
	set("A3", "Gerado em")
	set("B3", formatDateTime(report.GeneratedAt))
	set("A4", "Total de cotações")
	set("B4", len(report.Quotes))
	set("A5", "Negócios fechados")
	set("B5", report.ClosedCount)
	set("A6", "Valor total")
	set("B6", report.TotalPrice)

	tableRow := 8
	set(fmt.Sprintf("A%d", tableRow), "Transportadora")
	set(fmt.Sprintf("B%d", tableRow), "Cotações")
	set(fmt.Sprintf("C%d", tableRow), "Fechadas")
	set(fmt.Sprintf("D%d", tableRow), "Valor total")

	for i, carrier := range report.Carriers {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), carrier.Carrier)
		set(fmt.Sprintf("B%d", row), carrier.QuoteCount)
		set(fmt.Sprintf("C%d", row), carrier.ClosedCount)
		set(fmt.Sprintf("D%d", row), carrier.TotalPrice)
	}

	_ = file.SetColWidth(sheet, "A", "A", 40)
	_ = file.SetColWidth(sheet, "B", "D", 16)
}

func (g *Generator) writeCarrier(file *excelize.File, sheet string, report model.QuoteReport, carrier model.CarrierSummary) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Transportadora")
	set("B1", carrier.Carrier)
	set("A2", "Período")
	set("B2", report.PeriodLabel())
	set("A3", "Cotações")
	set("B3", carrier.QuoteCount)
	set("A4", "Valor total")
	set("B4", carrier.TotalPrice)

	g.writeQuotes(file, sheet, 6, carrier.Quotes)
}

func (g *Generator) writeQuotes(file *excelize.File, sheet string, tableRow int, quotes []model.Quote) {
	set := func(col, row int, value interface{}) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = file.SetCellValue(sheet, cell, value)
	}

	for i, header := range detailHeaders {
		set(i+1, tableRow, header)
	}

	for i, q := range quotes {
		row := tableRow + 1 + i
		values := []interface{}{
			q.QuoteDate.String(),
			q.Requester,
			q.Carrier,
			q.Destination,
			q.QuoteNumber,
			q.Price,
			q.Seller,
			q.Document,
			q.DeliveryEstimate,
			q.CommunicationChannel,
			q.CollectionCode,
			q.CarrierContact,
			formatBool(q.DealClosed),
			q.Notes,
		}
		for col, value := range values {
			set(col+1, row, value)
		}
	}

	_ = file.SetColWidth(sheet, "A", "A", 12)
	_ = file.SetColWidth(sheet, "B", "E", 22)
	_ = file.SetColWidth(sheet, "F", "F", 14)
	_ = file.SetColWidth(sheet, "G", "L", 20)
	_ = file.SetColWidth(sheet, "M", "M", 16)
	_ = file.SetColWidth(sheet, "N", "N", 40)
}

func buildSheetName(carrier string, used map[string]struct{}) string {
	name := strings.TrimSpace(carrier)
	if name == "" {
		name = model.NotInformed
	}
	base := truncate(sanitizeSheetName(name), maxSheetName)

	candidate := base
	counter := 2
	for {
		if _, exists := used[candidate]; !exists {
			return candidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		candidate = truncate(base, maxSheetName-len(suffix)) + suffix
		counter++
	}
}

func sanitizeSheetName(value string) string {
	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = strings.Trim(strings.TrimSpace(replacer.Replace(value)), "'")
	if value == "" {
		return "Planilha"
	}
	return value
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006 15:04")
}

func formatBool(value bool) string {
	if value {
		return "Sim"
	}
	return "Não"
}
