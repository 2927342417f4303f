package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nurpe/freight-quotes/internal/model"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

var quoteHeaders = []string{"ID", "Data", "Transportadora", "Responsável", "Destino", "Valor", "Fechado"}

func renderQuotes(w io.Writer, quotes []model.Quote) {
	if len(quotes) == 0 {
		fmt.Fprintln(w, "Nenhuma cotação encontrada.")
		return
	}

	rows := make([][]string, 0, len(quotes))
	for _, q := range quotes {
		date := "-"
		if !q.QuoteDate.IsZero() {
			date = q.QuoteDate.Time().Format("02/01/2006")
		}
		closed := "Não"
		if q.DealClosed {
			closed = "Sim"
		}
		rows = append(rows, []string{
			q.ID.String(), date, q.Carrier, q.Requester, q.Destination, model.FormatCurrency(q.Price), closed,
		})
	}

	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(quoteHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if col == 5 {
				return cell.Align(lipgloss.Right)
			}
			return cell
		})
	fmt.Fprintln(w, t.Render())
}

// renderQuote prints one record as label/value rows, skipping empty fields.
func renderQuote(w io.Writer, q model.Quote) {
	closed := "Não"
	if q.DealClosed {
		closed = "Sim"
	}
	date := ""
	if !q.QuoteDate.IsZero() {
		date = q.QuoteDate.Time().Format("02/01/2006")
	}
	fields := [][2]string{
		{"ID", q.ID.String()},
		{"Data", date},
		{"Responsável", q.Requester},
		{"Transportadora", q.Carrier},
		{"Contato", q.CarrierContact},
		{"Destino", q.Destination},
		{"Nº cotação", q.QuoteNumber},
		{"Valor", model.FormatCurrency(q.Price)},
		{"Vendedor", q.Seller},
		{"Documento", q.Document},
		{"Previsão", q.DeliveryEstimate},
		{"Canal", q.CommunicationChannel},
		{"Coleta", q.CollectionCode},
		{"Fechado", closed},
		{"Observações", q.Notes},
		{"Criado por", q.CreatedBy},
		{"Alterado por", q.UpdatedBy},
	}
	if q.UpdatedAt != nil {
		fields = append(fields, [2]string{"Alterado em", q.UpdatedAt.Local().Format("02/01/2006 15:04")})
	}

	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		rows = append(rows, []string{f[0], f[1]})
	}

	label := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	value := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return label
			}
			return value
		})
	fmt.Fprintln(w, t.Render())
}

func renderSummary(w io.Writer, filter model.QuoteFilter, quotes []model.Quote) {
	closed := 0
	total := 0.0
	for _, q := range quotes {
		total += q.Price
		if q.DealClosed {
			closed++
		}
	}
	period := "todos os meses"
	if filter.Year != 0 {
		period = fmt.Sprintf("%s de %d", model.MonthName(filter.Month), filter.Year)
	}
	fmt.Fprintf(w, "%s: %d cotações, %d fechadas, total %s\n",
		colorize(colorBold, period), len(quotes), closed, model.FormatCurrency(total))
}
