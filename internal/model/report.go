package model

import (
	"sort"
	"time"
)

type ExportFormat string

const (
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatPDF  ExportFormat = "pdf"
)

// CarrierSummary aggregates the quotes of one carrier inside a report.
type CarrierSummary struct {
	Carrier     string
	QuoteCount  int
	ClosedCount int
	TotalPrice  float64
	Quotes      []Quote
}

type QuoteReport struct {
	Filter      QuoteFilter
	GeneratedAt time.Time
	GeneratedBy string
	Quotes      []Quote
	Carriers    []CarrierSummary
	TotalPrice  float64
	ClosedCount int
}

// BuildReport groups already filtered quotes by carrier. Carriers are sorted
// by name; quotes keep their input order.
func BuildReport(filter QuoteFilter, quotes []Quote, generatedBy string, now time.Time) QuoteReport {
	report := QuoteReport{
		Filter:      filter,
		GeneratedAt: now,
		GeneratedBy: generatedBy,
		Quotes:      quotes,
	}

	index := make(map[string]int)
	for _, q := range quotes {
		pos, ok := index[q.Carrier]
		if !ok {
			report.Carriers = append(report.Carriers, CarrierSummary{Carrier: q.Carrier})
			pos = len(report.Carriers) - 1
			index[q.Carrier] = pos
		}
		summary := &report.Carriers[pos]
		summary.QuoteCount++
		summary.TotalPrice += q.Price
		summary.Quotes = append(summary.Quotes, q)
		report.TotalPrice += q.Price
		if q.DealClosed {
			summary.ClosedCount++
			report.ClosedCount++
		}
	}

	sort.SliceStable(report.Carriers, func(i, j int) bool {
		return report.Carriers[i].Carrier < report.Carriers[j].Carrier
	})
	return report
}

// PeriodLabel renders the month criterion as MM/YYYY, or "Todos" when the
// report spans every month.
func (r QuoteReport) PeriodLabel() string {
	if r.Filter.Year == 0 {
		return "Todos"
	}
	return time.Date(r.Filter.Year, r.Filter.Month, 1, 0, 0, 0, 0, time.UTC).Format("01/2006")
}
