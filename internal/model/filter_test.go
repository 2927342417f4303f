package model

import (
	"testing"
	"time"
)

func TestQuoteFilter_Match(t *testing.T) {
	q := Quote{
		ID:          "1",
		Requester:   "Ana",
		Carrier:     "Acme Transportes",
		Destination: "Recife",
		QuoteNumber: "Q-77",
		QuoteDate:   NewDate(2026, 10, 5),
		DealClosed:  true,
	}

	tests := []struct {
		name   string
		filter QuoteFilter
		want   bool
	}{
		{"empty filter", QuoteFilter{}, true},
		{"same month", QuoteFilter{Year: 2026, Month: time.October}, true},
		{"other month", QuoteFilter{Year: 2026, Month: time.September}, false},
		{"search carrier case insensitive", QuoteFilter{Search: "acme"}, true},
		{"search destination", QuoteFilter{Search: "recife"}, true},
		{"search miss", QuoteFilter{Search: "zzz"}, false},
		{"requester match", QuoteFilter{Requester: "Ana"}, true},
		{"requester miss", QuoteFilter{Requester: "Bruno"}, false},
		{"closed", QuoteFilter{Status: DealStatusClosed}, true},
		{"open", QuoteFilter{Status: DealStatusOpen}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(q); got != tt.want {
				t.Fatalf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuoteFilter_ShiftMonthWrapsYears(t *testing.T) {
	f := QuoteFilter{Year: 2026, Month: time.January}
	prev := f.ShiftMonth(-1)
	if prev.Year != 2025 || prev.Month != time.December {
		t.Fatalf("ShiftMonth(-1) = %d-%d, want 2025-12", prev.Year, prev.Month)
	}
	next := QuoteFilter{Year: 2026, Month: time.December}.ShiftMonth(1)
	if next.Year != 2027 || next.Month != time.January {
		t.Fatalf("ShiftMonth(1) = %d-%d, want 2027-01", next.Year, next.Month)
	}
}

func TestParseDealStatus(t *testing.T) {
	if s, err := ParseDealStatus("Fechado"); err != nil || s != DealStatusClosed {
		t.Fatalf("ParseDealStatus(Fechado) = %q, %v", s, err)
	}
	if _, err := ParseDealStatus("pending"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestBuildReport(t *testing.T) {
	quotes := []Quote{
		{ID: "1", Carrier: "Beta", Price: 100, DealClosed: true},
		{ID: "2", Carrier: "Alfa", Price: 50},
		{ID: "3", Carrier: "Beta", Price: 25.5},
	}
	report := BuildReport(QuoteFilter{Year: 2024, Month: time.March}, quotes, "Ana", time.Now())

	if len(report.Carriers) != 2 {
		t.Fatalf("carriers = %d, want 2", len(report.Carriers))
	}
	if report.Carriers[0].Carrier != "Alfa" || report.Carriers[1].Carrier != "Beta" {
		t.Fatalf("carriers not sorted: %+v", report.Carriers)
	}
	beta := report.Carriers[1]
	if beta.QuoteCount != 2 || beta.ClosedCount != 1 || beta.TotalPrice != 125.5 {
		t.Fatalf("beta summary = %+v", beta)
	}
	if report.TotalPrice != 175.5 || report.ClosedCount != 1 {
		t.Fatalf("totals = %v/%d", report.TotalPrice, report.ClosedCount)
	}
	if report.PeriodLabel() != "03/2024" {
		t.Fatalf("PeriodLabel = %q", report.PeriodLabel())
	}
	if (QuoteReport{}).PeriodLabel() != "Todos" {
		t.Fatal("zero filter should label as Todos")
	}
}
