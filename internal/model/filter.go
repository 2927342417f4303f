package model

import (
	"fmt"
	"strings"
	"time"
)

type DealStatus string

const (
	DealStatusAny    DealStatus = ""
	DealStatusOpen   DealStatus = "aberto"
	DealStatusClosed DealStatus = "fechado"
)

func ParseDealStatus(raw string) (DealStatus, error) {
	switch DealStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case DealStatusAny:
		return DealStatusAny, nil
	case DealStatusOpen:
		return DealStatusOpen, nil
	case DealStatusClosed:
		return DealStatusClosed, nil
	default:
		return "", fmt.Errorf("invalid status %q", raw)
	}
}

// QuoteFilter selects quotes for one business month plus optional text,
// requester, carrier and deal status criteria. A zero Year disables the
// month criterion.
type QuoteFilter struct {
	Year      int
	Month     time.Month
	Search    string
	Requester string
	Carrier   string
	Status    DealStatus
}

// ParseMonth reads a YYYY-MM value.
func ParseMonth(raw string) (int, time.Month, error) {
	parsed, err := time.Parse("2006-01", strings.TrimSpace(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q", raw)
	}
	return parsed.Year(), parsed.Month(), nil
}

func (f QuoteFilter) Match(q Quote) bool {
	if f.Year != 0 {
		if q.QuoteDate.Year() != f.Year || q.QuoteDate.Month() != f.Month {
			return false
		}
	}
	if f.Requester != "" && q.Requester != f.Requester {
		return false
	}
	if f.Carrier != "" && q.Carrier != f.Carrier {
		return false
	}
	switch f.Status {
	case DealStatusOpen:
		if q.DealClosed {
			return false
		}
	case DealStatusClosed:
		if !q.DealClosed {
			return false
		}
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		return matchesSearch(q, term)
	}
	return true
}

// Apply returns the matching quotes ordered newest first.
func (f QuoteFilter) Apply(quotes []Quote) []Quote {
	result := make([]Quote, 0, len(quotes))
	for _, q := range quotes {
		if f.Match(q) {
			result = append(result, q.Clone())
		}
	}
	SortByRecency(result)
	return result
}

// ShiftMonth moves the month criterion by delta months, wrapping years.
func (f QuoteFilter) ShiftMonth(delta int) QuoteFilter {
	if f.Year == 0 {
		return f
	}
	shifted := time.Date(f.Year, f.Month+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	f.Year = shifted.Year()
	f.Month = shifted.Month()
	return f
}

func matchesSearch(q Quote, term string) bool {
	fields := []string{
		q.Carrier,
		q.QuoteNumber,
		q.Seller,
		q.Document,
		q.CollectionCode,
		q.CarrierContact,
		q.Destination,
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}
