package model

import (
	"sort"
	"strings"
	"time"
)

// NotInformed fills optional descriptive fields left blank on the form.
const NotInformed = "Não Informado"

type Quote struct {
	ID                   QuoteID    `json:"id"`
	Requester            string     `json:"responsavelCotacao"`
	Carrier              string     `json:"transportadora"`
	Destination          string     `json:"destino"`
	QuoteNumber          string     `json:"numeroCotacao"`
	Price                float64    `json:"valorFrete"`
	Seller               string     `json:"vendedor"`
	Document             string     `json:"numeroDocumento"`
	DeliveryEstimate     string     `json:"previsaoEntrega"`
	CommunicationChannel string     `json:"canalComunicacao"`
	CollectionCode       string     `json:"codigoColeta"`
	CarrierContact       string     `json:"responsavelTransportadora"`
	QuoteDate            Date       `json:"dataCotacao"`
	Notes                string     `json:"observacoes"`
	DealClosed           bool       `json:"negocioFechado"`
	Timestamp            time.Time  `json:"timestamp"`
	UpdatedAt            *time.Time `json:"updatedAt,omitempty"`
	CreatedBy            string     `json:"createdBy,omitempty"`
	UpdatedBy            string     `json:"updatedBy,omitempty"`
}

// QuoteDraft is the user-editable part of a quote, as posted by the form.
type QuoteDraft struct {
	Requester            string  `json:"responsavelCotacao"`
	Carrier              string  `json:"transportadora"`
	Destination          string  `json:"destino"`
	QuoteNumber          string  `json:"numeroCotacao"`
	Price                float64 `json:"valorFrete"`
	Seller               string  `json:"vendedor"`
	Document             string  `json:"numeroDocumento"`
	DeliveryEstimate     string  `json:"previsaoEntrega"`
	CommunicationChannel string  `json:"canalComunicacao"`
	CollectionCode       string  `json:"codigoColeta"`
	CarrierContact       string  `json:"responsavelTransportadora"`
	QuoteDate            Date    `json:"dataCotacao"`
	Notes                string  `json:"observacoes"`
	DealClosed           bool    `json:"negocioFechado"`
}

// Normalize trims every text field and applies the defaulting rules for
// optional fields. It is the only place those rules live.
func (d QuoteDraft) Normalize() QuoteDraft {
	d.Requester = strings.TrimSpace(d.Requester)
	d.Carrier = strings.TrimSpace(d.Carrier)
	d.Destination = orNotInformed(d.Destination)
	d.QuoteNumber = orNotInformed(d.QuoteNumber)
	d.Seller = orNotInformed(d.Seller)
	d.Document = orNotInformed(d.Document)
	d.DeliveryEstimate = orNotInformed(d.DeliveryEstimate)
	d.CommunicationChannel = orNotInformed(d.CommunicationChannel)
	d.CollectionCode = orNotInformed(d.CollectionCode)
	d.CarrierContact = orNotInformed(d.CarrierContact)
	d.Notes = strings.TrimSpace(d.Notes)
	return d
}

// NewQuote builds a quote from a draft. The draft is normalized first.
func NewQuote(id QuoteID, draft QuoteDraft, timestamp time.Time) Quote {
	q := Quote{ID: id, Timestamp: timestamp}
	return q.Apply(draft)
}

// Apply returns a copy of q whose descriptive fields come from draft. Identity
// and audit fields are kept.
func (q Quote) Apply(draft QuoteDraft) Quote {
	d := draft.Normalize()
	q.Requester = d.Requester
	q.Carrier = d.Carrier
	q.Destination = d.Destination
	q.QuoteNumber = d.QuoteNumber
	q.Price = d.Price
	q.Seller = d.Seller
	q.Document = d.Document
	q.DeliveryEstimate = d.DeliveryEstimate
	q.CommunicationChannel = d.CommunicationChannel
	q.CollectionCode = d.CollectionCode
	q.CarrierContact = d.CarrierContact
	q.QuoteDate = d.QuoteDate
	q.Notes = d.Notes
	q.DealClosed = d.DealClosed
	return q
}

func (q Quote) Draft() QuoteDraft {
	return QuoteDraft{
		Requester:            q.Requester,
		Carrier:              q.Carrier,
		Destination:          q.Destination,
		QuoteNumber:          q.QuoteNumber,
		Price:                q.Price,
		Seller:               q.Seller,
		Document:             q.Document,
		DeliveryEstimate:     q.DeliveryEstimate,
		CommunicationChannel: q.CommunicationChannel,
		CollectionCode:       q.CollectionCode,
		CarrierContact:       q.CarrierContact,
		QuoteDate:            q.QuoteDate,
		Notes:                q.Notes,
		DealClosed:           q.DealClosed,
	}
}

func (d QuoteDraft) Equal(o QuoteDraft) bool {
	a, b := d, o
	a.QuoteDate, b.QuoteDate = Date{}, Date{}
	return a == b && d.QuoteDate.Equal(o.QuoteDate)
}

// Clone returns a copy that shares no pointers with q.
func (q Quote) Clone() Quote {
	if q.UpdatedAt != nil {
		updated := *q.UpdatedAt
		q.UpdatedAt = &updated
	}
	return q
}

// Equal reports whether both quotes carry the same values field by field.
func (q Quote) Equal(o Quote) bool {
	if !q.Draft().Equal(o.Draft()) {
		return false
	}
	if q.ID != o.ID || q.CreatedBy != o.CreatedBy || q.UpdatedBy != o.UpdatedBy {
		return false
	}
	if !q.Timestamp.Equal(o.Timestamp) {
		return false
	}
	switch {
	case q.UpdatedAt == nil && o.UpdatedAt == nil:
		return true
	case q.UpdatedAt == nil || o.UpdatedAt == nil:
		return false
	default:
		return q.UpdatedAt.Equal(*o.UpdatedAt)
	}
}

// SortTime is the instant used for recency ordering: the audit timestamp, or
// the business date for records that never got one.
func (q Quote) SortTime() time.Time {
	if !q.Timestamp.IsZero() {
		return q.Timestamp
	}
	return q.QuoteDate.Time()
}

// SortByRecency orders quotes newest first, in place.
func SortByRecency(quotes []Quote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].SortTime().After(quotes[j].SortTime())
	})
}

func CloneQuotes(quotes []Quote) []Quote {
	if quotes == nil {
		return nil
	}
	dup := make([]Quote, len(quotes))
	for i, q := range quotes {
		dup[i] = q.Clone()
	}
	return dup
}

func orNotInformed(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return NotInformed
	}
	return value
}
