package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/nurpe/freight-quotes/internal/model"
)

const quoteColumns = `
	id,
	requester,
	carrier,
	destination,
	quote_number,
	price,
	seller,
	document,
	delivery_estimate,
	communication_channel,
	collection_code,
	carrier_contact,
	quote_date,
	notes,
	deal_closed,
	timestamp,
	updated_at,
	created_by,
	updated_by
`

// QuoteRepository stores quotes in the cotacoes table of a Postgres database.
type QuoteRepository struct {
	db *gorm.DB
}

func NewQuoteRepository(db *gorm.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

func (r *QuoteRepository) List(ctx context.Context) ([]model.Quote, error) {
	var quotes []model.Quote
	err := r.db.WithContext(ctx).Raw(`
		SELECT` + quoteColumns + `
		FROM cotacoes
		ORDER BY timestamp DESC
	`).Scan(&quotes).Error
	if err != nil {
		return nil, err
	}
	if quotes == nil {
		quotes = []model.Quote{}
	}
	return quotes, nil
}

func (r *QuoteRepository) Get(ctx context.Context, id model.QuoteID) (*model.Quote, error) {
	var quote model.Quote
	err := r.db.WithContext(ctx).Raw(`
		SELECT`+quoteColumns+`
		FROM cotacoes
		WHERE id = ?
		LIMIT 1
	`, id.String()).Scan(&quote).Error
	if err != nil {
		return nil, mapError(err)
	}
	if quote.ID.IsZero() {
		return nil, ErrNotFound
	}
	return &quote, nil
}

func (r *QuoteRepository) Create(ctx context.Context, q model.Quote) (*model.Quote, error) {
	var saved model.Quote
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO cotacoes (`+quoteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING`+quoteColumns,
		q.ID.String(),
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
		q.QuoteDate,
		q.Notes,
		q.DealClosed,
		q.Timestamp,
		q.UpdatedAt,
		q.CreatedBy,
		q.UpdatedBy,
	).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// Update rewrites every mutable column of the quote identified by q.ID.
func (r *QuoteRepository) Update(ctx context.Context, q model.Quote) (*model.Quote, error) {
	var saved model.Quote
	err := r.db.WithContext(ctx).Raw(`
		UPDATE cotacoes
		SET
			requester = ?,
			carrier = ?,
			destination = ?,
			quote_number = ?,
			price = ?,
			seller = ?,
			document = ?,
			delivery_estimate = ?,
			communication_channel = ?,
			collection_code = ?,
			carrier_contact = ?,
			quote_date = ?,
			notes = ?,
			deal_closed = ?,
			updated_at = ?,
			updated_by = ?
		WHERE id = ?
		RETURNING`+quoteColumns,
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
		q.QuoteDate,
		q.Notes,
		q.DealClosed,
		q.UpdatedAt,
		q.UpdatedBy,
		q.ID.String(),
	).Scan(&saved).Error
	if err != nil {
		return nil, mapError(err)
	}
	if saved.ID.IsZero() {
		return nil, ErrNotFound
	}
	return &saved, nil
}

func (r *QuoteRepository) Delete(ctx context.Context, id model.QuoteID) error {
	result := r.db.WithContext(ctx).Exec(`DELETE FROM cotacoes WHERE id = ?`, id.String())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *QuoteRepository) Ping(ctx context.Context) error {
	var one int
	return r.db.WithContext(ctx).Raw(`SELECT 1`).Scan(&one).Error
}

func mapError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
