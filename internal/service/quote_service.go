package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/freight-quotes/internal/model"
	"github.com/nurpe/freight-quotes/internal/repository"
)

type QuoteRepository interface {
	List(ctx context.Context) ([]model.Quote, error)
	Get(ctx context.Context, id model.QuoteID) (*model.Quote, error)
	Create(ctx context.Context, q model.Quote) (*model.Quote, error)
	Update(ctx context.Context, q model.Quote) (*model.Quote, error)
	Delete(ctx context.Context, id model.QuoteID) error
	Ping(ctx context.Context) error
}

type ReportGenerator interface {
	Generate(report model.QuoteReport) ([]byte, error)
}

type QuoteService struct {
	repo      QuoteRepository
	excel     ReportGenerator
	pdf       ReportGenerator
	authModes []string
	now       func() time.Time
	newID     func() string
}

type ExportInput struct {
	Format    model.ExportFormat
	Filter    model.QuoteFilter
	Principal model.Principal
}

type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

type Health struct {
	Status         string    `json:"status"`
	Database       string    `json:"database"`
	Authentication string    `json:"authentication"`
	Timestamp      time.Time `json:"timestamp"`
}

func (h Health) Healthy() bool {
	return h.Status == "healthy"
}

func NewQuoteService(repo QuoteRepository, excel, pdf ReportGenerator, authModes []string) *QuoteService {
	return &QuoteService{
		repo:      repo,
		excel:     excel,
		pdf:       pdf,
		authModes: authModes,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

func (s *QuoteService) List(ctx context.Context) ([]model.Quote, error) {
	quotes, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	model.SortByRecency(quotes)
	return quotes, nil
}

func (s *QuoteService) Get(ctx context.Context, id model.QuoteID) (*model.Quote, error) {
	id = model.ParseQuoteID(id.String())
	if id.IsZero() {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	quote, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return quote, nil
}

func (s *QuoteService) Create(ctx context.Context, draft model.QuoteDraft, principal model.Principal) (*model.Quote, error) {
	if principal.DisplayName() == "" {
		return nil, ErrPermissionDenied
	}
	draft = draft.Normalize()
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	quote := model.NewQuote(model.QuoteID(s.newID()), draft, s.now())
	quote.CreatedBy = principal.DisplayName()

	saved, err := s.repo.Create(ctx, quote)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Update replaces the editable fields of an existing quote. Identity,
// creation time and creator are never taken from the request.
func (s *QuoteService) Update(ctx context.Context, id model.QuoteID, draft model.QuoteDraft, principal model.Principal) (*model.Quote, error) {
	if principal.DisplayName() == "" {
		return nil, ErrPermissionDenied
	}
	id = model.ParseQuoteID(id.String())
	if id.IsZero() {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	draft = draft.Normalize()
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}

	now := s.now()
	updated := existing.Apply(draft)
	updated.UpdatedAt = &now
	updated.UpdatedBy = principal.DisplayName()

	saved, err := s.repo.Update(ctx, updated)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return saved, nil
}

func (s *QuoteService) Delete(ctx context.Context, id model.QuoteID) error {
	id = model.ParseQuoteID(id.String())
	if id.IsZero() {
		return fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return mapRepoError(s.repo.Delete(ctx, id))
}

func (s *QuoteService) Health(ctx context.Context) Health {
	health := Health{
		Status:         "healthy",
		Database:       "connected",
		Authentication: strings.Join(s.authModes, ",") + " enabled",
		Timestamp:      s.now(),
	}
	if err := s.repo.Ping(ctx); err != nil {
		health.Status = "unhealthy"
		health.Database = "disconnected"
	}
	return health
}

func (s *QuoteService) Export(ctx context.Context, input ExportInput) (*ExportResult, error) {
	var (
		generator   ReportGenerator
		contentType string
	)
	switch input.Format {
	case model.ExportFormatXLSX, "":
		input.Format = model.ExportFormatXLSX
		generator = s.excel
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case model.ExportFormatPDF:
		generator = s.pdf
		contentType = "application/pdf"
	default:
		return nil, fmt.Errorf("%w: unsupported export format %q", ErrInvalidInput, input.Format)
	}
	if generator == nil {
		return nil, fmt.Errorf("%w: export format %q is not available", ErrInvalidInput, input.Format)
	}

	quotes, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	report := model.BuildReport(input.Filter, input.Filter.Apply(quotes), input.Principal.DisplayName(), s.now())
	content, err := generator.Generate(report)
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		FileName:    buildFileName(input.Filter, input.Format),
		ContentType: contentType,
		Content:     content,
	}, nil
}

func validateDraft(draft model.QuoteDraft) error {
	missing := make([]string, 0, 3)
	if draft.Requester == "" {
		missing = append(missing, "responsavelCotacao")
	}
	if draft.Carrier == "" {
		missing = append(missing, "transportadora")
	}
	if draft.QuoteDate.IsZero() {
		missing = append(missing, "dataCotacao")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrInvalidInput, strings.Join(missing, ", "))
	}
	if draft.Price < 0 {
		return fmt.Errorf("%w: valorFrete must not be negative", ErrInvalidInput)
	}
	return nil
}

func mapRepoError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func buildFileName(filter model.QuoteFilter, format model.ExportFormat) string {
	period := "todas"
	if filter.Year != 0 {
		period = fmt.Sprintf("%04d-%02d", filter.Year, int(filter.Month))
	}
	name := "cotacoes-" + period
	if carrier := sanitizeFileName(filter.Carrier); carrier != "" {
		name += "-" + carrier
	}
	return name + "." + string(format)
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range strings.ToLower(input) {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
