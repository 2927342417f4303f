package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nurpe/freight-quotes/internal/model"
)

// SupabaseRepository stores quotes in a Supabase table through its PostgREST
// endpoint. Rows use the same camelCase keys as the public API.
type SupabaseRepository struct {
	baseURL string
	key     string
	table   string
	http    *http.Client
}

func NewSupabaseRepository(baseURL, key, table string, client *http.Client) *SupabaseRepository {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &SupabaseRepository{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		table:   table,
		http:    client,
	}
}

func (r *SupabaseRepository) List(ctx context.Context) ([]model.Quote, error) {
	values := url.Values{}
	values.Set("select", "*")
	values.Set("order", "timestamp.desc")

	var rows []model.Quote
	if err := r.do(ctx, http.MethodGet, values, nil, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []model.Quote{}
	}
	return rows, nil
}

func (r *SupabaseRepository) Get(ctx context.Context, id model.QuoteID) (*model.Quote, error) {
	values := url.Values{}
	values.Set("select", "*")
	values.Set("id", "eq."+id.String())
	values.Set("limit", "1")

	var rows []model.Quote
	if err := r.do(ctx, http.MethodGet, values, nil, &rows); err != nil {
		return nil, err
	}
	return first(rows)
}

func (r *SupabaseRepository) Create(ctx context.Context, q model.Quote) (*model.Quote, error) {
	var rows []model.Quote
	if err := r.do(ctx, http.MethodPost, nil, q, &rows); err != nil {
		return nil, err
	}
	return first(rows)
}

func (r *SupabaseRepository) Update(ctx context.Context, q model.Quote) (*model.Quote, error) {
	values := url.Values{}
	values.Set("id", "eq."+q.ID.String())

	var rows []model.Quote
	if err := r.do(ctx, http.MethodPatch, values, q, &rows); err != nil {
		return nil, err
	}
	return first(rows)
}

func (r *SupabaseRepository) Delete(ctx context.Context, id model.QuoteID) error {
	values := url.Values{}
	values.Set("id", "eq."+id.String())

	var rows []model.Quote
	if err := r.do(ctx, http.MethodDelete, values, nil, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SupabaseRepository) Ping(ctx context.Context) error {
	values := url.Values{}
	values.Set("select", "id")
	values.Set("limit", "1")

	var rows []json.RawMessage
	return r.do(ctx, http.MethodGet, values, nil, &rows)
}

func (r *SupabaseRepository) do(ctx context.Context, method string, values url.Values, payload any, out any) error {
	urlStr := r.baseURL + "/rest/v1/" + r.table
	if len(values) > 0 {
		urlStr += "?" + values.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", r.key)
	req.Header.Set("Authorization", "Bearer "+r.key)
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("supabase status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func first(rows []model.Quote) (*model.Quote, error) {
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}
