package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nurpe/freight-quotes/internal/model"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// APIError is a non-2xx answer from the quotes service.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Details != "" {
		return fmt.Sprintf("api status %d: %s (%s)", e.Status, msg, e.Details)
	}
	return fmt.Sprintf("api status %d: %s", e.Status, msg)
}

// Is lets callers test for ErrUnauthorized (401 and 403) and ErrNotFound.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// CredentialSource supplies the session token attached to every request.
type CredentialSource interface {
	LoadCredential(ctx context.Context) (string, error)
}

type Client struct {
	baseURL     *url.URL
	http        *http.Client
	credentials CredentialSource
	userAgent   string
}

const (
	defaultAPIURL    = "http://127.0.0.1:3001"
	defaultUserAgent = "quotes-cli/1.0"
	requestTimeout   = 15 * time.Second
	sessionHeader    = "X-Session-Token"
)

func NewClient(apiURL string, credentials CredentialSource) (*Client, error) {
	base, err := parseBaseURL(apiURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:     base,
		http:        &http.Client{Timeout: requestTimeout},
		credentials: credentials,
		userAgent:   defaultUserAgent,
	}, nil
}

func (c *Client) ListQuotes(ctx context.Context) ([]model.Quote, error) {
	var quotes []model.Quote
	if err := c.do(ctx, http.MethodGet, &url.URL{Path: "/api/cotacoes"}, nil, &quotes); err != nil {
		return nil, err
	}
	if quotes == nil {
		quotes = []model.Quote{}
	}
	return quotes, nil
}

func (c *Client) GetQuote(ctx context.Context, id model.QuoteID) (*model.Quote, error) {
	var quote model.Quote
	if err := c.do(ctx, http.MethodGet, quotePath(id), nil, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (c *Client) CreateQuote(ctx context.Context, draft model.QuoteDraft) (*model.Quote, error) {
	var quote model.Quote
	if err := c.do(ctx, http.MethodPost, &url.URL{Path: "/api/cotacoes"}, draft, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (c *Client) UpdateQuote(ctx context.Context, id model.QuoteID, draft model.QuoteDraft) (*model.Quote, error) {
	var quote model.Quote
	if err := c.do(ctx, http.MethodPut, quotePath(id), draft, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (c *Client) DeleteQuote(ctx context.Context, id model.QuoteID) error {
	return c.do(ctx, http.MethodDelete, quotePath(id), nil, nil)
}

// Probe checks that the service answers its health endpoint with 2xx. It is
// a reachability check only; it sends no credential.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.ResolveReference(&url.URL{Path: "/health"}).String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: "health check failed"}
	}
	return nil
}

// Export downloads the filtered collection rendered as format. The returned
// name is the file name suggested by the service.
func (c *Client) Export(ctx context.Context, format model.ExportFormat, filter model.QuoteFilter) (string, []byte, error) {
	values := filterValues(filter)
	values.Set("format", string(format))
	rel := &url.URL{Path: "/api/cotacoes/export", RawQuery: values.Encode()}

	resp, err := c.send(ctx, http.MethodGet, rel, nil)
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read response: %w", err)
	}

	name := "cotacoes." + string(format)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return name, content, nil
}

func (c *Client) do(ctx context.Context, method string, rel *url.URL, payload, dest any) error {
	resp, err := c.send(ctx, method, rel, payload)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send executes the request and turns any non-2xx answer into an *APIError.
// On success the caller owns the response body.
func (c *Client) send(ctx context.Context, method string, rel *url.URL, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(rel).String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.credentials != nil {
		token, err := c.credentials.LoadCredential(ctx)
		if err != nil {
			return nil, fmt.Errorf("load credential: %w", err)
		}
		if token != "" {
			req.Header.Set(sessionHeader, token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer func() { _ = resp.Body.Close() }()

	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	var errBody struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if json.Unmarshal(raw, &errBody) == nil && errBody.Error != "" {
		apiErr.Message = errBody.Error
		apiErr.Details = errBody.Details
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return nil, apiErr
}

func quotePath(id model.QuoteID) *url.URL {
	return &url.URL{Path: "/api/cotacoes/" + id.String()}
}

func filterValues(filter model.QuoteFilter) url.Values {
	values := url.Values{}
	if filter.Year != 0 {
		values.Set("month", fmt.Sprintf("%04d-%02d", filter.Year, int(filter.Month)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		values.Set("search", search)
	}
	if filter.Requester != "" {
		values.Set("requester", filter.Requester)
	}
	if filter.Carrier != "" {
		values.Set("carrier", filter.Carrier)
	}
	if filter.Status != model.DealStatusAny {
		values.Set("status", string(filter.Status))
	}
	return values
}

func parseBaseURL(apiURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiURL)
	if trimmed == "" {
		trimmed = defaultAPIURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", apiURL, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
