package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type User struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	IsAdmin  bool   `json:"isAdmin"`
}

// Verification is the answer of the central portal for one session token.
type Verification struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
	User    *User  `json:"user,omitempty"`
}

// Client talks to the central portal that issues session tokens.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// VerifySession asks the portal whether token is still valid. A well-formed
// negative answer is returned as a Verification with Valid false, whatever
// the HTTP status; transport failures and unreadable bodies are errors.
func (c *Client) VerifySession(ctx context.Context, token string) (*Verification, error) {
	body, err := json.Marshal(map[string]string{"sessionToken": token})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/verify-session", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var result Verification
	if err := json.Unmarshal(raw, &result); err != nil {
		snippet := raw
		if len(snippet) > 2048 {
			snippet = snippet[:2048]
		}
		return nil, fmt.Errorf("portal status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("portal status %d: %s", resp.StatusCode, result.Message)
	}
	return &result, nil
}
