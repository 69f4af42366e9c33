package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/funbet/internal/adapters/http/api"
	"github.com/okian/funbet/internal/domain/model"
)

// client talks to the API as a given account.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{http: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do sends body as JSON and decodes a 2xx response into out. Non-2xx
// responses are returned as the status with the decoded error code.
func (c *client) do(ctx context.Context, method, path, as string, admin bool, body, out any) (int, string, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, "", fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.Header.Set(api.HeaderAccountID, as)
	}
	if admin {
		req.Header.Set(api.HeaderAdmin, "true")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var e apiError
		_ = json.Unmarshal(data, &e)
		return resp.StatusCode, e.Code, nil
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, "", fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, "", nil
}

// expect runs do and turns any status other than want into ErrUnexpected.
func (c *client) expect(ctx context.Context, want int, method, path, as string, admin bool, body, out any) error {
	status, code, err := c.do(ctx, method, path, as, admin, body, out)
	if err != nil {
		return err
	}
	if status != want {
		return fmt.Errorf("%w: %s %s returned %d %s", ErrUnexpected, method, path, status, code)
	}
	return nil
}

func (c *client) match(ctx context.Context) (model.Match, error) {
	var doc model.Match
	err := c.expect(ctx, http.StatusOK, http.MethodGet, "/match", "", false, nil, &doc)
	return doc, err
}

func (c *client) propose(ctx context.Context, admin string, next model.Match) (model.Match, error) {
	var doc model.Match
	body := map[string]any{"new": next}
	err := c.expect(ctx, http.StatusOK, http.MethodPost, "/match/transition", admin, true, body, &doc)
	return doc, err
}

func (c *client) balance(ctx context.Context, admin, id string) (int64, error) {
	var a model.Account
	if err := c.expect(ctx, http.StatusOK, http.MethodGet, "/accounts/"+id, admin, true, nil, &a); err != nil {
		return 0, err
	}
	return a.Balance, nil
}
