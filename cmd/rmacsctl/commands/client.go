package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tiiuae/rmacs/internal/api"
)

// errAPIRequest wraps a non-2xx response from the operator API.
var errAPIRequest = errors.New("rmacs API request failed")

// apiClient is a thin HTTP+JSON client for rmacsd's operator API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, hc *http.Client) *apiClient {
	return &apiClient{baseURL: baseURL, http: hc}
}

func (c *apiClient) Ledger(ctx context.Context) ([]api.LedgerEntry, error) {
	var out []api.LedgerEntry
	if err := c.get(ctx, "/v1/ledger", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *apiClient) Status(ctx context.Context) (api.StatusResponse, error) {
	var out api.StatusResponse
	if err := c.get(ctx, "/v1/status", &out); err != nil {
		return api.StatusResponse{}, err
	}
	return out, nil
}

func (c *apiClient) Broadcast(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/broadcast", nil)
	if err != nil {
		return fmt.Errorf("build broadcast request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: %s", errAPIRequest, "/v1/broadcast", readBody(resp))
	}
	return nil
}

func (c *apiClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: %s", errAPIRequest, path, readBody(resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

func readBody(resp *http.Response) string {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "<unreadable body>"
	}
	return string(b)
}
