// Package remote provides the default HTTP implementation of the
// per-processor query and perform closures. Processors with bespoke
// transports supply their own closures; this client covers the common
// JSON-over-HTTPS status and operation endpoints.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/akylbek/payment-system/callback-engine/internal/interfaces"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type transactionStatus struct {
	Found    bool   `json:"found"`
	Status   string `json:"status"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type operationResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// QueryFunc adapts the client to the engine's query contract. A 404 is a
// propagation-lag miss, not an error.
func (c *Client) QueryFunc() interfaces.QueryFunc {
	return func(ctx context.Context, transactionRef string) (interfaces.QueryResult, error) {
		status, body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/transactions/%s", transactionRef), nil)
		if err != nil {
			return interfaces.QueryResult{}, err
		}
		if status == http.StatusNotFound {
			return interfaces.QueryResult{}, nil
		}
		if status >= 300 {
			return interfaces.QueryResult{}, fmt.Errorf("query returned %d: %s", status, strings.TrimSpace(string(body)))
		}

		var ts transactionStatus
		if err := json.Unmarshal(body, &ts); err != nil {
			return interfaces.QueryResult{}, fmt.Errorf("decode query response: %w", err)
		}
		if !ts.Found && ts.Status == "" {
			return interfaces.QueryResult{}, nil
		}
		return interfaces.QueryResult{
			Found:       true,
			Status:      ts.Status,
			RawAmount:   ts.Amount,
			RawCurrency: ts.Currency,
		}, nil
	}
}

// PerformFunc adapts the client to the engine's operation contract.
// Business-rule rejections arrive as success=false with the raw message;
// transport failures are errors.
func (c *Client) PerformFunc() interfaces.PerformFunc {
	return func(ctx context.Context, operation, transactionRef string) (interfaces.PerformResult, error) {
		payload := map[string]string{"operation": operation}
		status, body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/transactions/%s/operations", transactionRef), payload)
		if err != nil {
			return interfaces.PerformResult{}, err
		}

		var or operationResponse
		if err := json.Unmarshal(body, &or); err != nil {
			return interfaces.PerformResult{}, fmt.Errorf("decode operation response: %w", err)
		}
		if status >= 300 {
			return interfaces.PerformResult{Success: false, Status: or.Status, RawResponse: or.Message}, nil
		}
		return interfaces.PerformResult{Success: or.Success, Status: or.Status, RawResponse: or.Message}, nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return 0, nil, fmt.Errorf("encode request payload: %w", err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}
