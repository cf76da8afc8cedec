package ledger

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

// HTTPClient is a Client backed by a ledger gateway that signs and
// broadcasts operations on our behalf.
type HTTPClient struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Client  *http.Client
}

type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *HTTPClient) httpClient() *http.Client {
	if c.Client == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		c.Client = &http.Client{Timeout: timeout}
	}
	return c.Client
}

func (c *HTTPClient) Submit(ctx context.Context, op Operation) (*TransactionReceipt, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("ledger: LEDGER_URL is not set")
	}
	body, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/v1/operations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ge gatewayError
		_ = json.Unmarshal(respBody, &ge)
		switch {
		case resp.StatusCode == http.StatusPaymentRequired || ge.Code == "insufficient_funds":
			return nil, fmt.Errorf("%w: %s", ErrInsufficientFunds, ge.Message)
		case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity || ge.Code == "rejected":
			return nil, fmt.Errorf("%w: %s", ErrRejected, ge.Message)
		}
		return nil, fmt.Errorf("ledger error: status %d body: %s", resp.StatusCode, string(respBody))
	}

	var receipt TransactionReceipt
	if err := json.Unmarshal(respBody, &receipt); err != nil {
		return nil, fmt.Errorf("ledger: decode receipt: %w", err)
	}
	return &receipt, nil
}

// Ping reports whether the gateway answers its health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	if c.BaseURL == "" {
		return fmt.Errorf("ledger: LEDGER_URL is not set")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.BaseURL, "/")+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ledger health: status %d", resp.StatusCode)
	}
	return nil
}
