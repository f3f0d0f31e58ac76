package platform

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

const defaultTimeout = 10 * time.Second

// Identity is the wallet platform's view of an authenticated user, as
// returned by the /me endpoint.
type Identity struct {
	UID           string `json:"uid"`
	Username      string `json:"username"`
	WalletAddress string `json:"wallet_address"`
}

// APIError describes a non-2xx response from the platform API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform api: status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the wallet platform's server API. Payment endpoints are
// authenticated with the application API key; identity lookups use the
// end-user access token obtained by the browser SDK.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewClient builds a platform API client for the given base URL and API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
}

// Me resolves the identity behind an end-user access token. A non-2xx
// response means the token is invalid or expired.
func (c *Client) Me(ctx context.Context, accessToken string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/me", nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build me request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var id Identity
	if err := c.do(req, &id); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// PaymentRecord is the platform's view of a payment, as returned by the
// payment introspection endpoint. Transaction is zero-valued until the
// wallet broadcasts it.
type PaymentRecord struct {
	PaymentID    string            `json:"identifier"`
	AmountMicros int64             `json:"amount_micros"`
	Memo         string            `json:"memo"`
	Metadata     map[string]string `json:"metadata"`
	Transaction  struct {
		TxID     string `json:"txid"`
		Verified bool   `json:"verified"`
	} `json:"transaction"`
}

// Payment fetches the platform's record of a payment. Resumption of an
// incomplete payment cross-checks the client's claims against this record.
func (c *Client) Payment(ctx context.Context, paymentID string) (PaymentRecord, error) {
	url := fmt.Sprintf("%s/payments/%s", c.baseURL, paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PaymentRecord{}, fmt.Errorf("build payment request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)

	var rec PaymentRecord
	if err := c.do(req, &rec); err != nil {
		return PaymentRecord{}, err
	}
	return rec, nil
}

// ApprovePayment acknowledges a pending payment server-side so the wallet
// will let the user sign the transaction.
func (c *Client) ApprovePayment(ctx context.Context, paymentID string) error {
	return c.postPayment(ctx, paymentID, "approve", nil)
}

// CompletePayment confirms a broadcast transaction server-side, finalizing
// the payment against the chain.
func (c *Client) CompletePayment(ctx context.Context, paymentID, txid string) error {
	return c.postPayment(ctx, paymentID, "complete", map[string]string{"txid": txid})
}

func (c *Client) postPayment(ctx context.Context, paymentID, action string, body map[string]string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", action, err)
		}
		reader = bytes.NewReader(payload)
	}

	url := fmt.Sprintf("%s/payments/%s/%s", c.baseURL, paymentID, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("platform request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read platform response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode platform response: %w", err)
		}
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
