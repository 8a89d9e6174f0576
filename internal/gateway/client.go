// Package gateway is the HTTP client for the gateway counterparty's three
// exchange endpoints, modeled on the teacher's internal/daytona client.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dl-graf/indexer/internal/model"
)

// Client POSTs encoded receipt/partial-voucher batches to the gateway and
// decodes the JSON voucher or partial-voucher response.
type Client struct {
	baseURL string
	http    *http.Client
}

// New derives the client's base URL from endpoint by keeping only scheme
// and host (spec.md §4.2) and builds an http.Client with the given
// timeout, the way daytona.NewClient fixes a 30s client timeout.
func New(endpoint string, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse endpoint: %w", err)
	}
	base := (&url.URL{Scheme: parsed.Scheme, Host: parsed.Host}).String()
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	return c.http.Do(req)
}

// CollectReceipts POSTs a receipt-batch payload to /collect-receipts and
// decodes the final voucher response.
func (c *Client) CollectReceipts(ctx context.Context, payload []byte) (model.Voucher, error) {
	return c.postVoucher(ctx, "/collect-receipts", payload)
}

// PartialVoucher POSTs a chunked receipt-batch payload (≤25,000 receipts)
// to /partial-voucher and decodes the partial-voucher response.
func (c *Client) PartialVoucher(ctx context.Context, payload []byte) (model.PartialVoucher, error) {
	resp, err := c.post(ctx, "/partial-voucher", payload)
	if err != nil {
		return model.PartialVoucher{}, fmt.Errorf("gateway: POST /partial-voucher: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.PartialVoucher{}, fmt.Errorf("gateway: POST /partial-voucher: status %d", resp.StatusCode)
	}
	var wire partialVoucherWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return model.PartialVoucher{}, fmt.Errorf("gateway: decode partial voucher: %w", err)
	}
	return wire.toModel()
}

// Voucher POSTs an assembled partial-voucher-batch payload to /voucher and
// decodes the final voucher response.
func (c *Client) Voucher(ctx context.Context, payload []byte) (model.Voucher, error) {
	return c.postVoucher(ctx, "/voucher", payload)
}

func (c *Client) postVoucher(ctx context.Context, path string, payload []byte) (model.Voucher, error) {
	resp, err := c.post(ctx, path, payload)
	if err != nil {
		return model.Voucher{}, fmt.Errorf("gateway: POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return model.Voucher{}, fmt.Errorf("gateway: POST %s: status %d: %s", path, resp.StatusCode, body)
	}
	var wire voucherWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return model.Voucher{}, fmt.Errorf("gateway: decode voucher: %w", err)
	}
	return wire.toModel()
}
