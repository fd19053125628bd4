package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/walletpulse/walletpulse/internal/logger"
)

// Client talks to the Hyperliquid info API. Every request is a POST with a
// typed body; responses are returned raw so callers can both parse and
// mirror them.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     log,
	}
}

func (c *Client) post(ctx context.Context, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("info request %q: %w", payload["type"], err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("info request %q: status %d", payload["type"], resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response %q: %w", payload["type"], err)
	}
	return nil
}

func (c *Client) UserNonFundingLedgerUpdates(ctx context.Context, user string, startTime, endTime int64) ([]json.RawMessage, error) {
	body := map[string]any{"type": "userNonFundingLedgerUpdates", "user": user, "startTime": startTime}
	if endTime > 0 {
		body["endTime"] = endTime
	}
	var batch []json.RawMessage
	if err := c.post(ctx, body, &batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// UserFills uses userFillsByTime when a start time is given, otherwise the
// recent-fills endpoint.
func (c *Client) UserFills(ctx context.Context, user string, startTime, endTime int64) ([]json.RawMessage, error) {
	var body map[string]any
	if startTime > 0 || endTime > 0 {
		body = map[string]any{"type": "userFillsByTime", "user": user, "startTime": startTime}
		if endTime > 0 {
			body["endTime"] = endTime
		}
	} else {
		body = map[string]any{"type": "userFills", "user": user}
	}
	var batch []json.RawMessage
	if err := c.post(ctx, body, &batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func (c *Client) UserFunding(ctx context.Context, user string, startTime, endTime int64) ([]json.RawMessage, error) {
	body := map[string]any{"type": "userFunding", "user": user, "startTime": startTime}
	if endTime > 0 {
		body["endTime"] = endTime
	}
	var batch []json.RawMessage
	if err := c.post(ctx, body, &batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func (c *Client) UserFees(ctx context.Context, user string) (json.RawMessage, error) {
	var payload json.RawMessage
	if err := c.post(ctx, map[string]any{"type": "userFees", "user": user}, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) Portfolio(ctx context.Context, user string) (json.RawMessage, error) {
	var payload json.RawMessage
	if err := c.post(ctx, map[string]any{"type": "portfolio", "user": user}, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ClearinghouseState returns the wallet's current positions and margin
// summary as one document.
func (c *Client) ClearinghouseState(ctx context.Context, user string) (json.RawMessage, error) {
	var payload json.RawMessage
	if err := c.post(ctx, map[string]any{"type": "clearinghouseState", "user": user}, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) HistoricalOrders(ctx context.Context, user string) ([]json.RawMessage, error) {
	var batch []json.RawMessage
	if err := c.post(ctx, map[string]any{"type": "historicalOrders", "user": user}, &batch); err != nil {
		return nil, err
	}
	return batch, nil
}
