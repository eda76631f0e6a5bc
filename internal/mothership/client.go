// Package mothership posts trade decisions to the downstream make_trade service.
package mothership

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tradingapi/internal/trading"
)

type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

// New returns a client for the make_trade endpoint. A nil httpClient gets one
// with the given timeout.
func New(url, apiKey string, timeout time.Duration, httpClient *http.Client) (*Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("mothership: missing make_trade url")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("mothership: missing make_trade api key")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{url: url, apiKey: apiKey, http: httpClient}, nil
}

var _ trading.TradeExecutor = &Client{}

type makeTradeReq struct {
	ID     string             `json:"id"`
	Trades []trading.Decision `json:"trades"`
}

// SubmitTrades posts the decisions. ok is true when the reply carried a
// Positions list, which then replaces the stored positions.
func (c *Client) SubmitTrades(ctx context.Context, tickID string, trades []trading.Decision) ([]trading.Position, bool, error) {
	b, err := json.Marshal(makeTradeReq{ID: tickID, Trades: trades})
	if err != nil {
		return nil, false, fmt.Errorf("make_trade payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return nil, false, fmt.Errorf("make_trade request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("make_trade post: %w", err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))

	if res.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("make_trade failed: http %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, fmt.Errorf("make_trade response unmarshal: %w", err)
	}
	positions, ok := out["Positions"]
	if !ok {
		return nil, false, nil
	}
	return trading.PositionsFromAny(positions), true, nil
}
