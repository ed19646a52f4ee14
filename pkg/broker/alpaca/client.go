// Package alpaca implements the broker interfaces against Alpaca's trading
// and market-data REST APIs.
package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"broker-gate/pkg/broker"
)

// Config holds Alpaca credentials and endpoint selection.
type Config struct {
	APIKey    string
	APISecret string
	Paper     bool
	// RequestsPerMinute caps outbound REST calls. Zero uses the default
	// 200/min allowance of a basic Alpaca account.
	RequestsPerMinute int
}

// Client is an Alpaca REST client implementing broker.Gateway.
type Client struct {
	cfg        Config
	tradeURL   string
	dataURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a client pointed at the live or paper environment.
func New(cfg Config) *Client {
	base := "https://api.alpaca.markets"
	if cfg.Paper {
		base = "https://paper-api.alpaca.markets"
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 200
	}
	return &Client{
		cfg:        cfg,
		tradeURL:   base,
		dataURL:    "https://data.alpaca.markets",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm/10+1),
	}
}

// GetAsset fetches tradability metadata for one symbol.
func (c *Client) GetAsset(ctx context.Context, symbol string) (*broker.Asset, error) {
	body, err := c.do(ctx, http.MethodGet, c.tradeURL+"/v2/assets/"+url.PathEscape(symbol), nil, nil)
	if err != nil {
		return nil, err
	}
	var a assetResponse
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, fmt.Errorf("decode asset: %w", err)
	}
	asset := a.toAsset()
	return &asset, nil
}

// ListActiveAssets returns all active US equity assets.
func (c *Client) ListActiveAssets(ctx context.Context) ([]broker.Asset, error) {
	params := url.Values{}
	params.Set("status", "active")
	params.Set("asset_class", "us_equity")

	body, err := c.do(ctx, http.MethodGet, c.tradeURL+"/v2/assets", params, nil)
	if err != nil {
		return nil, err
	}
	var raw []assetResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode assets: %w", err)
	}
	assets := make([]broker.Asset, 0, len(raw))
	for _, a := range raw {
		assets = append(assets, a.toAsset())
	}
	return assets, nil
}

// GetLatestQuote returns the latest best bid/ask for a symbol.
func (c *Client) GetLatestQuote(ctx context.Context, symbol string) (*broker.Quote, error) {
	endpoint := c.dataURL + "/v2/stocks/" + url.PathEscape(symbol) + "/quotes/latest"
	body, err := c.do(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}
	var resp latestQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	return resp.toQuote(), nil
}

// SubmitOrder places an order on the trading API.
func (c *Client) SubmitOrder(ctx context.Context, req broker.OrderRequest) (*broker.OrderResult, error) {
	payload := orderPayload{
		Symbol:        req.Symbol,
		Side:          string(req.Side),
		Type:          string(req.Type),
		Qty:           req.Qty.String(),
		TimeInForce:   string(req.TimeInForce),
		ExtendedHours: req.ExtendedHours,
		ClientOrderID: req.ClientID,
	}
	if req.Type == broker.OrderTypeLimit {
		payload.LimitPrice = req.LimitPrice.String()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.tradeURL+"/v2/orders", nil, raw)
	if err != nil {
		return nil, err
	}
	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	return resp.toResult(), nil
}

// do issues one authenticated request, honoring the rate limiter and
// mapping Alpaca error payloads to Go errors.
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body []byte) ([]byte, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return nil, errors.New("alpaca: API key/secret required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("APCA-API-KEY-ID", c.cfg.APIKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.cfg.APISecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alpaca request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, broker.ErrAssetNotFound
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("alpaca: %s (code %d, http %d)", apiErr.Message, apiErr.Code, resp.StatusCode)
		}
		return nil, fmt.Errorf("alpaca: http %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// SetBaseURLs overrides endpoints, used by tests against httptest servers.
func (c *Client) SetBaseURLs(tradeURL, dataURL string) {
	if tradeURL != "" {
		c.tradeURL = tradeURL
	}
	if dataURL != "" {
		c.dataURL = dataURL
	}
}
