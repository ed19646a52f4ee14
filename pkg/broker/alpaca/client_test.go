package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"broker-gate/pkg/broker"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Config{APIKey: "key", APISecret: "secret", Paper: true})
	c.SetBaseURLs(srv.URL, srv.URL)
	return c
}

func TestGetAsset(t *testing.T) {
	var gotKey, gotSecret string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("APCA-API-KEY-ID")
		gotSecret = r.Header.Get("APCA-API-SECRET-KEY")
		if r.URL.Path != "/v2/assets/AAPL" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"symbol": "AAPL", "name": "Apple Inc.", "exchange": "NASDAQ",
			"status": "active", "tradable": true, "fractionable": true,
			"min_order_size": "1", "min_trade_increment": "0.001", "price_increment": "0.01",
		})
	}))

	asset, err := c.GetAsset(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if gotKey != "key" || gotSecret != "secret" {
		t.Errorf("auth headers = (%q, %q)", gotKey, gotSecret)
	}
	if !asset.Tradable || !asset.Fractionable {
		t.Errorf("asset = %+v", asset)
	}
	if !asset.MinTradeIncrement.Equal(decimal.RequireFromString("0.001")) {
		t.Errorf("min trade increment = %s", asset.MinTradeIncrement)
	}
}

func TestGetAssetInactiveStatusNotTradable(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"symbol": "GONE", "status": "inactive", "tradable": true,
		})
	}))

	asset, err := c.GetAsset(context.Background(), "GONE")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if asset.Tradable {
		t.Error("inactive asset must not be tradable")
	}
}

func TestGetAssetNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"code": 40410000, "message": "asset not found"})
	}))

	_, err := c.GetAsset(context.Background(), "NOPE")
	if !errors.Is(err, broker.ErrAssetNotFound) {
		t.Errorf("err = %v, want ErrAssetNotFound", err)
	}
}

func TestListActiveAssets(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("status") != "active" || q.Get("asset_class") != "us_equity" {
			t.Errorf("query = %v", q)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"symbol": "AAPL", "status": "active", "tradable": true},
			{"symbol": "MSFT", "status": "active", "tradable": true},
		})
	}))

	assets, err := c.ListActiveAssets(context.Background())
	if err != nil {
		t.Fatalf("ListActiveAssets: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("got %d assets", len(assets))
	}
}

func TestGetLatestQuote(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/stocks/AAPL/quotes/latest" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"symbol": "AAPL",
			"quote":  map[string]any{"bp": 189.98, "ap": 190.02, "bs": 3, "as": 2, "t": "2026-03-02T15:04:05Z"},
		})
	}))

	q, err := c.GetLatestQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetLatestQuote: %v", err)
	}
	if !q.Mid().Equal(decimal.NewFromFloat(190.00)) {
		t.Errorf("mid = %s, want 190", q.Mid())
	}
}

func TestSubmitOrder(t *testing.T) {
	var got orderPayload
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/orders" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": "ord-1", "client_order_id": got.ClientOrderID, "status": "accepted",
		})
	}))

	res, err := c.SubmitOrder(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.SideBuy, Type: broker.OrderTypeLimit,
		Qty: decimal.RequireFromString("1.5"), LimitPrice: decimal.RequireFromString("190.50"),
		TimeInForce: broker.TIFDay, ClientID: "client-1",
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if res.OrderID != "ord-1" || res.ClientID != "client-1" {
		t.Errorf("result = %+v", res)
	}
	if got.Qty != "1.5" || got.LimitPrice != "190.5" {
		t.Errorf("payload = %+v", got)
	}
	if got.TimeInForce != "day" {
		t.Errorf("time in force = %q", got.TimeInForce)
	}
}

func TestSubmitOrderMarketOmitsLimitPrice(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode: %v", err)
		}
		if _, ok := raw["limit_price"]; ok {
			t.Error("market order payload contains limit_price")
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "ord-2", "status": "accepted"})
	}))

	if _, err := c.SubmitOrder(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.SideBuy, Type: broker.OrderTypeMarket,
		Qty: decimal.NewFromInt(1), TimeInForce: broker.TIFDay,
	}); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
}

func TestAPIErrorMapping(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{"code": 40310000, "message": "insufficient buying power"})
	}))

	_, err := c.SubmitOrder(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.SideBuy, Type: broker.OrderTypeMarket,
		Qty: decimal.NewFromInt(1), TimeInForce: broker.TIFDay,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if want := "insufficient buying power"; !strings.Contains(err.Error(), want) {
		t.Errorf("err = %q, want it to contain %q", err.Error(), want)
	}
}

func TestMissingCredentials(t *testing.T) {
	c := New(Config{Paper: true})
	if _, err := c.GetAsset(context.Background(), "AAPL"); err == nil {
		t.Error("expected error without credentials")
	}
}
