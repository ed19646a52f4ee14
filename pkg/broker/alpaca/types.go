package alpaca

import (
	"time"

	"github.com/shopspring/decimal"

	"broker-gate/pkg/broker"
)

// assetResponse mirrors GET /v2/assets/{symbol}.
type assetResponse struct {
	Symbol            string `json:"symbol"`
	Name              string `json:"name"`
	Exchange          string `json:"exchange"`
	Status            string `json:"status"`
	Tradable          bool   `json:"tradable"`
	Fractionable      bool   `json:"fractionable"`
	Marginable        bool   `json:"marginable"`
	Shortable         bool   `json:"shortable"`
	MinOrderSize      string `json:"min_order_size"`
	MinTradeIncrement string `json:"min_trade_increment"`
	PriceIncrement    string `json:"price_increment"`
}

func (a assetResponse) toAsset() broker.Asset {
	return broker.Asset{
		Symbol:            a.Symbol,
		Name:              a.Name,
		Exchange:          a.Exchange,
		Tradable:          a.Tradable && a.Status == "active",
		Fractionable:      a.Fractionable,
		Marginable:        a.Marginable,
		Shortable:         a.Shortable,
		MinOrderSize:      parseDecimal(a.MinOrderSize),
		MinTradeIncrement: parseDecimal(a.MinTradeIncrement),
		PriceIncrement:    parseDecimal(a.PriceIncrement),
	}
}

// latestQuoteResponse mirrors GET /v2/stocks/{symbol}/quotes/latest.
type latestQuoteResponse struct {
	Symbol string `json:"symbol"`
	Quote  struct {
		BidPrice  float64   `json:"bp"`
		BidSize   int64     `json:"bs"`
		AskPrice  float64   `json:"ap"`
		AskSize   int64     `json:"as"`
		Timestamp time.Time `json:"t"`
	} `json:"quote"`
}

func (r latestQuoteResponse) toQuote() *broker.Quote {
	return &broker.Quote{
		Symbol:    r.Symbol,
		BidPrice:  decimal.NewFromFloat(r.Quote.BidPrice),
		AskPrice:  decimal.NewFromFloat(r.Quote.AskPrice),
		Timestamp: r.Quote.Timestamp,
	}
}

// orderPayload mirrors POST /v2/orders.
type orderPayload struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Qty           string `json:"qty"`
	LimitPrice    string `json:"limit_price,omitempty"`
	TimeInForce   string `json:"time_in_force"`
	ExtendedHours bool   `json:"extended_hours"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

type orderResponse struct {
	ID            string    `json:"id"`
	ClientOrderID string    `json:"client_order_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func (r orderResponse) toResult() *broker.OrderResult {
	return &broker.OrderResult{
		OrderID:   r.ID,
		ClientID:  r.ClientOrderID,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
	}
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
