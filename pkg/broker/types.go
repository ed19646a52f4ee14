// Package broker defines the types and interfaces the gateway uses to talk
// to an upstream brokerage. Concrete clients live in subpackages.
package broker

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType enumerates supported order types.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// TimeInForce controls how long an order stays working.
type TimeInForce string

const (
	TIFDay TimeInForce = "day"
	TIFGTC TimeInForce = "gtc"
	TIFIOC TimeInForce = "ioc"
	TIFFOK TimeInForce = "fok"
)

// OrderRequest is an order as submitted by a caller. Quantity may be
// fractional; LimitPrice is zero for market orders.
type OrderRequest struct {
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Type          OrderType       `json:"type"`
	Qty           decimal.Decimal `json:"qty"`
	LimitPrice    decimal.Decimal `json:"limit_price"`
	TimeInForce   TimeInForce     `json:"time_in_force"`
	ExtendedHours bool            `json:"extended_hours"`
	ClientID      string          `json:"client_id,omitempty"`
}

// OrderResult is the broker's acknowledgement of a submitted order.
type OrderResult struct {
	OrderID   string    `json:"order_id"`
	ClientID  string    `json:"client_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Asset describes an instrument's tradability metadata.
type Asset struct {
	Symbol            string          `json:"symbol"`
	Name              string          `json:"name"`
	Exchange          string          `json:"exchange"`
	Tradable          bool            `json:"tradable"`
	Fractionable      bool            `json:"fractionable"`
	Marginable        bool            `json:"marginable"`
	Shortable         bool            `json:"shortable"`
	MinOrderSize      decimal.Decimal `json:"min_order_size"`
	MinTradeIncrement decimal.Decimal `json:"min_trade_increment"`
	PriceIncrement    decimal.Decimal `json:"price_increment"`
}

// Quote is the latest best bid/ask for a symbol.
type Quote struct {
	Symbol    string          `json:"symbol"`
	BidPrice  decimal.Decimal `json:"bid_price"`
	AskPrice  decimal.Decimal `json:"ask_price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Mid returns the quote midpoint, or zero when either side is missing.
func (q Quote) Mid() decimal.Decimal {
	if q.BidPrice.IsZero() || q.AskPrice.IsZero() {
		return decimal.Zero
	}
	return q.BidPrice.Add(q.AskPrice).Div(decimal.NewFromInt(2))
}
