package db

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetRecord is a cached snapshot of an instrument's tradability metadata,
// keyed by uppercased symbol.
type AssetRecord struct {
	Symbol            string
	Name              string
	Exchange          string
	Tradable          bool
	Fractionable      bool
	Marginable        bool
	Shortable         bool
	MinOrderSize      decimal.Decimal
	MinTradeIncrement decimal.Decimal
	PriceIncrement    decimal.Decimal
	UpdatedAt         time.Time
}

// OrderAudit records one submission attempt and its outcome.
type OrderAudit struct {
	ID            string
	Symbol        string
	Side          string
	OrderType     string
	Qty           decimal.Decimal
	LimitPrice    decimal.Decimal
	TimeInForce   string
	ExtendedHours bool
	Status        string // accepted, rejected, failed
	Violations    string // joined rule messages, empty when accepted
	BrokerOrderID string
	CreatedAt     time.Time
}

// Audit status values.
const (
	AuditStatusAccepted = "accepted"
	AuditStatusRejected = "rejected"
	AuditStatusFailed   = "failed"
)

// User represents an operator account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseStoredDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
