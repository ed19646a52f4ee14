// Package db provides the sqlite persistence layer: the asset metadata
// cache, the order audit trail, and operator accounts.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrSymbolRequired = errors.New("symbol is required")
)

// Queries wraps all SQL against the gateway schema.
type Queries struct {
	db *sql.DB
}

// Queries returns the query layer for this database.
func (d *Database) Queries() *Queries {
	return &Queries{db: d.DB}
}

// ----------------------------------------
// Asset cache
// ----------------------------------------

// UpsertAsset writes one asset row. The write is idempotent per symbol, so
// concurrent refreshes for the same symbol are last-writer-wins and benign.
func (q *Queries) UpsertAsset(ctx context.Context, a AssetRecord) error {
	symbol := strings.ToUpper(strings.TrimSpace(a.Symbol))
	if symbol == "" {
		return ErrSymbolRequired
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO assets (symbol, name, exchange, tradable, fractionable, marginable, shortable,
		                    min_order_size, min_trade_increment, price_increment, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name,
			exchange = excluded.exchange,
			tradable = excluded.tradable,
			fractionable = excluded.fractionable,
			marginable = excluded.marginable,
			shortable = excluded.shortable,
			min_order_size = excluded.min_order_size,
			min_trade_increment = excluded.min_trade_increment,
			price_increment = excluded.price_increment,
			updated_at = CURRENT_TIMESTAMP
	`, symbol, a.Name, a.Exchange,
		boolToInt(a.Tradable), boolToInt(a.Fractionable), boolToInt(a.Marginable), boolToInt(a.Shortable),
		a.MinOrderSize.String(), a.MinTradeIncrement.String(), a.PriceIncrement.String())
	if err != nil {
		return fmt.Errorf("upsert asset %s: %w", symbol, err)
	}
	return nil
}

// DeleteAsset removes a cached row, for symbols the upstream no longer
// knows. Deleting a missing row is not an error.
func (q *Queries) DeleteAsset(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return ErrSymbolRequired
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM assets WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("delete asset %s: %w", symbol, err)
	}
	return nil
}

// GetAsset returns the cached row for a symbol, or ErrNotFound.
func (q *Queries) GetAsset(ctx context.Context, symbol string) (*AssetRecord, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrSymbolRequired
	}

	row := q.db.QueryRowContext(ctx, `
		SELECT symbol, name, exchange, tradable, fractionable, marginable, shortable,
		       min_order_size, min_trade_increment, price_increment, updated_at
		FROM assets
		WHERE symbol = ?
	`, symbol)

	rec, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", symbol, err)
	}
	return rec, nil
}

// SearchAssets matches tradable assets whose symbol or name contains the
// query. Symbol-prefix matches sort before the rest.
func (q *Queries) SearchAssets(ctx context.Context, query string, limit int) ([]AssetRecord, error) {
	query = strings.ToUpper(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT symbol, name, exchange, tradable, fractionable, marginable, shortable,
		       min_order_size, min_trade_increment, price_increment, updated_at
		FROM assets
		WHERE tradable = 1 AND (symbol LIKE ? OR UPPER(name) LIKE ?)
		ORDER BY CASE WHEN symbol LIKE ? THEN 0 ELSE 1 END, symbol
		LIMIT ?
	`, "%"+query+"%", "%"+query+"%", query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search assets: %w", err)
	}
	defer rows.Close()

	var out []AssetRecord
	for rows.Next() {
		rec, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*AssetRecord, error) {
	var (
		rec                                 AssetRecord
		tradable, fractionable, marginable  int
		shortable                           int
		minOrderSize, minTradeInc, priceInc string
	)
	if err := row.Scan(&rec.Symbol, &rec.Name, &rec.Exchange,
		&tradable, &fractionable, &marginable, &shortable,
		&minOrderSize, &minTradeInc, &priceInc, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Tradable = tradable == 1
	rec.Fractionable = fractionable == 1
	rec.Marginable = marginable == 1
	rec.Shortable = shortable == 1
	rec.MinOrderSize = parseStoredDecimal(minOrderSize)
	rec.MinTradeIncrement = parseStoredDecimal(minTradeInc)
	rec.PriceIncrement = parseStoredDecimal(priceInc)
	return &rec, nil
}

// ----------------------------------------
// Order audits
// ----------------------------------------

// CreateOrderAudit inserts one audit row.
func (q *Queries) CreateOrderAudit(ctx context.Context, a OrderAudit) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO order_audits (id, symbol, side, order_type, qty, limit_price,
		                          time_in_force, extended_hours, status, violations, broker_order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, strings.ToUpper(a.Symbol), a.Side, a.OrderType,
		a.Qty.String(), a.LimitPrice.String(), a.TimeInForce, boolToInt(a.ExtendedHours),
		a.Status, a.Violations, a.BrokerOrderID)
	if err != nil {
		return fmt.Errorf("create order audit: %w", err)
	}
	return nil
}

// ListOrderAudits returns recent audit rows, newest first.
func (q *Queries) ListOrderAudits(ctx context.Context, limit int) ([]OrderAudit, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, symbol, side, order_type, qty, limit_price, time_in_force,
		       extended_hours, status, violations, broker_order_id, created_at
		FROM order_audits
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query order audits: %w", err)
	}
	defer rows.Close()

	var audits []OrderAudit
	for rows.Next() {
		var (
			a             OrderAudit
			qty, limPrice string
			extended      int
		)
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Side, &a.OrderType, &qty, &limPrice,
			&a.TimeInForce, &extended, &a.Status, &a.Violations, &a.BrokerOrderID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order audit: %w", err)
		}
		a.Qty = parseStoredDecimal(qty)
		a.LimitPrice = parseStoredDecimal(limPrice)
		a.ExtendedHours = extended == 1
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

// ----------------------------------------
// Users
// ----------------------------------------

// CreateUser inserts an operator account.
func (q *Queries) CreateUser(ctx context.Context, u User) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)
	`, u.ID, strings.ToLower(u.Email), u.PasswordHash)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail returns the account for an email, or ErrNotFound.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`, strings.ToLower(email)).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
