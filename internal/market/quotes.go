// Package market serves best bid/ask quotes, preferring stream-warmed
// cache entries over REST round-trips.
package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"broker-gate/internal/events"
	"broker-gate/internal/monitor"
	"broker-gate/pkg/broker"
	"broker-gate/pkg/cache"
)

// DefaultMaxQuoteAge bounds how old a cached quote may be before the
// service falls back to a REST lookup.
const DefaultMaxQuoteAge = 5 * time.Second

// Service resolves the latest quote for a symbol.
type Service struct {
	Cache   *cache.ShardedQuoteCache
	Fetcher broker.QuoteFetcher
	Bus     *events.Bus
	MaxAge  time.Duration
}

// NewService builds a quote service. A zero maxAge uses DefaultMaxQuoteAge.
func NewService(quoteCache *cache.ShardedQuoteCache, fetcher broker.QuoteFetcher, bus *events.Bus, maxAge time.Duration) *Service {
	if maxAge <= 0 {
		maxAge = DefaultMaxQuoteAge
	}
	return &Service{
		Cache:   quoteCache,
		Fetcher: fetcher,
		Bus:     bus,
		MaxAge:  maxAge,
	}
}

// GetQuote returns the freshest quote available: the stream-warmed cache
// when recent enough, otherwise one REST lookup (which also warms the
// cache).
func (s *Service) GetQuote(ctx context.Context, symbol string) (*broker.Quote, error) {
	if s.Cache != nil {
		if q, age, ok := s.Cache.GetWithAge(symbol); ok && age <= s.MaxAge {
			return &q, nil
		}
	}

	start := time.Now()
	q, err := s.Fetcher.GetLatestQuote(ctx, symbol)
	monitor.RecordBrokerRequest("get_quote", time.Since(start))
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		s.Cache.Set(*q)
	}
	if s.Bus != nil {
		s.Bus.Publish(events.EventQuoteTick, *q)
	}
	return q, nil
}

// GetMid returns the quote midpoint for a symbol. A zero mid means the
// quote was one-sided; callers treat that as "price unknown".
func (s *Service) GetMid(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q, err := s.GetQuote(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Mid(), nil
}
