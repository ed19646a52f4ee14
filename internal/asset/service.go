// Package asset resolves instrument tradability metadata through a
// sqlite-backed cache with a stale-fallback policy.
package asset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"broker-gate/internal/monitor"
	"broker-gate/pkg/broker"
	"broker-gate/pkg/db"
)

// DefaultTTL is how long a cached asset row counts as fresh.
const DefaultTTL = 24 * time.Hour

// Service is the asset validation service. Reads are cache-first; upstream
// failures are absorbed and answered from the stale cache when possible, so
// callers get data or nil, never an upstream error.
type Service struct {
	queries  *db.Queries
	upstream broker.AssetFetcher
	ttl      time.Duration
}

// NewService wires the cache table and the upstream fetcher. A zero ttl
// uses DefaultTTL.
func NewService(database *db.Database, upstream broker.AssetFetcher, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		queries:  database.Queries(),
		upstream: upstream,
		ttl:      ttl,
	}
}

// IsTradable reports whether the symbol resolves to a tradable asset.
func (s *Service) IsTradable(ctx context.Context, symbol string) bool {
	info, err := s.GetAssetInfo(ctx, symbol)
	if err != nil || info == nil {
		return false
	}
	return info.Tradable
}

// GetAssetInfo returns asset metadata for a symbol, or nil when the symbol
// cannot be resolved anywhere. Lookup order: fresh cache row, upstream
// fetch (upserting the cache), then stale cache row as fallback.
func (s *Service) GetAssetInfo(ctx context.Context, symbol string) (*broker.Asset, error) {
	cached, err := s.queries.GetAsset(ctx, symbol)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("asset cache read: %w", err)
	}

	if cached != nil && time.Since(cached.UpdatedAt) < s.ttl {
		monitor.RecordCacheLookup(monitor.CacheHit)
		return recordToAsset(cached), nil
	}
	monitor.RecordCacheLookup(monitor.CacheMiss)

	start := time.Now()
	fresh, fetchErr := s.upstream.GetAsset(ctx, symbol)
	monitor.RecordBrokerRequest("get_asset", time.Since(start))

	if fetchErr == nil {
		if err := s.queries.UpsertAsset(ctx, assetToRecord(*fresh)); err != nil {
			log.Printf("asset: cache upsert %s failed: %v", symbol, err)
		}
		return fresh, nil
	}

	if errors.Is(fetchErr, broker.ErrAssetNotFound) {
		// The upstream authoritatively does not know this symbol. Drop any
		// stale row so a delisted asset stops surfacing in search results.
		if cached != nil {
			if err := s.queries.DeleteAsset(ctx, symbol); err != nil {
				log.Printf("asset: delete delisted %s failed: %v", symbol, err)
			}
		}
		return nil, nil
	}

	// Transient upstream failure: serve the stale row when we have one.
	if cached != nil {
		log.Printf("asset: upstream fetch %s failed, serving stale cache (age %s): %v",
			symbol, time.Since(cached.UpdatedAt).Round(time.Second), fetchErr)
		monitor.RecordCacheLookup(monitor.CacheStaleFallback)
		return recordToAsset(cached), nil
	}

	log.Printf("asset: upstream fetch %s failed and no cached entry: %v", symbol, fetchErr)
	return nil, nil
}

// RefreshCache bulk-fetches all active assets and upserts the cache.
// Intended for the background refresher, not per-request use. A fetch
// failure leaves the existing cache untouched.
func (s *Service) RefreshCache(ctx context.Context) (int, error) {
	start := time.Now()
	assets, err := s.upstream.ListActiveAssets(ctx)
	monitor.RecordBrokerRequest("list_assets", time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("list active assets: %w", err)
	}

	count := 0
	for _, a := range assets {
		if err := s.queries.UpsertAsset(ctx, assetToRecord(a)); err != nil {
			log.Printf("asset: refresh upsert %s failed: %v", a.Symbol, err)
			continue
		}
		count++
	}
	log.Printf("asset cache refreshed: %d assets", count)
	return count, nil
}

// Search matches tradable cached assets by symbol or name; symbol-prefix
// matches rank first. Never calls upstream.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]broker.Asset, error) {
	records, err := s.queries.SearchAssets(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]broker.Asset, 0, len(records))
	for i := range records {
		out = append(out, *recordToAsset(&records[i]))
	}
	return out, nil
}

func recordToAsset(r *db.AssetRecord) *broker.Asset {
	return &broker.Asset{
		Symbol:            r.Symbol,
		Name:              r.Name,
		Exchange:          r.Exchange,
		Tradable:          r.Tradable,
		Fractionable:      r.Fractionable,
		Marginable:        r.Marginable,
		Shortable:         r.Shortable,
		MinOrderSize:      r.MinOrderSize,
		MinTradeIncrement: r.MinTradeIncrement,
		PriceIncrement:    r.PriceIncrement,
	}
}

func assetToRecord(a broker.Asset) db.AssetRecord {
	return db.AssetRecord{
		Symbol:            a.Symbol,
		Name:              a.Name,
		Exchange:          a.Exchange,
		Tradable:          a.Tradable,
		Fractionable:      a.Fractionable,
		Marginable:        a.Marginable,
		Shortable:         a.Shortable,
		MinOrderSize:      a.MinOrderSize,
		MinTradeIncrement: a.MinTradeIncrement,
		PriceIncrement:    a.PriceIncrement,
	}
}
