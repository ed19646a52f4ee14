package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"broker-gate/internal/api"
	"broker-gate/internal/asset"
	"broker-gate/internal/events"
	"broker-gate/internal/market"
	"broker-gate/internal/order"
	"broker-gate/internal/risk"
	"broker-gate/pkg/broker"
	"broker-gate/pkg/broker/alpaca"
	"broker-gate/pkg/cache"
	"broker-gate/pkg/config"
	"broker-gate/pkg/db"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	venue := "alpaca"
	if cfg.AlpacaPaper {
		venue = "alpaca-paper"
	}
	client := alpaca.New(alpaca.Config{
		APIKey:    cfg.AlpacaKey,
		APISecret: cfg.AlpacaSecret,
		Paper:     cfg.AlpacaPaper,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	quoteCache := cache.NewShardedQuoteCache()

	assetSvc := asset.NewService(database, client, time.Duration(cfg.Risk.AssetCacheTTLHours)*time.Hour)
	quoteSvc := market.NewService(quoteCache, client, bus, 0)

	riskSvc, err := risk.NewService(cfg.Risk, assetSvc, quoteSvc)
	if err != nil {
		log.Fatalf("build risk service: %v", err)
	}

	orderSvc := order.NewService(riskSvc, client, database, bus)

	// Order outcome subscriber: one consolidated log line per terminal
	// order event, whatever path produced it.
	go func() {
		acceptedSub, unsubAccepted := bus.Subscribe(events.EventOrderAccepted, 100)
		defer unsubAccepted()
		rejectedSub, unsubRejected := bus.Subscribe(events.EventOrderRejected, 100)
		defer unsubRejected()
		failedSub, unsubFailed := bus.Subscribe(events.EventOrderSubmitFailed, 100)
		defer unsubFailed()

		for {
			select {
			case <-ctx.Done():
				return
			case p := <-acceptedSub:
				if res, ok := p.(broker.OrderResult); ok {
					log.Printf("order accepted: broker id %s status %s", res.OrderID, res.Status)
				}
			case p := <-rejectedSub:
				if req, ok := p.(broker.OrderRequest); ok {
					log.Printf("order rejected by risk checks: %s %s %s", req.Side, req.Qty, req.Symbol)
				}
			case p := <-failedSub:
				if req, ok := p.(broker.OrderRequest); ok {
					log.Printf("order submit failed upstream: %s %s %s", req.Side, req.Qty, req.Symbol)
				}
			}
		}
	}()

	// Warm the asset cache on startup, then refresh on the configured
	// interval. Refresh failures leave the existing cache untouched.
	go func() {
		refresh := func() {
			rctx, rcancel := context.WithTimeout(ctx, 5*time.Minute)
			defer rcancel()
			if n, err := assetSvc.RefreshCache(rctx); err != nil {
				log.Printf("asset cache refresh failed: %v", err)
			} else {
				bus.Publish(events.EventAssetCacheRefresh, n)
			}
		}
		refresh()

		interval := time.Duration(cfg.AssetRefreshHours) * time.Hour
		if interval <= 0 {
			interval = 24 * time.Hour
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()

	if cfg.EnableQuoteStream && len(cfg.StreamSymbols) > 0 {
		stream := alpaca.NewStreamClient(cfg.AlpacaKey, cfg.AlpacaSecret, cfg.StreamFeed)
		feed := &market.Feed{
			Stream:  stream,
			Cache:   quoteCache,
			Bus:     bus,
			Symbols: cfg.StreamSymbols,
		}
		feed.Start(ctx)
		log.Printf("quote stream enabled for %v (feed %s)", cfg.StreamSymbols, cfg.StreamFeed)
	}

	server := api.NewServer(database, orderSvc, assetSvc, riskSvc, bus, api.SystemMeta{
		Paper:   cfg.AlpacaPaper,
		Venue:   venue,
		Version: version,
	}, cfg.JWTSecret)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Router,
	}

	go func() {
		log.Printf("broker-gate %s listening on :%s (venue %s)", version, cfg.Port, venue)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
