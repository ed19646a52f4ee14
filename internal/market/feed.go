package market

import (
	"context"
	"log"
	"time"

	"broker-gate/internal/events"
	"broker-gate/pkg/broker"
	"broker-gate/pkg/cache"
)

// QuoteStream is the subscribe surface of the broker's websocket client.
type QuoteStream interface {
	SubscribeQuotes(ctx context.Context, symbols []string) (<-chan broker.Quote, func(), error)
}

// Feed keeps the quote cache warm from the broker's websocket stream and
// publishes ticks on the event bus.
type Feed struct {
	Stream  QuoteStream
	Cache   *cache.ShardedQuoteCache
	Bus     *events.Bus
	Symbols []string
}

// Start consumes the stream until ctx is cancelled, reconnecting with a
// fixed backoff when the connection drops.
func (f *Feed) Start(ctx context.Context) {
	if f.Stream == nil || f.Cache == nil || len(f.Symbols) == 0 {
		log.Println("quote feed not fully configured; skipping start")
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			ch, stop, err := f.Stream.SubscribeQuotes(ctx, f.Symbols)
			if err != nil {
				log.Printf("quote feed: subscribe failed, retrying in 5s: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Second):
				}
				continue
			}

			for q := range ch {
				f.Cache.Set(q)
				if f.Bus != nil {
					f.Bus.Publish(events.EventQuoteTick, q)
				}
			}
			stop()
			log.Println("quote feed: stream closed, reconnecting")
		}
	}()
}
