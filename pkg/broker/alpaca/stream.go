package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"broker-gate/pkg/broker"
)

// StreamClient consumes Alpaca's market-data websocket and emits quotes.
type StreamClient struct {
	StreamURL string
	APIKey    string
	APISecret string
	dialer    *websocket.Dialer
}

// NewStreamClient builds a websocket client for the given data feed
// ("iex" on the free plan, "sip" on paid plans).
func NewStreamClient(apiKey, apiSecret, feed string) *StreamClient {
	if feed == "" {
		feed = "iex"
	}
	return &StreamClient{
		StreamURL: (&url.URL{Scheme: "wss", Host: "stream.data.alpaca.markets", Path: "/v2/" + feed}).String(),
		APIKey:    apiKey,
		APISecret: apiSecret,
		dialer:    websocket.DefaultDialer,
	}
}

type streamMessage struct {
	Type      string    `json:"T"`
	Symbol    string    `json:"S"`
	BidPrice  float64   `json:"bp"`
	AskPrice  float64   `json:"ap"`
	Timestamp time.Time `json:"t"`
	Message   string    `json:"msg"`
}

// SubscribeQuotes authenticates, subscribes to quote updates for the given
// symbols, and pushes parsed quotes into a channel. It returns the channel
// and a stop function.
func (c *StreamClient) SubscribeQuotes(ctx context.Context, symbols []string) (<-chan broker.Quote, func(), error) {
	conn, _, err := c.dialer.DialContext(ctx, c.StreamURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial alpaca ws: %w", err)
	}

	auth := map[string]string{"action": "auth", "key": c.APIKey, "secret": c.APISecret}
	if err := conn.WriteJSON(auth); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("alpaca ws auth: %w", err)
	}
	sub := map[string]any{"action": "subscribe", "quotes": symbols}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("alpaca ws subscribe: %w", err)
	}

	out := make(chan broker.Quote, 100)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			// Ignore errors; connection may already be closed.
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
			close(out)
		})
	}

	go func() {
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
					strings.Contains(err.Error(), "use of closed network connection") {
					return
				}
				log.Printf("alpaca ws read error: %v", err)
				return
			}

			// Every frame is a JSON array of typed messages.
			var batch []streamMessage
			if err := json.Unmarshal(msg, &batch); err != nil {
				log.Printf("alpaca ws parse error: %v", err)
				continue
			}
			for _, m := range batch {
				switch m.Type {
				case "q":
					out <- broker.Quote{
						Symbol:    m.Symbol,
						BidPrice:  decimal.NewFromFloat(m.BidPrice),
						AskPrice:  decimal.NewFromFloat(m.AskPrice),
						Timestamp: m.Timestamp,
					}
				case "error":
					log.Printf("alpaca ws error: %s", m.Message)
				}
			}
		}
	}()

	return out, stop, nil
}
