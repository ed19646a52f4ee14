package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"broker-gate/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamEvent is one bus event as sent to websocket clients.
type streamEvent struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// eventStream pushes order outcomes and quote ticks to a websocket client
// until it disconnects.
func (s *Server) eventStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	accepted, unsubAccepted := s.Bus.Subscribe(events.EventOrderAccepted, 100)
	defer unsubAccepted()
	rejected, unsubRejected := s.Bus.Subscribe(events.EventOrderRejected, 100)
	defer unsubRejected()
	failed, unsubFailed := s.Bus.Subscribe(events.EventOrderSubmitFailed, 100)
	defer unsubFailed()
	ticks, unsubTicks := s.Bus.Subscribe(events.EventQuoteTick, 100)
	defer unsubTicks()

	ctx := c.Request.Context()
	for {
		var msg streamEvent
		select {
		case <-ctx.Done():
			return
		case p := <-accepted:
			msg = streamEvent{Event: string(events.EventOrderAccepted), Payload: p}
		case p := <-rejected:
			msg = streamEvent{Event: string(events.EventOrderRejected), Payload: p}
		case p := <-failed:
			msg = streamEvent{Event: string(events.EventOrderSubmitFailed), Payload: p}
		case p := <-ticks:
			msg = streamEvent{Event: string(events.EventQuoteTick), Payload: p}
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
