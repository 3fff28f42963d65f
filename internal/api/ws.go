package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"domotica-bridge/internal/events"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The bridge runs inside the restaurant's network; origin policy
	// is delegated to whatever fronts it.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsMessage is the frame shape pushed to websocket clients.
type wsMessage struct {
	Evento  string       `json:"evento"`
	Payload events.Event `json:"payload"`
}

// wsMesas streams table change events to one client until it
// disconnects or the hub closes.
func (s *Server) wsMesas(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)
	s.logger.Debug("websocket subscriber connected", zap.String("remote", conn.RemoteAddr().String()))

	// Read pump: clients send nothing meaningful, but reading is the
	// only way to notice a disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-sub.C():
			if !ok {
				// Detached by the hub or the hub closed.
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(wsMessage{Evento: string(evt.Evento), Payload: evt}); err != nil {
				s.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
