package app

import (
	"net/http"
	"time"

	"example/cpl-trainer/app/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const wsIdlePingInterval = 30 * time.Second

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// SessionEvents streams a session's events over a websocket. The first
// message is the current state; idle connections get a ping every 30s.
func (h *Handlers) SessionEvents(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	sub := h.Hub.Subscribe(s.ID)

	hello, err := encodeEvent(models.EventSettings, s.State())
	if err == nil {
		err = conn.WriteMessage(websocket.TextMessage, hello)
	}
	if err != nil {
		h.Hub.Unsubscribe(sub)
		conn.Close()
		return
	}

	go func() {
		defer conn.Close()
		if err := writeWSWithHeartbeat(conn, sub.Messages()); err != nil {
			h.Log.Debug().Err(err).Str("session", s.ID).Msg("websocket write ended")
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.Hub.Unsubscribe(sub)
			return
		}
	}
}

func writeWSWithHeartbeat(conn *websocket.Conn, send <-chan []byte) error {
	ticker := time.NewTicker(wsIdlePingInterval)
	defer ticker.Stop()
	lastWrite := time.Now()
	ping, err := encodeEvent(models.EventPing, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}
			lastWrite = time.Now()
		case <-ticker.C:
			if time.Since(lastWrite) < wsIdlePingInterval {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return err
			}
			lastWrite = time.Now()
		}
	}
}
