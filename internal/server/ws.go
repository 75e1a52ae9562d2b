package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Mohd-Saddam/fx-ohlc-microservice/internal/broadcast"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/errors"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWSTicks(c *gin.Context) {
	s.serveWS(c, broadcast.TopicTicks)
}

func (s *Server) handleWSOHLC(c *gin.Context) {
	topic, err := broadcast.ParseTopic(c.Param("granularity"))
	if err != nil || topic == broadcast.TopicTicks {
		c.JSON(http.StatusBadRequest, gin.H{"error": "granularity must be one of minute, hour, day, custom-day"})
		return
	}
	s.serveWS(c, topic)
}

// serveWS upgrades the connection and relays one live subscription over it.
// The read loop exists for heartbeats: any client frame defers the liveness
// reaper. The relay ends when the client goes away or the subscription is
// closed (reaped, or service shutdown).
func (s *Server) serveWS(c *gin.Context, topic broadcast.Topic) {
	symbol := c.DefaultQuery("symbol", defaultSymbol)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.ErrorContext(c.Request.Context(), errors.TracerFromError(err), logger.Field{
			Key:   "action",
			Value: "ws_upgrade",
		})
		return
	}

	sub := s.service.Subscribe(symbol, topic)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Close()
				return
			}
			sub.Touch()
		}
	}()

	for msg := range sub.Out() {
		if err := conn.WriteJSON(msg); err != nil {
			sub.Close()
			break
		}
	}

	// Out is closed: either we broke the loop above or the manager removed
	// the subscription. Tell the client and release the socket.
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
}
