package realtime

import (
	"net/http"
	"time"

	apperrors "estatetoken/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	maxReadBytes = 512
)

// TokenVerifier returns the user ID an access token belongs to.
type TokenVerifier func(token string) (string, error)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS authenticates the token query parameter, upgrades the connection
// and streams the user's candle updates until either side hangs up.
// @Summary     Portfolio updates stream
// @Description WebSocket stream of portfolio.candle.updated events for the authenticated user
// @Tags        portfolio
// @Param       token query string true "Access token"
// @Success     101 "Switching protocols"
// @Failure     401 "Unauthorized"
// @Router      /ws/portfolio [get]
func ServeWS(hub *Hub, verify TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			abortUnauthorized(c, "token query parameter is required")
			return
		}
		userID, err := verify(token)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warnw("websocket upgrade failed", "user_id", userID, "error", err)
			return
		}

		client := NewClient(userID)
		hub.Register(client)
		hub.log.Debugw("client connected", "user_id", userID, "clients", hub.ClientCount())

		go writePump(client, conn)
		readPump(conn)

		client.Close()
		hub.log.Debugw("client disconnected", "user_id", userID, "clients", hub.ClientCount())
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(apperrors.ErrUnauthorized.StatusCode, gin.H{
		"error": gin.H{"code": apperrors.ErrUnauthorized.Code, "message": message},
	})
}

// writePump copies queued messages to the connection and keeps it alive with pings.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and returns when the connection drops.
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxReadBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
