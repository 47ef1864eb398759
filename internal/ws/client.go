// Package ws bridges fanout subscribers onto websocket connections.
package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/fanout"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Source produces a registered subscriber and a way to release it.
type Source interface {
	Subscribe() *fanout.Subscriber
	Unsubscribe(*fanout.Subscriber)
}

// Serve upgrades the request and streams the subscriber's queue to the peer
// until either side goes away. A dead connection tears down only its own
// subscriber.
func Serve(log *logger.Logger, src Source, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	sub := src.Subscribe()
	c := &client{log: log, conn: conn, sub: sub}
	go c.writePump()
	go c.readPump(func() { src.Unsubscribe(sub) })
	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("subscriber connected")
}

type client struct {
	log  *logger.Logger
	conn *websocket.Conn
	sub  *fanout.Subscriber
}

// readPump only watches for the peer closing; the dashboard never sends.
func (c *client) readPump(unsubscribe func()) {
	defer func() {
		unsubscribe()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.sub.C():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// unsubscribed elsewhere
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				c.log.Debug().Err(err).Msg("websocket write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
