package relay

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/irfan-khan-96/ruff-web/internal/signaling"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. 64 KB comfortably fits SDP
	// blobs and doubles as the payload ceiling documented for transfers.
	maxMessageSize = 64 * 1024
)

// Client wraps a single WebSocket connection on the relay side. The hub
// only ever touches Handle, Room and Send, so tests can construct
// clients without a live connection.
type Client struct {
	// Handle identifies the member for logging; the protocol itself never
	// addresses members explicitly.
	Handle string

	// Room is the code of the room the member currently occupies, or ""
	// before a join is accepted.
	Room string

	hub  *Hub
	conn *websocket.Conn

	// Send is the buffered outbound queue drained by writePump.
	Send chan *signaling.Message

	log *logrus.Entry
}

// readPump pumps messages from the WebSocket connection to the hub.
// There is at most one reader per connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg signaling.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Debug("read error")
			}
			return
		}
		c.hub.inbound <- &inbound{from: c, msg: &msg}
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
// There is at most one writer per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.log.WithError(err).Debug("write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
