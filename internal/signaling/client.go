package signaling

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the WebSocket connection to the signaling relay.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *Message
	outgoing  chan *Message
	done      chan struct{}
	closeOnce sync.Once
	log       *logrus.Entry
}

// NewClient creates a new signaling client for the given relay URL.
func NewClient(serverURL string, logger *logrus.Logger) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *Message, 32),
		outgoing:  make(chan *Message, 32),
		done:      make(chan struct{}),
		log:       logger.WithField("component", "signaling"),
	}
}

// Connect establishes the WebSocket connection and starts the pumps.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid relay URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.incoming <- &msg
	}
}

// writePump writes messages to the WebSocket connection and sends
// periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			// Flush anything still queued (a trailing leave, typically)
			// before saying goodbye.
			for {
				select {
				case message := <-c.outgoing:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteJSON(message); err != nil {
						return
					}
				default:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}
		}
	}
}

// Send queues a message for the relay.
func (c *Client) Send(msg *Message) {
	select {
	case c.outgoing <- msg:
	case <-c.done:
	}
}

// Join asks the relay for membership in the given room. The relay
// answers with a "joined" ack on the incoming stream.
func (c *Client) Join(room string) {
	c.Send(&Message{Type: MessageTypeJoin, Room: room})
}

// Leave releases room membership.
func (c *Client) Leave(room string) {
	c.Send(&Message{Type: MessageTypeLeave, Room: room})
}

// Signal relays one negotiation payload to the other member of the room.
// Delivery is best effort: the relay silently drops the payload if the
// peer has not arrived yet.
func (c *Client) Signal(room string, payload *SignalPayload) error {
	msg, err := NewSignal(room, payload)
	if err != nil {
		return err
	}
	c.Send(msg)
	return nil
}

// Incoming returns the channel of relay messages. It is closed when the
// connection drops.
func (c *Client) Incoming() <-chan *Message {
	return c.incoming
}

// Close shuts down the WebSocket connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
