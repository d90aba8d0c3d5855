package relay

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/irfan-khan-96/ruff-web/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  maxMessageSize,
	WriteBufferSize: maxMessageSize,

	// The relay carries no payload data and rooms are unguessable short
	// codes; cross-origin browser sessions are exactly the clients we
	// serve.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs returns an http.HandlerFunc that upgrades requests to
// WebSocket connections and registers them with the hub.
func ServeWs(hub *Hub, logger *logrus.Logger) http.HandlerFunc {
	log := logger.WithField("component", "relay")

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).Warn("failed to upgrade connection")
			return
		}

		client := &Client{
			Handle: uuid.NewString(),
			hub:    hub,
			conn:   conn,
			Send:   make(chan *signaling.Message, 64),
		}
		client.log = log.WithField("member", client.Handle)

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}
