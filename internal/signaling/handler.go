package signaling

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// Handler fans incoming relay messages out to typed channels. The
// rendezvous controller selects over these alongside the negotiator's
// updates.
type Handler struct {
	in  <-chan *Message
	log *logrus.Entry

	Joined     chan *JoinAck
	PeerJoined chan struct{}
	PeerLeft   chan struct{}
	Signals    chan *SignalPayload
	Errors     chan string
}

// NewHandler creates a handler over a stream of relay messages.
func NewHandler(in <-chan *Message, logger *logrus.Logger) *Handler {
	return &Handler{
		in:         in,
		log:        logger.WithField("component", "signaling"),
		Joined:     make(chan *JoinAck, 1),
		PeerJoined: make(chan struct{}, 1),
		PeerLeft:   make(chan struct{}, 1),
		Signals:    make(chan *SignalPayload, 32),
		Errors:     make(chan string, 1),
	}
}

// Start consumes the incoming stream until it is closed. Run it in its
// own goroutine.
func (h *Handler) Start() {
	for msg := range h.in {
		switch msg.Type {

		case MessageTypeJoined:
			var ack JoinAck
			if err := json.Unmarshal(msg.Payload, &ack); err != nil {
				h.log.WithError(err).Warn("malformed join ack")
				continue
			}
			h.Joined <- &ack

		case MessageTypePeerJoined:
			h.PeerJoined <- struct{}{}

		case MessageTypePeerLeft:
			h.PeerLeft <- struct{}{}

		case MessageTypeSignal:
			var payload SignalPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				h.log.WithError(err).Warn("malformed signal payload")
				continue
			}
			h.Signals <- &payload

		case MessageTypeError:
			var errPayload ErrorPayload
			if err := json.Unmarshal(msg.Payload, &errPayload); err != nil {
				h.Errors <- "unknown relay error"
				continue
			}
			h.Errors <- errPayload.Error

		default:
			h.log.WithField("type", msg.Type).Debug("ignoring unknown relay message")
		}
	}
}
