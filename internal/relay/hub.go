package relay

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfan-khan-96/ruff-web/internal/signaling"
)

// sweepPeriod is how often idle rooms are checked against the TTL.
const sweepPeriod = 30 * time.Second

// inbound pairs a wire message with the member that sent it.
type inbound struct {
	from *Client
	msg  *signaling.Message
}

// Hub owns all room state. A single goroutine (Run) processes joins,
// leaves, relays and garbage collection, so room-membership mutation
// needs no locking.
type Hub struct {
	rooms map[string]*Room

	register   chan *Client
	unregister chan *Client
	inbound    chan *inbound

	roomTTL time.Duration
	done    chan struct{}
	log     *logrus.Entry
}

// NewHub creates a hub whose idle rooms expire after roomTTL.
func NewHub(roomTTL time.Duration, logger *logrus.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *inbound),
		roomTTL:    roomTTL,
		done:       make(chan struct{}),
		log:        logger.WithField("component", "relay"),
	}
}

// Run starts the hub's processing loop. This is the single goroutine
// that safely manages all rooms and members.
func (h *Hub) Run() {
	ticker := time.NewTicker(sweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.log.WithField("member", client.Handle).Debug("member connected")

		case client := <-h.unregister:
			h.dropMember(client)
			close(client.Send)

		case in := <-h.inbound:
			h.dispatch(in.from, in.msg)

		case <-ticker.C:
			h.sweep(time.Now())

		case <-h.done:
			return
		}
	}
}

// Stop terminates the processing loop.
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) dispatch(from *Client, msg *signaling.Message) {
	switch msg.Type {
	case signaling.MessageTypeJoin:
		h.handleJoin(from, msg.Room)
	case signaling.MessageTypeLeave:
		h.handleLeave(from)
	case signaling.MessageTypeSignal:
		h.handleSignal(from, msg)
	default:
		h.log.WithFields(logrus.Fields{
			"member": from.Handle,
			"type":   msg.Type,
		}).Debug("ignoring unknown message type")
	}
}

// handleJoin adds the member to the room, creating the room on first
// join. A 3rd member is rejected with a RoomFull ack and the existing
// two are left untouched. When the 2nd member arrives, the member
// already present is notified with peer_joined; the joiner learns the
// same thing from its accepted ack.
func (h *Hub) handleJoin(from *Client, code string) {
	if code == "" {
		h.sendAck(from, &signaling.JoinAck{Accepted: false, Reason: "missing room code"})
		return
	}
	if from.Room != "" {
		h.sendAck(from, &signaling.JoinAck{Accepted: false, Reason: "already in a room"})
		return
	}

	now := time.Now()
	room, ok := h.rooms[code]
	if !ok {
		room = newRoom(code, now)
		h.rooms[code] = room
		h.log.WithField("room", code).Info("room created")
	}

	if !room.add(from) {
		h.log.WithFields(logrus.Fields{
			"room":   code,
			"member": from.Handle,
		}).Info("join rejected: room full")
		h.sendAck(from, &signaling.JoinAck{Accepted: false, Reason: signaling.ReasonRoomFull})
		return
	}

	from.Room = code
	room.touch(now)

	h.log.WithFields(logrus.Fields{
		"room":    code,
		"member":  from.Handle,
		"members": len(room.Members),
	}).Info("member joined")

	h.sendAck(from, &signaling.JoinAck{Accepted: true})

	if other := room.other(from); other != nil {
		h.sendTo(other, &signaling.Message{Type: signaling.MessageTypePeerJoined})
	}
}

// handleSignal forwards the envelope verbatim to the other member. With
// fewer than 2 members the message is dropped, not queued: an expected
// race during setup, never an error.
func (h *Hub) handleSignal(from *Client, msg *signaling.Message) {
	if from.Room == "" {
		h.log.WithField("member", from.Handle).Debug("signal from roomless member dropped")
		return
	}

	room, ok := h.rooms[from.Room]
	if !ok {
		h.log.WithField("room", from.Room).Debug("signal for expired room dropped")
		return
	}
	room.touch(time.Now())

	other := room.other(from)
	if other == nil {
		h.log.WithField("room", from.Room).Debug("signal dropped: no peer yet")
		return
	}

	h.sendTo(other, msg)
}

func (h *Hub) handleLeave(from *Client) {
	h.dropMember(from)
}

// dropMember removes the member from its room, tells the remaining peer,
// and collects the room once it is empty.
func (h *Hub) dropMember(c *Client) {
	if c.Room == "" {
		return
	}

	room, ok := h.rooms[c.Room]
	c.Room = ""
	if !ok {
		return
	}

	room.remove(c)

	if room.empty() {
		delete(h.rooms, room.Code)
		h.log.WithField("room", room.Code).Info("room deleted")
		return
	}

	h.log.WithFields(logrus.Fields{
		"room":   room.Code,
		"member": c.Handle,
	}).Info("member left")

	if other := room.other(c); other != nil {
		h.sendTo(other, &signaling.Message{Type: signaling.MessageTypePeerLeft})
	}
}

// sweep collects rooms idle past the TTL. Members keep their connections
// but lose membership; any later signal from them is dropped like every
// other roomless signal.
func (h *Hub) sweep(now time.Time) {
	for code, room := range h.rooms {
		if now.Sub(room.LastActive) < h.roomTTL {
			continue
		}
		for _, m := range room.Members {
			m.Room = ""
			h.sendError(m, "room expired")
		}
		delete(h.rooms, code)
		h.log.WithField("room", code).Info("idle room collected")
	}
}

func (h *Hub) sendAck(c *Client, ack *signaling.JoinAck) {
	raw, err := json.Marshal(ack)
	if err != nil {
		h.log.WithError(err).Error("marshal join ack")
		return
	}
	h.sendTo(c, &signaling.Message{Type: signaling.MessageTypeJoined, Payload: raw})
}

func (h *Hub) sendError(c *Client, reason string) {
	raw, err := json.Marshal(&signaling.ErrorPayload{Error: reason})
	if err != nil {
		return
	}
	h.sendTo(c, &signaling.Message{Type: signaling.MessageTypeError, Payload: raw})
}

// sendTo queues a message without ever blocking the hub loop. A member
// whose queue is full is too far behind to be useful as a rendezvous
// peer; the message is dropped.
func (h *Hub) sendTo(c *Client, msg *signaling.Message) {
	select {
	case c.Send <- msg:
	default:
		h.log.WithField("member", c.Handle).Warn("outbound queue full, message dropped")
	}
}
