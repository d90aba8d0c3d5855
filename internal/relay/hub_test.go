package relay

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfan-khan-96/ruff-web/internal/signaling"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestHub() *Hub {
	return NewHub(5*time.Minute, testLogger())
}

// newTestClient builds a hub-side member without a live connection; the
// hub only touches Handle, Room and Send.
func newTestClient(handle string) *Client {
	return &Client{Handle: handle, Send: make(chan *signaling.Message, 8)}
}

func recvMessage(t *testing.T, c *Client) *signaling.Message {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	default:
		t.Fatalf("expected a queued message for %s", c.Handle)
		return nil
	}
}

func recvAck(t *testing.T, c *Client) *signaling.JoinAck {
	t.Helper()
	msg := recvMessage(t, c)
	if msg.Type != signaling.MessageTypeJoined {
		t.Fatalf("expected joined ack, got %q", msg.Type)
	}
	var ack signaling.JoinAck
	if err := json.Unmarshal(msg.Payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	return &ack
}

func TestHub_JoinCreatesRoomImplicitly(t *testing.T) {
	h := newTestHub()
	a := newTestClient("a")

	h.handleJoin(a, "AB12CD")

	ack := recvAck(t, a)
	if !ack.Accepted {
		t.Fatalf("expected join to be accepted, got reason %q", ack.Reason)
	}
	if a.Room != "AB12CD" {
		t.Fatalf("expected member room AB12CD, got %q", a.Room)
	}
	if _, ok := h.rooms["AB12CD"]; !ok {
		t.Fatalf("expected room to exist after first join")
	}
}

func TestHub_SecondJoinNotifiesExistingMemberOnly(t *testing.T) {
	h := newTestHub()
	a := newTestClient("a")
	b := newTestClient("b")

	h.handleJoin(a, "ROOM42")
	recvAck(t, a)

	h.handleJoin(b, "ROOM42")
	if ack := recvAck(t, b); !ack.Accepted {
		t.Fatalf("expected second join to be accepted")
	}

	// The member already present hears peer_joined; the joiner must not.
	if msg := recvMessage(t, a); msg.Type != signaling.MessageTypePeerJoined {
		t.Fatalf("expected peer_joined for first member, got %q", msg.Type)
	}
	select {
	case msg := <-b.Send:
		t.Fatalf("joiner should not receive extra messages, got %q", msg.Type)
	default:
	}
}

func TestHub_ThirdJoinRejectedRoomFull(t *testing.T) {
	h := newTestHub()
	a := newTestClient("a")
	b := newTestClient("b")
	c := newTestClient("c")

	h.handleJoin(a, "FULL22")
	h.handleJoin(b, "FULL22")
	h.handleJoin(c, "FULL22")

	recvAck(t, a)
	recvAck(t, b)
	recvMessage(t, a) // peer_joined

	ack := recvAck(t, c)
	if ack.Accepted {
		t.Fatalf("expected third join to be rejected")
	}
	if ack.Reason != signaling.ReasonRoomFull {
		t.Fatalf("expected reason %q, got %q", signaling.ReasonRoomFull, ack.Reason)
	}
	if c.Room != "" {
		t.Fatalf("rejected member must not hold room membership")
	}

	// The existing pair is untouched.
	room := h.rooms["FULL22"]
	if len(room.Members) != 2 {
		t.Fatalf("expected 2 members after rejected join, got %d", len(room.Members))
	}
	if a.Room != "FULL22" || b.Room != "FULL22" {
		t.Fatalf("existing members lost membership after rejected join")
	}
}

func TestHub_JoinWithoutCodeRejected(t *testing.T) {
	h := newTestHub()
	a := newTestClient("a")

	h.handleJoin(a, "")

	if ack := recvAck(t, a); ack.Accepted {
		t.Fatalf("expected join without code to be rejected")
	}
	if len(h.rooms) != 0 {
		t.Fatalf("no room should be created for an empty code")
	}
}

func TestHub_SignalDroppedWithoutPeer(t *testing.T) {
	h := newTestHub()
	a := newTestClient("a")

	h.handleJoin(a, "LONELY")
	recvAck(t, a)

	h.handleSignal(a, &signaling.Message{
		Type: signaling.MessageTypeSignal,
		Room: "LONELY",
	})

	select {
	case msg := <-a.Send:
		t.Fatalf("signal must not echo back to sender, got %q", msg.Type)
	default:
	}
}

func TestHub_SignalForwardedVerbatim(t *testing.T) {
	h := newTestHub()
	a := newTestClient("a")
	b := newTestClient("b")

	h.handleJoin(a, "PAIR44")
	h.handleJoin(b, "PAIR44")
	recvAck(t, a)
	recvAck(t, b)
	recvMessage(t, a) // peer_joined

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0 fake"}`)
	sent := &signaling.Message{
		Type:    signaling.MessageTypeSignal,
		Room:    "PAIR44",
		Payload: payload,
	}
	h.handleSignal(a, sent)

	got := recvMessage(t, b)
	if got.Type != signaling.MessageTypeSignal {
		t.Fatalf("expected signal, got %q", got.Type)
	}
	if string(got.Payload) != string(payload) {
		t.Fatalf("payload altered in transit:\n sent %s\n got  %s", payload, got.Payload)
	}
}

func TestHub_LeaveNotifiesPeerAndCollectsEmptyRoom(t *testing.T) {
	h := newTestHub()
	a := newTestClient("a")
	b := newTestClient("b")

	h.handleJoin(a, "BYE123")
	h.handleJoin(b, "BYE123")
	recvAck(t, a)
	recvAck(t, b)
	recvMessage(t, a) // peer_joined

	h.handleLeave(a)
	if msg := recvMessage(t, b); msg.Type != signaling.MessageTypePeerLeft {
		t.Fatalf("expected peer_left, got %q", msg.Type)
	}
	if a.Room != "" {
		t.Fatalf("leaver should lose membership")
	}

	h.handleLeave(b)
	if _, ok := h.rooms["BYE123"]; ok {
		t.Fatalf("empty room should be deleted")
	}
}

func TestHub_SweepCollectsIdleRooms(t *testing.T) {
	h := newTestHub()
	a := newTestClient("a")

	h.handleJoin(a, "STALE1")
	recvAck(t, a)

	// Not idle long enough: survives.
	h.sweep(time.Now().Add(h.roomTTL - time.Second))
	if _, ok := h.rooms["STALE1"]; !ok {
		t.Fatalf("room collected before TTL elapsed")
	}

	h.sweep(time.Now().Add(h.roomTTL + time.Second))
	if _, ok := h.rooms["STALE1"]; ok {
		t.Fatalf("idle room should be collected after TTL")
	}
	if a.Room != "" {
		t.Fatalf("member should lose membership when its room expires")
	}
	if msg := recvMessage(t, a); msg.Type != signaling.MessageTypeError {
		t.Fatalf("expected error notification on expiry, got %q", msg.Type)
	}
}

func TestHub_SignalAfterExpiryDropped(t *testing.T) {
	h := newTestHub()
	a := newTestClient("a")
	b := newTestClient("b")

	h.handleJoin(a, "GONE55")
	h.handleJoin(b, "GONE55")
	recvAck(t, a)
	recvAck(t, b)
	recvMessage(t, a) // peer_joined

	h.sweep(time.Now().Add(h.roomTTL + time.Second))
	recvMessage(t, a) // expiry error
	recvMessage(t, b)

	h.handleSignal(a, &signaling.Message{Type: signaling.MessageTypeSignal, Room: "GONE55"})
	select {
	case msg := <-b.Send:
		t.Fatalf("signal after expiry should be dropped, got %q", msg.Type)
	default:
	}
}
