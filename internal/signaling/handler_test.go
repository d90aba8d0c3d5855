package signaling

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func startHandler(t *testing.T) (chan *Message, *Handler) {
	t.Helper()
	in := make(chan *Message, 8)
	h := NewHandler(in, testLogger())
	go h.Start()
	return in, h
}

func TestHandler_RoutesJoinAck(t *testing.T) {
	in, h := startHandler(t)
	defer close(in)

	raw, _ := json.Marshal(&JoinAck{Accepted: false, Reason: ReasonRoomFull})
	in <- &Message{Type: MessageTypeJoined, Payload: raw}

	select {
	case ack := <-h.Joined:
		if ack.Accepted {
			t.Fatalf("expected rejected ack")
		}
		if ack.Reason != ReasonRoomFull {
			t.Fatalf("expected reason %q, got %q", ReasonRoomFull, ack.Reason)
		}
	case <-time.After(time.Second):
		t.Fatalf("join ack never routed")
	}
}

func TestHandler_RoutesPeerEventsAndSignals(t *testing.T) {
	in, h := startHandler(t)
	defer close(in)

	in <- &Message{Type: MessageTypePeerJoined}
	select {
	case <-h.PeerJoined:
	case <-time.After(time.Second):
		t.Fatalf("peer_joined never routed")
	}

	payload, _ := json.Marshal(&SignalPayload{Type: SignalTypeOffer, SDP: "v=0 fake"})
	in <- &Message{Type: MessageTypeSignal, Payload: payload}
	select {
	case p := <-h.Signals:
		if p.Type != SignalTypeOffer || p.SDP != "v=0 fake" {
			t.Fatalf("signal payload mangled: %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatalf("signal never routed")
	}

	in <- &Message{Type: MessageTypePeerLeft}
	select {
	case <-h.PeerLeft:
	case <-time.After(time.Second):
		t.Fatalf("peer_left never routed")
	}
}

func TestHandler_MalformedPayloadSkipped(t *testing.T) {
	in, h := startHandler(t)
	defer close(in)

	in <- &Message{Type: MessageTypeSignal, Payload: json.RawMessage(`{not json`)}

	payload, _ := json.Marshal(&SignalPayload{Type: SignalTypeAnswer, SDP: "v=0"})
	in <- &Message{Type: MessageTypeSignal, Payload: payload}

	select {
	case p := <-h.Signals:
		if p.Type != SignalTypeAnswer {
			t.Fatalf("expected the valid signal to survive, got %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatalf("valid signal lost after malformed one")
	}
}

func TestDescriptionRoundTrip(t *testing.T) {
	p := &SignalPayload{Type: SignalTypeOffer, SDP: "v=0 fake"}
	desc, err := p.Description()
	if err != nil {
		t.Fatalf("description: %v", err)
	}
	back := DescriptionPayload(desc)
	if back.Type != SignalTypeOffer || back.SDP != "v=0 fake" {
		t.Fatalf("round trip mangled description: %+v", back)
	}
}

func TestDescription_RejectsUnknownType(t *testing.T) {
	p := &SignalPayload{Type: "rollback", SDP: "v=0"}
	if _, err := p.Description(); err == nil {
		t.Fatalf("expected error for unsupported sdp type")
	}
}
