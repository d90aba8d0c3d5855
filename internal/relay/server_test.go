package relay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/irfan-khan-96/ruff-web/internal/signaling"
)

func startRelay(t *testing.T) string {
	t.Helper()
	logger := testLogger()

	hub := NewHub(5*time.Minute, logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(http.HandlerFunc(ServeWs(hub, logger)))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func connect(t *testing.T, url string) (*signaling.Client, *signaling.Handler) {
	t.Helper()
	client := signaling.NewClient(url, testLogger())
	if err := client.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(client.Close)

	handler := signaling.NewHandler(client.Incoming(), testLogger())
	go handler.Start()
	return client, handler
}

func waitAck(t *testing.T, h *signaling.Handler) *signaling.JoinAck {
	t.Helper()
	select {
	case ack := <-h.Joined:
		return ack
	case <-time.After(5 * time.Second):
		t.Fatalf("join ack never arrived")
		return nil
	}
}

func TestRelay_EndToEndRendezvous(t *testing.T) {
	url := startRelay(t)

	sender, senderH := connect(t, url)
	receiver, receiverH := connect(t, url)

	sender.Join("WIRE01")
	if ack := waitAck(t, senderH); !ack.Accepted {
		t.Fatalf("sender join rejected: %s", ack.Reason)
	}

	receiver.Join("WIRE01")
	if ack := waitAck(t, receiverH); !ack.Accepted {
		t.Fatalf("receiver join rejected: %s", ack.Reason)
	}

	// The member already present hears about the arrival.
	select {
	case <-senderH.PeerJoined:
	case <-time.After(5 * time.Second):
		t.Fatalf("peer_joined never arrived")
	}

	// Signals flow receiver -> sender through the relay.
	payload := &signaling.SignalPayload{Type: signaling.SignalTypeOffer, SDP: "v=0 fake"}
	if err := receiver.Signal("WIRE01", payload); err != nil {
		t.Fatalf("signal: %v", err)
	}
	select {
	case got := <-senderH.Signals:
		if got.Type != signaling.SignalTypeOffer || got.SDP != "v=0 fake" {
			t.Fatalf("signal mangled: %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("signal never arrived")
	}

	// A third member bounces off the full room.
	third, thirdH := connect(t, url)
	third.Join("WIRE01")
	ack := waitAck(t, thirdH)
	if ack.Accepted {
		t.Fatalf("third join must be rejected")
	}
	if ack.Reason != signaling.ReasonRoomFull {
		t.Fatalf("expected %q, got %q", signaling.ReasonRoomFull, ack.Reason)
	}

	// Leaving tells the remaining member.
	receiver.Leave("WIRE01")
	select {
	case <-senderH.PeerLeft:
	case <-time.After(5 * time.Second):
		t.Fatalf("peer_left never arrived")
	}
}
