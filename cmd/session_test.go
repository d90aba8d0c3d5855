package cmd

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/irfan-khan-96/ruff-web/internal/negotiator"
	"github.com/irfan-khan-96/ruff-web/internal/relay"
	"github.com/irfan-khan-96/ruff-web/internal/signaling"
)

func startRelay(t *testing.T) string {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	hub := relay.NewHub(5*time.Minute, logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(http.HandlerFunc(relay.ServeWs(hub, logger)))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func connectContext(t *testing.T, relayURL string) *ConnectionContext {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("relay-url", "", "")
	flags.String("log", "", "")
	if err := flags.Parse([]string{"--relay-url=" + relayURL, "--log=panic"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	conn, err := NewConnectionContext(flags)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(conn.Close)
	return conn
}

func TestConnectionContext_JoinMapsRoomFull(t *testing.T) {
	url := startRelay(t)

	a := connectContext(t, url)
	b := connectContext(t, url)
	c := connectContext(t, url)

	if err := a.JoinRoom("CMD001"); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if err := b.JoinRoom("CMD001"); err != nil {
		t.Fatalf("second join: %v", err)
	}
	if err := c.JoinRoom("CMD001"); !errors.Is(err, signaling.ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull for third join, got %v", err)
	}
}

func TestConnectionContext_CloseLeavesRoom(t *testing.T) {
	url := startRelay(t)

	a := connectContext(t, url)
	b := connectContext(t, url)

	if err := a.JoinRoom("CMD002"); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if err := b.JoinRoom("CMD002"); err != nil {
		t.Fatalf("second join: %v", err)
	}
	select {
	case <-a.Handler.PeerJoined:
	case <-time.After(5 * time.Second):
		t.Fatalf("peer_joined never arrived")
	}

	// Closing the context sends an explicit leave; the remaining member
	// must hear peer_left.
	a.Close()
	select {
	case <-b.Handler.PeerLeft:
	case <-time.After(5 * time.Second):
		t.Fatalf("peer_left never arrived after close")
	}
}

func TestRelayErrorFatal(t *testing.T) {
	fatal := []negotiator.State{
		negotiator.StateIdle,
		negotiator.StateAwaitingPeer,
		negotiator.StateNegotiating,
		negotiator.StateFailed,
	}
	for _, s := range fatal {
		if !relayErrorFatal(s) {
			t.Errorf("relay error in state %s should abort the session", s)
		}
	}

	// With the channel open (or the session already over) the relay is
	// out of the path; its errors must not kill the transfer.
	for _, s := range []negotiator.State{negotiator.StateConnected, negotiator.StateClosed} {
		if relayErrorFatal(s) {
			t.Errorf("relay error in state %s must be ignored", s)
		}
	}
}
