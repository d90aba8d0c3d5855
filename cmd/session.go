package cmd

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/irfan-khan-96/ruff-web/internal/config"
	"github.com/irfan-khan-96/ruff-web/internal/logging"
	"github.com/irfan-khan-96/ruff-web/internal/negotiator"
	"github.com/irfan-khan-96/ruff-web/internal/signaling"
)

// joinWait bounds how long a command waits for the relay to acknowledge
// a join before giving up on the connection entirely.
const joinWait = 10 * time.Second

// ConnectionContext bundles the relay connection shared by the send and
// receive commands.
type ConnectionContext struct {
	Client  *signaling.Client
	Handler *signaling.Handler
	Config  *config.Config
	Log     *logrus.Logger

	room string
}

// NewConnectionContext loads configuration, connects to the relay and
// starts routing its messages.
func NewConnectionContext(flags *pflag.FlagSet) (*ConnectionContext, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel)

	client := signaling.NewClient(cfg.RelayURL, logger)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect to relay: %w", err)
	}

	handler := signaling.NewHandler(client.Incoming(), logger)
	go handler.Start()

	return &ConnectionContext{
		Client:  client,
		Handler: handler,
		Config:  cfg,
		Log:     logger,
	}, nil
}

// Close releases room membership explicitly before tearing the
// connection down, so the peer hears peer_left even if the relay never
// notices the socket closing.
func (c *ConnectionContext) Close() {
	if c.Client == nil {
		return
	}
	if c.room != "" {
		c.Client.Leave(c.room)
		c.room = ""
	}
	c.Client.Close()
}

// relayErrorFatal reports whether a relay-side error can still affect
// the session. Once the data channel is open the relay is out of the
// path; its errors (room expiry, relay restart) no longer concern the
// transfer in flight.
func relayErrorFatal(state negotiator.State) bool {
	switch state {
	case negotiator.StateConnected, negotiator.StateClosed:
		return false
	default:
		return true
	}
}

// JoinRoom joins the room and waits for the relay's verdict. A full
// room surfaces as signaling.ErrRoomFull so callers can word the
// failure for the user.
func (c *ConnectionContext) JoinRoom(code string) error {
	c.Client.Join(code)

	select {
	case ack := <-c.Handler.Joined:
		if ack.Accepted {
			c.room = code
			return nil
		}
		if ack.Reason == signaling.ReasonRoomFull {
			return signaling.ErrRoomFull
		}
		return fmt.Errorf("join rejected: %s", ack.Reason)
	case msg := <-c.Handler.Errors:
		return fmt.Errorf("relay error: %s", msg)
	case <-time.After(joinWait):
		return fmt.Errorf("no join acknowledgement from relay")
	}
}
