package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultListenAddr = ":8080"
	DefaultRelayURL   = "ws://localhost:8080/ws"
	DefaultStashURL   = "http://localhost:5000"
	DefaultSTUN       = "stun:stun.l.google.com:19302"
	DefaultLogLevel   = "info"

	// DefaultRoomTTL is how long an idle room survives on the relay before
	// it is collected. Rooms are rendezvous points, not mailboxes.
	DefaultRoomTTL = 5 * time.Minute

	// DefaultPeerWait bounds how long a session sits in AwaitingPeer before
	// it gives up and reports a timeout.
	DefaultPeerWait = 2 * time.Minute
)

// Config holds the resolved configuration for every subcommand. Fields
// that a given command does not use are simply ignored by it.
type Config struct {
	// ListenAddr is the relay server's HTTP listen address.
	ListenAddr string

	// RelayURL is the WebSocket URL of the signaling relay.
	RelayURL string

	// StashURL is the base URL of the stash persistence service, and
	// StashToken the bearer token it expects.
	StashURL   string
	StashToken string

	// STUNServers are handed to the WebRTC peer connection for candidate
	// discovery.
	STUNServers []string

	// PeerWait is the AwaitingPeer deadline; zero disables it.
	PeerWait time.Duration

	// RoomTTL is the relay's idle-room timeout.
	RoomTTL time.Duration

	LogLevel string
}

// Load resolves configuration with the following priority:
//  1. CLI flags (bound per command) - highest priority
//  2. Environment variables with the RUFF_ prefix (RUFF_RELAY_URL, ...)
//  3. Defaults - lowest priority
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RUFF")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", DefaultListenAddr)
	v.SetDefault("relay-url", DefaultRelayURL)
	v.SetDefault("stash-url", DefaultStashURL)
	v.SetDefault("stash-token", "")
	v.SetDefault("stun", []string{DefaultSTUN})
	v.SetDefault("peer-wait", DefaultPeerWait)
	v.SetDefault("room-ttl", DefaultRoomTTL)
	v.SetDefault("log", DefaultLogLevel)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := &Config{
		ListenAddr:  v.GetString("listen"),
		RelayURL:    v.GetString("relay-url"),
		StashURL:    v.GetString("stash-url"),
		StashToken:  v.GetString("stash-token"),
		STUNServers: v.GetStringSlice("stun"),
		PeerWait:    v.GetDuration("peer-wait"),
		RoomTTL:     v.GetDuration("room-ttl"),
		LogLevel:    v.GetString("log"),
	}

	if cfg.RelayURL == "" {
		return nil, fmt.Errorf("relay URL must not be empty")
	}
	if cfg.RoomTTL <= 0 {
		return nil, fmt.Errorf("room TTL must be positive")
	}

	return cfg, nil
}
