package negotiator

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// channelLabel names the single data channel a share session uses.
const channelLabel = "stash"

// newPeerConnection centralizes ICE server configuration.
func newPeerConnection(cfg Config) (*webrtc.PeerConnection, error) {
	conf := webrtc.Configuration{}
	if len(cfg.STUNServers) > 0 {
		conf.ICEServers = []webrtc.ICEServer{{URLs: cfg.STUNServers}}
	}

	if cfg.Loopback {
		se := webrtc.SettingEngine{}
		se.SetIncludeLoopbackCandidate(true)
		api := webrtc.NewAPI(webrtc.WithSettingEngine(se))
		pc, err := api.NewPeerConnection(conf)
		if err != nil {
			return nil, fmt.Errorf("create peer connection: %w", err)
		}
		return pc, nil
	}

	pc, err := webrtc.NewPeerConnection(conf)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return pc, nil
}

// newDataChannel creates the initiator's channel. It exists before
// negotiation completes and only becomes usable once the connection
// opens.
func newDataChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := true
	dc, err := pc.CreateDataChannel(channelLabel, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	return dc, nil
}
