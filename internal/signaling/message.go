package signaling

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Message is the envelope for every frame exchanged with the relay, in
// both directions. The relay reads only Type and Room; Payload stays
// opaque to it and is forwarded verbatim.
type Message struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client-to-relay message types.
const (
	MessageTypeJoin   = "join"
	MessageTypeLeave  = "leave"
	MessageTypeSignal = "signal"
)

// Relay-to-client message types.
const (
	MessageTypeJoined     = "joined"
	MessageTypePeerJoined = "peer_joined"
	MessageTypePeerLeft   = "peer_left"
	MessageTypeError      = "error"
)

// Signal payload type tags carried inside a "signal" envelope.
const (
	SignalTypeOffer     = "offer"
	SignalTypeAnswer    = "answer"
	SignalTypeCandidate = "candidate"
)

// ReasonRoomFull is the join rejection reason for a 3rd member.
const ReasonRoomFull = "room is full"

// ErrRoomFull is returned when the relay rejects a join because the room
// already has two members.
var ErrRoomFull = errors.New(ReasonRoomFull)

// JoinAck reports whether the relay accepted a join. Rooms are created
// implicitly on first join, so the only rejection is a full room.
type JoinAck struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// SignalPayload carries one negotiation step: a session description for
// offer/answer, or a single trickled ICE candidate.
type SignalPayload struct {
	Type      string     `json:"type"`
	SDP       string     `json:"sdp,omitempty"`
	Candidate *Candidate `json:"candidate,omitempty"`
}

// Candidate mirrors the browser's RTCIceCandidateInit so a web peer can
// consume relayed candidates without translation.
type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// ErrorPayload carries a relay-reported error.
type ErrorPayload struct {
	Error string `json:"error"`
}

// DescriptionPayload wraps a local session description for the wire.
func DescriptionPayload(desc webrtc.SessionDescription) *SignalPayload {
	return &SignalPayload{
		Type: desc.Type.String(),
		SDP:  desc.SDP,
	}
}

// CandidatePayload wraps a locally discovered ICE candidate for the wire.
func CandidatePayload(init webrtc.ICECandidateInit) *SignalPayload {
	return &SignalPayload{
		Type: SignalTypeCandidate,
		Candidate: &Candidate{
			Candidate:        init.Candidate,
			SDPMid:           init.SDPMid,
			SDPMLineIndex:    init.SDPMLineIndex,
			UsernameFragment: init.UsernameFragment,
		},
	}
}

// Description converts an offer/answer payload back to a pion session
// description.
func (p *SignalPayload) Description() (webrtc.SessionDescription, error) {
	var t webrtc.SDPType
	switch p.Type {
	case SignalTypeOffer:
		t = webrtc.SDPTypeOffer
	case SignalTypeAnswer:
		t = webrtc.SDPTypeAnswer
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("unsupported sdp type %q", p.Type)
	}
	if p.SDP == "" {
		return webrtc.SessionDescription{}, fmt.Errorf("%s payload missing sdp", p.Type)
	}
	return webrtc.SessionDescription{Type: t, SDP: p.SDP}, nil
}

// ToPion converts a relayed candidate back to pion's init form.
func (c *Candidate) ToPion() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

// NewSignal builds a signal envelope addressed to the other member of
// the room.
func NewSignal(room string, payload *SignalPayload) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal signal payload: %w", err)
	}
	return &Message{Type: MessageTypeSignal, Room: room, Payload: raw}, nil
}
