// Package negotiator owns the peer-connection lifecycle of one share
// session: it exchanges offer/answer/candidate messages through the
// signaling relay and surfaces a ready-to-use data channel once the
// connection opens.
package negotiator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/irfan-khan-96/ruff-web/internal/signaling"
)

// Role fixes which side of the negotiation a session plays. It is set
// when the session starts and never changes: exactly one member of a
// room initiates, the other responds.
type Role int

const (
	// RoleInitiator started the share. It creates the data channel and
	// produces the offer once a peer joins.
	RoleInitiator Role = iota

	// RoleResponder joined by code. It waits for the offer and answers.
	RoleResponder
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return "unknown"
	}
}

// State is the session's position in the negotiation lifecycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingPeer
	StateNegotiating
	StateConnected

	// StateClosed is the normal terminal state: the channel closed after
	// (or during) a transfer.
	StateClosed

	// StateFailed is the error terminal state. A failed session is never
	// reused; retry means a brand-new room code.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingPeer:
		return "awaiting-peer"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool {
	return s == StateClosed || s == StateFailed
}

var (
	// ErrNegotiationFailed means the connection never reached an open
	// state: description rejected, or closed before opening.
	ErrNegotiationFailed = errors.New("negotiation failed")

	// ErrTimedOutWaitingForPeer means nobody joined the room before the
	// AwaitingPeer deadline.
	ErrTimedOutWaitingForPeer = errors.New("timed out waiting for peer")
)

// SignalSender delivers negotiation payloads to the other member of the
// room, normally via the relay. Delivery is best effort.
type SignalSender interface {
	Signal(room string, payload *signaling.SignalPayload) error
}

// Config carries the per-session negotiation options.
type Config struct {
	STUNServers []string

	// PeerWait bounds the AwaitingPeer state; zero disables the deadline.
	PeerWait time.Duration

	// OnChannel is invoked as soon as the data channel exists, before it
	// opens. The receive side uses it to attach its message handler
	// early enough that no message can slip past.
	OnChannel func(*webrtc.DataChannel)

	// Loopback includes loopback ICE candidates, for single-host setups.
	Loopback bool
}

// Update is a state-machine transition notification.
type Update struct {
	State State

	// Err is set when State is StateFailed.
	Err error
}

// Negotiator drives one session's negotiation state machine.
type Negotiator struct {
	role   Role
	room   string
	sender SignalSender
	pc     *webrtc.PeerConnection
	log    *logrus.Entry

	mu        sync.Mutex
	state     State
	failure   error
	channel   *webrtc.DataChannel
	pending   []webrtc.ICECandidateInit
	remoteSet bool
	offerSent bool
	peerTimer *time.Timer
	closed    bool

	peerWait time.Duration
	updates  chan Update
	ready    chan *webrtc.DataChannel
}

// New builds a negotiator for one room. The initiator's data channel is
// created immediately; it only becomes usable once the underlying
// connection opens.
func New(role Role, room string, sender SignalSender, cfg Config, logger *logrus.Logger) (*Negotiator, error) {
	pc, err := newPeerConnection(cfg)
	if err != nil {
		return nil, err
	}

	n := &Negotiator{
		role:     role,
		room:     room,
		sender:   sender,
		pc:       pc,
		state:    StateIdle,
		peerWait: cfg.PeerWait,
		updates:  make(chan Update, 8),
		ready:    make(chan *webrtc.DataChannel, 1),
		log: logger.WithFields(logrus.Fields{
			"component": "negotiator",
			"room":      room,
			"role":      role.String(),
		}),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		// Trickle: candidates stream out as they are discovered, not
		// batched into the description.
		if err := n.sender.Signal(n.room, signaling.CandidatePayload(c.ToJSON())); err != nil {
			n.log.WithError(err).Warn("failed to relay candidate")
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		n.log.WithField("state", s.String()).Debug("connection state change")
		switch s {
		case webrtc.PeerConnectionStateFailed:
			n.fail(fmt.Errorf("%w: connection failed", ErrNegotiationFailed))
		case webrtc.PeerConnectionStateClosed:
			n.connectionClosed()
		}
	})

	if role == RoleInitiator {
		dc, err := newDataChannel(pc)
		if err != nil {
			pc.Close()
			return nil, err
		}
		n.bindChannel(dc, cfg.OnChannel)
	} else {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			n.bindChannel(dc, cfg.OnChannel)
		})
	}

	return n, nil
}

// bindChannel wires the session's data channel, on the initiator at
// creation time and on the responder when the channel arrives with the
// inbound connection.
func (n *Negotiator) bindChannel(dc *webrtc.DataChannel, hook func(*webrtc.DataChannel)) {
	n.mu.Lock()
	n.channel = dc
	n.mu.Unlock()

	if hook != nil {
		hook(dc)
	}

	dc.OnOpen(func() {
		n.channelOpened(dc)
	})
	dc.OnClose(func() {
		n.channelClosed()
	})
}

// Start moves the session from Idle to AwaitingPeer and arms the peer
// deadline.
func (n *Negotiator) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateIdle {
		return fmt.Errorf("cannot start negotiation from state %s", n.state)
	}
	n.setStateLocked(StateAwaitingPeer, nil)

	if n.peerWait > 0 {
		n.peerTimer = time.AfterFunc(n.peerWait, func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if n.state == StateAwaitingPeer {
				n.failLocked(ErrTimedOutWaitingForPeer)
			}
		})
	}
	return nil
}

// HandlePeerJoined reacts to the relay's peer_joined notification. Only
// the initiator acts on it: it synthesizes the offer and sends it
// through the relay. The responder waits passively for the offer.
func (n *Negotiator) HandlePeerJoined() error {
	if n.role != RoleInitiator {
		n.log.Debug("responder ignoring peer_joined")
		return nil
	}

	n.mu.Lock()
	if n.state != StateAwaitingPeer {
		n.log.WithField("state", n.state.String()).Debug("peer_joined ignored")
		n.mu.Unlock()
		return nil
	}
	n.setStateLocked(StateNegotiating, nil)
	n.mu.Unlock()

	offer, err := n.pc.CreateOffer(nil)
	if err != nil {
		return n.fail(fmt.Errorf("%w: create offer: %v", ErrNegotiationFailed, err))
	}
	if err := n.pc.SetLocalDescription(offer); err != nil {
		return n.fail(fmt.Errorf("%w: set local description: %v", ErrNegotiationFailed, err))
	}

	n.mu.Lock()
	n.offerSent = true
	n.mu.Unlock()

	if err := n.sender.Signal(n.room, signaling.DescriptionPayload(*n.pc.LocalDescription())); err != nil {
		return n.fail(fmt.Errorf("%w: send offer: %v", ErrNegotiationFailed, err))
	}
	return nil
}

// HandleSignal feeds one relayed negotiation payload into the state
// machine. Out-of-role and duplicate descriptions are logged and
// dropped, never fatal: the relay may duplicate delivery, and a stale
// message must not kill a healthy session.
func (n *Negotiator) HandleSignal(payload *signaling.SignalPayload) error {
	switch payload.Type {
	case signaling.SignalTypeCandidate:
		return n.handleCandidate(payload)
	case signaling.SignalTypeOffer:
		return n.handleOffer(payload)
	case signaling.SignalTypeAnswer:
		return n.handleAnswer(payload)
	default:
		n.log.WithField("type", payload.Type).Debug("unknown signal payload dropped")
		return nil
	}
}

// handleCandidate applies a trickled candidate. Candidates legally race
// the remote description; until it is set they are buffered, then
// flushed, never rejected.
func (n *Negotiator) handleCandidate(payload *signaling.SignalPayload) error {
	if payload.Candidate == nil {
		n.log.Debug("empty candidate payload dropped")
		return nil
	}
	init := payload.Candidate.ToPion()

	n.mu.Lock()
	if n.state.terminal() {
		n.mu.Unlock()
		return nil
	}
	if !n.remoteSet {
		n.pending = append(n.pending, init)
		n.mu.Unlock()
		n.log.Debug("candidate buffered until remote description")
		return nil
	}
	n.mu.Unlock()

	if err := n.pc.AddICECandidate(init); err != nil {
		// A single bad candidate must not sink the session; the rest of
		// the pool can still produce a route.
		n.log.WithError(err).Warn("failed to apply candidate")
	}
	return nil
}

func (n *Negotiator) handleOffer(payload *signaling.SignalPayload) error {
	if n.role != RoleResponder {
		n.log.Warn("out-of-role offer dropped")
		return nil
	}

	n.mu.Lock()
	if n.state.terminal() || n.remoteSet {
		n.log.Debug("duplicate offer dropped")
		n.mu.Unlock()
		return nil
	}
	if n.state == StateAwaitingPeer {
		n.setStateLocked(StateNegotiating, nil)
	}
	n.mu.Unlock()

	desc, err := payload.Description()
	if err != nil {
		return n.fail(fmt.Errorf("%w: %v", ErrNegotiationFailed, err))
	}
	if err := n.pc.SetRemoteDescription(desc); err != nil {
		return n.fail(fmt.Errorf("%w: set remote description: %v", ErrNegotiationFailed, err))
	}
	n.flushPending()

	answer, err := n.pc.CreateAnswer(nil)
	if err != nil {
		return n.fail(fmt.Errorf("%w: create answer: %v", ErrNegotiationFailed, err))
	}
	if err := n.pc.SetLocalDescription(answer); err != nil {
		return n.fail(fmt.Errorf("%w: set local description: %v", ErrNegotiationFailed, err))
	}
	if err := n.sender.Signal(n.room, signaling.DescriptionPayload(*n.pc.LocalDescription())); err != nil {
		return n.fail(fmt.Errorf("%w: send answer: %v", ErrNegotiationFailed, err))
	}
	return nil
}

func (n *Negotiator) handleAnswer(payload *signaling.SignalPayload) error {
	if n.role != RoleInitiator {
		n.log.Warn("out-of-role answer dropped")
		return nil
	}

	n.mu.Lock()
	if n.state.terminal() || !n.offerSent || n.remoteSet {
		n.log.Debug("unexpected answer dropped")
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	desc, err := payload.Description()
	if err != nil {
		return n.fail(fmt.Errorf("%w: %v", ErrNegotiationFailed, err))
	}
	if err := n.pc.SetRemoteDescription(desc); err != nil {
		return n.fail(fmt.Errorf("%w: set remote description: %v", ErrNegotiationFailed, err))
	}
	n.flushPending()
	return nil
}

// flushPending marks the remote description as set and applies every
// buffered candidate.
func (n *Negotiator) flushPending() {
	n.mu.Lock()
	n.remoteSet = true
	buffered := n.pending
	n.pending = nil
	n.mu.Unlock()

	for _, init := range buffered {
		if err := n.pc.AddICECandidate(init); err != nil {
			n.log.WithError(err).Warn("failed to apply buffered candidate")
		}
	}
}

// channelOpened is the only trigger for Connected: readiness is never
// inferred from description or candidate exchange.
func (n *Negotiator) channelOpened(dc *webrtc.DataChannel) {
	n.mu.Lock()
	if n.state.terminal() {
		n.mu.Unlock()
		return
	}
	n.stopTimerLocked()
	n.setStateLocked(StateConnected, nil)
	n.mu.Unlock()

	n.ready <- dc
}

func (n *Negotiator) channelClosed() {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch {
	case n.state == StateConnected:
		// Normal end of a transfer.
		n.setStateLocked(StateClosed, nil)
	case n.state.terminal():
	default:
		n.failLocked(fmt.Errorf("%w: channel closed before opening", ErrNegotiationFailed))
	}
}

func (n *Negotiator) connectionClosed() {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch {
	case n.state == StateConnected:
		n.setStateLocked(StateClosed, nil)
	case n.state.terminal():
	default:
		n.failLocked(fmt.Errorf("%w: connection closed", ErrNegotiationFailed))
	}
}

func (n *Negotiator) fail(err error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failLocked(err)
	return err
}

func (n *Negotiator) failLocked(err error) {
	if n.state.terminal() {
		return
	}
	n.stopTimerLocked()
	n.failure = err
	n.setStateLocked(StateFailed, err)
	n.log.WithError(err).Warn("session failed")
}

func (n *Negotiator) setStateLocked(s State, err error) {
	n.state = s
	update := Update{State: s, Err: err}
	for {
		select {
		case n.updates <- update:
			return
		default:
			// Evict the oldest update so a lagging consumer still sees
			// the newest state, terminal failures included.
			select {
			case <-n.updates:
			default:
			}
		}
	}
}

func (n *Negotiator) stopTimerLocked() {
	if n.peerTimer != nil {
		n.peerTimer.Stop()
		n.peerTimer = nil
	}
}

// State returns the current session state.
func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Err returns the terminal failure, if any.
func (n *Negotiator) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.failure
}

// Updates delivers state transitions. The channel is buffered; slow
// consumers miss intermediate states but always observe the latest read.
func (n *Negotiator) Updates() <-chan Update {
	return n.updates
}

// Ready delivers the data channel exactly once, when it opens.
func (n *Negotiator) Ready() <-chan *webrtc.DataChannel {
	return n.ready
}

// Close releases the peer connection and channel. It is safe on every
// exit path (success, failure, user cancel) and idempotent.
func (n *Negotiator) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.stopTimerLocked()
	if !n.state.terminal() {
		n.setStateLocked(StateClosed, nil)
	}
	channel := n.channel
	n.mu.Unlock()

	if channel != nil {
		channel.Close()
	}
	return n.pc.Close()
}
