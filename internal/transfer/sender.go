// Package transfer moves one stash payload across an open data channel:
// the sender fetches and writes it, the receiver parses and imports it.
// The payload itself is opaque; it crosses the channel byte for byte.
package transfer

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// FetchFunc resolves a stash ID to its exported payload.
type FetchFunc func(ctx context.Context, id string) (json.RawMessage, error)

// DataSender is the write side of an open data channel.
// *webrtc.DataChannel satisfies it.
type DataSender interface {
	Send(data []byte) error
}

// Sender drives the sending half of a transfer. The payload fetch runs
// concurrently with connection negotiation and happens at most once;
// the send waits for whichever finishes last.
type Sender struct {
	stashID string
	fetch   FetchFunc
	log     *logrus.Entry

	mu       sync.Mutex
	started  bool
	sent     bool
	payload  json.RawMessage
	fetchErr error
	done     chan struct{}
}

// NewSender prepares a sender for one stash payload.
func NewSender(stashID string, fetch FetchFunc, logger *logrus.Logger) *Sender {
	return &Sender{
		stashID: stashID,
		fetch:   fetch,
		done:    make(chan struct{}),
		log: logger.WithFields(logrus.Fields{
			"component": "transfer",
			"stash":     stashID,
		}),
	}
}

// Prefetch kicks off the payload fetch in the background. Calling it
// again is a no-op; the channel opening concurrently cannot trigger a
// second fetch.
func (s *Sender) Prefetch(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		payload, err := s.fetch(ctx, s.stashID)

		s.mu.Lock()
		s.payload = payload
		s.fetchErr = err
		s.mu.Unlock()
		close(s.done)

		if err != nil {
			s.log.WithError(err).Warn("payload fetch failed")
		} else {
			s.log.WithField("bytes", len(payload)).Debug("payload fetched")
		}
	}()
}

// OnChannelOpen sends the payload once the channel is usable. If the
// fetch is still in flight the send is deferred until it resolves; a
// fetch failure means nothing is ever written. The whole payload goes
// out as a single channel message.
func (s *Sender) OnChannelOpen(ctx context.Context, ch DataSender) error {
	s.Prefetch(ctx)

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	if s.fetchErr != nil {
		err := s.fetchErr
		s.mu.Unlock()
		return WrapError("fetch", ErrFetchFailed, err)
	}
	if s.sent {
		s.mu.Unlock()
		s.log.Debug("payload already sent, ignoring reopen")
		return nil
	}
	payload := s.payload
	s.mu.Unlock()

	if err := ch.Send(payload); err != nil {
		return WrapError("send", ErrSendFailed, err)
	}

	s.mu.Lock()
	s.sent = true
	s.mu.Unlock()

	s.log.WithField("bytes", len(payload)).Info("payload sent")
	return nil
}

// Sent reports whether the payload went out.
func (s *Sender) Sent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// Size returns the fetched payload's size in bytes; zero until the
// fetch resolves.
func (s *Sender) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payload)
}
