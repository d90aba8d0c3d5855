package transfer

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// ImportFunc hands a received payload to the stash service and returns
// the imported stash's ID.
type ImportFunc func(ctx context.Context, payload json.RawMessage) (string, error)

// Receiver drives the receiving half of a transfer. At most one import
// happens per session: after a successful import, duplicate channel
// messages are dropped, and after a failed one the session stays failed.
type Receiver struct {
	importFn ImportFunc
	log      *logrus.Entry

	mu         sync.Mutex
	imported   bool
	importedID string
	failure    error
}

// NewReceiver prepares a receiver for one session.
func NewReceiver(importFn ImportFunc, logger *logrus.Logger) *Receiver {
	return &Receiver{
		importFn: importFn,
		log:      logger.WithField("component", "transfer"),
	}
}

// OnMessage handles one channel message: validate the bytes as JSON,
// then import. The raw bytes pass to the import untouched, with no
// re-marshaling, so the payload's exact encoding is preserved.
func (r *Receiver) OnMessage(ctx context.Context, raw []byte) (string, error) {
	r.mu.Lock()
	if r.imported {
		id := r.importedID
		r.mu.Unlock()
		r.log.Debug("duplicate payload message dropped")
		return id, nil
	}
	if r.failure != nil {
		err := r.failure
		r.mu.Unlock()
		return "", err
	}
	r.mu.Unlock()

	if !json.Valid(raw) {
		err := NewError("receive", ErrCorruptTransfer, "payload is not valid JSON")
		r.recordFailure(err)
		return "", err
	}

	id, err := r.importFn(ctx, json.RawMessage(raw))
	if err != nil {
		wrapped := WrapError("import", ErrImportRejected, err)
		r.recordFailure(wrapped)
		return "", wrapped
	}

	r.mu.Lock()
	r.imported = true
	r.importedID = id
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{"bytes": len(raw), "stash": id}).Info("payload imported")
	return id, nil
}

func (r *Receiver) recordFailure(err error) {
	r.mu.Lock()
	if r.failure == nil {
		r.failure = err
	}
	r.mu.Unlock()
	r.log.WithError(err).Warn("transfer failed")
}

// Imported reports whether a payload landed, and its stash ID.
func (r *Receiver) Imported() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.importedID, r.imported
}
