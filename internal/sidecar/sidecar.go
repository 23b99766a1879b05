// Package sidecar implements the auth sidecar (§4.3): an in-memory index of
// Hysteria2 connection tokens that answers the proxy's per-packet "is this
// token valid?" query without ever touching the orchestrator on the hot
// path. Cold start loads a snapshot (if present) then catches up on the
// delta since the snapshot's timestamp; a background loop periodically
// re-serializes the index to disk.
package sidecar

import (
	"sync"

	"github.com/frkn-dev/pony/internal/model"
)

// Sidecar holds the in-memory token index for one env. It satisfies
// internal/api.Authenticator.
type Sidecar struct {
	env string

	mu      sync.RWMutex
	byToken map[string]string // token -> conn id
	byConn  map[string]string // conn id -> token, for Delete/Update without a token in hand
	deltaCh chan struct{}      // armed by ColdStart, closed by the next applied batch
}

// New returns an empty Sidecar for env.
func New(env string) *Sidecar {
	return &Sidecar{
		env:     env,
		byToken: make(map[string]string),
		byConn:  make(map[string]string),
	}
}

// Authenticate is the hot path (§4.3.2): pure memory, no I/O, safe to call
// from many goroutines concurrently.
func (s *Sidecar) Authenticate(token, addr string, tx uint64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byToken[token]
	return id, ok
}

// Upsert adds or replaces the token bound to connID.
func (s *Sidecar) Upsert(connID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byConn[connID]; ok && old != token {
		delete(s.byToken, old)
	}
	s.byToken[token] = connID
	s.byConn[connID] = token
}

// Remove drops connID and its token from the index. A miss is silent,
// matching the idempotent-Delete behavior required of every subscriber
// (§7: at-most-once delivery means a Delete can arrive for an entry this
// process never saw created).
func (s *Sidecar) Remove(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.byConn[connID]
	if !ok {
		return
	}
	delete(s.byToken, token)
	delete(s.byConn, connID)
}

// Len reports the number of indexed connections.
func (s *Sidecar) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byConn)
}

// armDelta opens a channel that the next batch the subscriber applies will
// close, giving ColdStart something to wait on after triggering the
// orchestrator's publish (§4.3.1).
func (s *Sidecar) armDelta() chan struct{} {
	ch := make(chan struct{})
	s.mu.Lock()
	s.deltaCh = ch
	s.mu.Unlock()
	return ch
}

// signalDelta closes the armed channel, if any, once a batch has been
// applied. A batch arriving with no one waiting (the steady-state case,
// long after cold start) is a no-op.
func (s *Sidecar) signalDelta() {
	s.mu.Lock()
	ch := s.deltaCh
	s.deltaCh = nil
	s.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// snapshotEntries returns a point-in-time copy of the index for
// serialization (§4.3.3: "acquire a read lock on the connection set").
func (s *Sidecar) snapshotEntries() []snapshotEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]snapshotEntry, 0, len(s.byConn))
	for connID, token := range s.byConn {
		entries = append(entries, snapshotEntry{ConnID: connID, Token: token})
	}
	return entries
}

// loadEntries replaces the index wholesale, used by cold start after
// loading a snapshot; the delta catch-up that follows is applied through
// applyMessage.
func (s *Sidecar) loadEntries(entries []snapshotEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byToken = make(map[string]string, len(entries))
	s.byConn = make(map[string]string, len(entries))
	for _, e := range entries {
		s.byToken[e.Token] = e.ConnID
		s.byConn[e.ConnID] = e.Token
	}
}

// applyMessage folds one lifecycle event into the index. Only Hysteria2
// connections carry a token this sidecar cares about; every other proto tag
// is a silent no-op.
func (s *Sidecar) applyMessage(msg model.Message) {
	if msg.ProtoTag != model.ProtoHysteria2 {
		return
	}
	switch msg.Action {
	case model.ActionCreate, model.ActionUpdate:
		if msg.Hysteria2Token == nil {
			return
		}
		s.Upsert(msg.ConnID, *msg.Hysteria2Token)
	case model.ActionDelete:
		s.Remove(msg.ConnID)
	}
}
