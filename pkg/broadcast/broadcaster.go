// Package broadcast delivers workflow-state updates to observers. The
// durable per-session snapshot is authoritative and served to pollers; the
// push channel is best-effort with a bounded queue per subscriber, dropping
// the oldest event when a slow subscriber falls behind. Publishing never
// blocks the engine.
package broadcast

import (
	"sync"

	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
)

// DefaultQueueCapacity bounds each subscriber queue.
const DefaultQueueCapacity = 16

// Logger is the logging surface the broadcaster needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Event is one pushed state change.
type Event struct {
	SessionID string
	State     models.WorkflowState
}

// Subscription is one observer's bounded event queue.
type Subscription struct {
	sessionID string
	ch        chan Event
	closed    bool // guarded by the broadcaster mutex
}

// Events yields pushed updates. The channel closes when the session reaches
// a terminal state or the subscription is cancelled.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Broadcaster fans state updates out to subscribers and keeps the latest
// snapshot per session.
type Broadcaster struct {
	mu        sync.RWMutex
	capacity  int
	snapshots map[string]models.WorkflowState
	subs      map[string]map[*Subscription]struct{}
	logger    Logger
}

func New(capacity int, logger Logger) *Broadcaster {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Broadcaster{
		capacity:  capacity,
		snapshots: make(map[string]models.WorkflowState),
		subs:      make(map[string]map[*Subscription]struct{}),
		logger:    logger,
	}
}

// Publish stores the snapshot and enqueues the event on every subscriber of
// the session. A full queue drops its oldest event in favor of the new one.
func (b *Broadcaster) Publish(state models.WorkflowState) {
	snapshot := state.Clone()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots[snapshot.SessionID] = snapshot

	ev := Event{SessionID: snapshot.SessionID, State: snapshot}
	for sub := range b.subs[snapshot.SessionID] {
		if sub.closed {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			select {
			case <-sub.ch:
				b.logger.Debugf("Dropped oldest event for a slow subscriber of session %s", snapshot.SessionID)
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}

// Snapshot returns the latest published state of a session.
func (b *Broadcaster) Snapshot(sessionID string) (models.WorkflowState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.snapshots[sessionID]
	if !ok {
		return models.WorkflowState{}, false
	}
	return s.Clone(), true
}

// Subscribe registers a new bounded queue for the session. If a snapshot
// already exists it is delivered immediately so the subscriber starts from
// the current state.
func (b *Broadcaster) Subscribe(sessionID string) *Subscription {
	sub := &Subscription{
		sessionID: sessionID,
		ch:        make(chan Event, b.capacity),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[*Subscription]struct{})
	}
	b.subs[sessionID][sub] = struct{}{}
	if s, ok := b.snapshots[sessionID]; ok {
		sub.ch <- Event{SessionID: sessionID, State: s}
		if s.CurrentStep.Terminal() {
			sub.closed = true
			close(sub.ch)
		}
	}
	return sub
}

// Unsubscribe removes a subscriber and closes its queue.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

// CloseSession closes every subscriber of the session. The snapshot is kept
// so polling keeps working after the push stream ends.
func (b *Broadcaster) CloseSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[sessionID] {
		b.removeLocked(sub)
	}
	delete(b.subs, sessionID)
}

// Remove evicts a session's snapshot and subscribers entirely.
func (b *Broadcaster) Remove(sessionID string) {
	b.CloseSession(sessionID)
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.snapshots, sessionID)
}

func (b *Broadcaster) removeLocked(sub *Subscription) {
	if set, ok := b.subs[sub.sessionID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sub.sessionID)
		}
	}
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}
