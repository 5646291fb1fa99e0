package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event announces a terminated session to every subscriber.
type Event struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Reason    string `json:"reason"`
}

// TokenEvents is the observer abstraction over the revocation channel.
// The Redis implementation backs production; tests inject an in-memory
// fake instead of standing up a broker.
type TokenEvents interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context) (<-chan Event, func(), error)
}

// RedisTokenEvents broadcasts revocations over a Redis pub/sub channel.
type RedisTokenEvents struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisTokenEvents constructs the production broadcaster.
func NewRedisTokenEvents(client *redis.Client, channel string, logger *zap.Logger) *RedisTokenEvents {
	if channel == "" {
		channel = "portal:session:revoked"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisTokenEvents{client: client, channel: channel, logger: logger}
}

// Publish fans the event out to all subscribed instances.
func (r *RedisTokenEvents) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal revocation event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish revocation event: %w", err)
	}
	return nil
}

// Subscribe returns a channel of decoded events plus a cancel func that
// tears the subscription down.
func (r *RedisTokenEvents) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Warn("malformed revocation event", zap.Error(err))
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return out, cancel, nil
}

// Watcher consumes revocation events and maintains the local set of dead
// sessions consulted on every authenticated request. Each session fires
// the onRevoke hook exactly once, even when the broadcast is delivered
// more than once in quick succession. Entries are kept for the retention
// window and then dropped: once the session has expired out of the store,
// the store lookup alone rejects its token, so the set stays bounded by
// the revocation rate rather than growing for the process lifetime.
type Watcher struct {
	events    TokenEvents
	onRevoke  func(Event)
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewWatcher builds a watcher. onRevoke may be nil. retention should match
// the session TTL; zero falls back to 24 hours.
func NewWatcher(events TokenEvents, onRevoke func(Event), retention time.Duration, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Watcher{
		events:    events,
		onRevoke:  onRevoke,
		retention: retention,
		logger:    logger,
		now:       time.Now,
		revoked:   make(map[string]time.Time),
	}
}

// Run subscribes and processes events until the context ends.
func (w *Watcher) Run(ctx context.Context) error {
	events, cancel, err := w.events.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			w.handle(ev)
		}
	}
}

// Revoked reports whether the watcher has seen a revocation for the
// session within the retention window. This is the fast path; the session
// store remains the source of truth for instances that joined after the
// broadcast.
func (w *Watcher) Revoked(sessionID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	seen, ok := w.revoked[sessionID]
	return ok && w.now().Sub(seen) < w.retention
}

func (w *Watcher) handle(ev Event) {
	if ev.SessionID == "" {
		return
	}
	w.mu.Lock()
	if seen, ok := w.revoked[ev.SessionID]; ok && w.now().Sub(seen) < w.retention {
		// duplicate delivery; the hook already fired
		w.mu.Unlock()
		return
	}
	w.revoked[ev.SessionID] = w.now()
	w.pruneLocked()
	w.mu.Unlock()

	w.logger.Info("session revoked",
		zap.String("session_id", ev.SessionID),
		zap.String("reason", ev.Reason))
	if w.onRevoke != nil {
		w.onRevoke(ev)
	}
}

// pruneLocked drops entries older than the retention window. Called with
// the mutex held on every new revocation, which keeps the set bounded
// without a background timer.
func (w *Watcher) pruneLocked() {
	cutoff := w.now().Add(-w.retention)
	for id, seen := range w.revoked {
		if seen.Before(cutoff) {
			delete(w.revoked, id)
		}
	}
}
