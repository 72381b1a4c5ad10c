package status

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultRetention  = time.Hour
	defaultMaxEntries = 10000
)

type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan Message, error)
}

type trackerKey struct {
	channel string
	nodeID  string
}

type trackedMessage struct {
	msg        Message
	observedAt time.Time
}

type TrackerOption func(*Tracker)

// WithRetention forgets a node's status once nothing new arrived for d.
func WithRetention(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.retention = d
	}
}

// WithMaxEntries caps how many (channel, node) pairs are kept. The least
// recently observed pair is evicted first.
func WithMaxEntries(n int) TrackerOption {
	return func(t *Tracker) {
		t.maxEntries = max(n, 1)
	}
}

// Tracker keeps the latest status per (channel, node), bounded by a retention
// window and an entry cap.
type Tracker struct {
	mu         sync.RWMutex
	latest     map[trackerKey]trackedMessage
	retention  time.Duration
	maxEntries int
	lastSweep  time.Time
	logger     *slog.Logger
}

func NewTracker(logger *slog.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		latest:     make(map[trackerKey]trackedMessage),
		retention:  defaultRetention,
		maxEntries: defaultMaxEntries,
		lastSweep:  time.Now(),
		logger:     logger.With("module", "status_tracker"),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Observe records msg unless a newer message is already known.
func (t *Tracker) Observe(channel string, msg Message) {
	key := trackerKey{channel: channel, nodeID: msg.NodeID}
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastSweep) >= t.retention {
		t.sweep(now)
	}

	current, ok := t.latest[key]
	if ok && !t.expired(current, now) && !msg.Newer(current.msg) {
		return
	}

	if !ok && len(t.latest) >= t.maxEntries {
		t.evictOldest()
	}

	t.latest[key] = trackedMessage{msg: msg, observedAt: now}
}

// Get returns the latest message, or an Initial status when none arrived
// within the retention window.
func (t *Tracker) Get(channel, nodeID string) Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tracked, ok := t.latest[trackerKey{channel: channel, nodeID: nodeID}]
	if !ok || t.expired(tracked, time.Now()) {
		return Message{NodeID: nodeID, Status: Initial}
	}

	return tracked.msg
}

// Len reports how many (channel, node) pairs are held.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.latest)
}

func (t *Tracker) expired(tracked trackedMessage, now time.Time) bool {
	return now.Sub(tracked.observedAt) >= t.retention
}

func (t *Tracker) sweep(now time.Time) {
	for key, tracked := range t.latest {
		if t.expired(tracked, now) {
			delete(t.latest, key)
		}
	}

	t.lastSweep = now
}

func (t *Tracker) evictOldest() {
	var (
		oldestKey trackerKey
		oldestAt  time.Time
		found     bool
	)

	for key, tracked := range t.latest {
		if !found || tracked.observedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = key, tracked.observedAt, true
		}
	}

	if found {
		delete(t.latest, oldestKey)
	}
}

// Follow subscribes to channels and feeds the tracker until ctx is done.
func (t *Tracker) Follow(ctx context.Context, subscriber Subscriber, channels ...string) error {
	for _, channel := range channels {
		messages, err := subscriber.Subscribe(ctx, channel)
		if err != nil {
			return err
		}

		go func(channel string) {
			for msg := range messages {
				t.Observe(channel, msg)
			}

			t.logger.DebugContext(ctx, "Status subscription closed", "channel", channel)
		}(channel)
	}

	return nil
}
