// Package notify holds the per-session notification queue. The queue is a
// bounded drop-oldest buffer: overflowing pushes evict the oldest entry and
// count it as dropped rather than blocking or failing.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultCapacity = 20

// Config configures a Queue. The zero value is usable.
type Config struct {
	// Capacity bounds the queue. Defaults to 20.
	Capacity int

	// Clock supplies notification timestamps. Defaults to time.Now.
	Clock func() time.Time

	// Emit, when set, receives a NotificationPushed event after each Push.
	Emit func(event any)

	Logger zerolog.Logger
}

// Queue is a bounded notification queue. Safe for concurrent use.
type Queue struct {
	capacity int
	now      func() time.Time
	emit     func(event any)
	logger   zerolog.Logger

	mu      sync.Mutex
	items   []Notification // oldest first
	pushed  uint64
	dropped uint64
}

// New builds a Queue from cfg, applying defaults for unset fields.
func New(cfg Config) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaultCapacity
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Queue{
		capacity: cfg.Capacity,
		now:      cfg.Clock,
		emit:     cfg.Emit,
		logger:   cfg.Logger.With().Str("component", "notify").Logger(),
		items:    make([]Notification, 0, cfg.Capacity),
	}
}

// Push appends a notification, evicting the oldest entry when the queue is
// full, and returns the stored notification.
func (q *Queue) Push(level Level, code, message string) Notification {
	n := Notification{
		ID:      uuid.New(),
		Level:   level,
		Code:    code,
		Message: message,
		At:      q.now(),
	}

	q.mu.Lock()
	if len(q.items) >= q.capacity {
		drop := len(q.items) - q.capacity + 1
		for _, old := range q.items[:drop] {
			q.logger.Debug().
				Str("id", old.ID.String()).
				Str("code", old.Code).
				Msg("dropping oldest notification, queue full")
		}
		q.items = append(q.items[:0], q.items[drop:]...)
		q.dropped += uint64(drop)
	}
	q.items = append(q.items, n)
	q.pushed++
	q.mu.Unlock()

	if q.emit != nil {
		q.emit(NotificationPushed{Notification: n})
	}
	return n
}

// List returns the queued notifications, newest first.
func (q *Queue) List() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notification, len(q.items))
	for i, n := range q.items {
		out[len(q.items)-1-i] = n
	}
	return out
}

// Dismiss removes the notification with the given ID. Returns ErrNotFound
// when it is not queued.
func (q *Queue) Dismiss(id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// DismissAll empties the queue. Cleared entries do not count as dropped.
func (q *Queue) DismissAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}

// Len reports the number of queued notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns queue occupancy and lifetime push/drop counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Size:     len(q.items),
		Capacity: q.capacity,
		Pushed:   q.pushed,
		Dropped:  q.dropped,
	}
}
