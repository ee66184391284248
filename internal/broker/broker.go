package broker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/markussandin1/Newsdeck-sub001/internal/domain"
	"github.com/markussandin1/Newsdeck-sub001/internal/metrics"
)

const (
	// DefaultRetention is how long a queued update is kept, measured
	// against the newest publish to the same column.
	DefaultRetention = 5 * time.Minute

	// DefaultMaxQueuedUpdates caps the per-column queue regardless of age.
	DefaultMaxQueuedUpdates = 100
)

// waiter is one parked long-poll request. The resolve channel is
// buffered so a publish never blocks on a caller that raced away.
type waiter struct {
	resolve chan []domain.Item
}

// column holds the queue and waiter registry for one column. Both are
// guarded by the broker mutex.
type column struct {
	updates []domain.ColumnUpdate
	waiters map[*waiter]struct{}
}

// Broker buffers recent updates per column and wakes parked waiters on
// publish. It is safe for concurrent use; a single broker-wide mutex
// serializes access to every column's queue and waiter list.
type Broker struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	columns   map[string]*column
	retention time.Duration
	maxQueued int
	queued    int
}

// Option configures a Broker.
type Option func(*Broker)

// WithRetention overrides the age-based trimming window.
func WithRetention(d time.Duration) Option {
	return func(b *Broker) { b.retention = d }
}

// WithMaxQueuedUpdates overrides the per-column queue size cap.
func WithMaxQueuedUpdates(n int) Option {
	return func(b *Broker) { b.maxQueued = n }
}

// New creates a broker using the given clock for publish timestamps
// and wait deadlines. Pass clockwork.NewRealClock() in production.
func New(clock clockwork.Clock, opts ...Option) *Broker {
	b := &Broker{
		clock:     clock,
		columns:   make(map[string]*column),
		retention: DefaultRetention,
		maxQueued: DefaultMaxQueuedUpdates,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish appends one update to each listed column, trims the queues,
// and resolves every waiter currently parked on those columns with the
// fresh items. Unknown columns are created on demand. Publish never
// blocks and never fails.
func (b *Broker) Publish(columnIDs []string, items []domain.Item) {
	if len(columnIDs) == 0 || len(items) == 0 {
		return
	}

	b.mu.Lock()
	now := b.clock.Now()
	woken := 0
	for _, id := range columnIDs {
		col := b.getColumn(id)
		col.updates = append(col.updates, domain.ColumnUpdate{Items: items, PublishedAt: now})
		b.queued++
		b.trimLocked(col, now)

		for w := range col.waiters {
			w.resolve <- items
			delete(col.waiters, w)
			woken++
		}
	}
	b.mu.Unlock()

	metrics.BrokerPublishesTotal.Inc()
	metrics.BrokerQueuedUpdates.Set(float64(b.QueuedUpdates()))
	if woken > 0 {
		metrics.BrokerWaiterWakeupsTotal.Add(float64(woken))
		metrics.BrokerActiveWaiters.Sub(float64(woken))
	}
	slog.Debug("Published update", "columns", len(columnIDs), "items", len(items), "waiters_woken", woken)
}

// Wait returns all items published to columnID strictly after since
// (the zero time means "from the beginning"). If none exist yet it
// parks until a matching publish, the timeout, or ctx cancellation.
// Timeout is the normal no-data outcome and yields (nil, nil); only
// ctx cancellation returns an error.
func (b *Broker) Wait(ctx context.Context, columnID string, since time.Time, timeout time.Duration) ([]domain.Item, error) {
	b.mu.Lock()
	col := b.getColumn(columnID)
	if pending := itemsSince(col.updates, since); len(pending) > 0 {
		b.mu.Unlock()
		return pending, nil
	}

	w := &waiter{resolve: make(chan []domain.Item, 1)}
	col.waiters[w] = struct{}{}
	b.mu.Unlock()
	metrics.BrokerActiveWaiters.Inc()

	timer := b.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case items := <-w.resolve:
		return items, nil
	case <-timer.Chan():
		if items, ok := b.abandon(columnID, w); ok {
			// Publish won the race with the deadline; honor it.
			return items, nil
		}
		metrics.BrokerWaitTimeoutsTotal.Inc()
		return nil, nil
	case <-ctx.Done():
		if items, ok := b.abandon(columnID, w); ok {
			return items, nil
		}
		return nil, ctx.Err()
	}
}

// abandon deregisters a waiter after a timeout or cancellation. If a
// concurrent publish already resolved it, the delivered items are
// returned instead so resolution stays exactly-once.
func (b *Broker) abandon(columnID string, w *waiter) ([]domain.Item, bool) {
	b.mu.Lock()
	col := b.getColumn(columnID)
	_, registered := col.waiters[w]
	delete(col.waiters, w)
	b.mu.Unlock()

	if registered {
		metrics.BrokerActiveWaiters.Dec()
		return nil, false
	}
	// Already removed by a publish: the resolve channel holds items.
	select {
	case items := <-w.resolve:
		return items, true
	default:
		return nil, false
	}
}

// QueuedUpdates reports the number of updates currently retained across
// all columns.
func (b *Broker) QueuedUpdates() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queued
}

// ActiveWaiters reports the number of currently parked waiters.
func (b *Broker) ActiveWaiters() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, col := range b.columns {
		n += len(col.waiters)
	}
	return n
}

// getColumn returns the column for id, creating it on demand.
// Callers must hold b.mu.
func (b *Broker) getColumn(id string) *column {
	col, ok := b.columns[id]
	if !ok {
		col = &column{waiters: make(map[*waiter]struct{})}
		b.columns[id] = col
	}
	return col
}

// trimLocked drops updates older than the retention window relative to
// now and caps the queue to the newest maxQueued entries. Callers must
// hold b.mu.
func (b *Broker) trimLocked(col *column, now time.Time) {
	cutoff := now.Add(-b.retention)
	start := 0
	for start < len(col.updates) && col.updates[start].PublishedAt.Before(cutoff) {
		start++
	}
	if over := len(col.updates) - start - b.maxQueued; over > 0 {
		start += over
	}
	if start == 0 {
		return
	}
	col.updates = append([]domain.ColumnUpdate(nil), col.updates[start:]...)
	b.queued -= start
	metrics.BrokerUpdatesTrimmedTotal.Add(float64(start))
}

// itemsSince unions items from every update published strictly after
// since, preserving publish order. A zero since matches everything.
func itemsSince(updates []domain.ColumnUpdate, since time.Time) []domain.Item {
	var out []domain.Item
	for _, u := range updates {
		if since.IsZero() || u.PublishedAt.After(since) {
			out = append(out, u.Items...)
		}
	}
	return out
}
