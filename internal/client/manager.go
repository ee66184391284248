package client

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/markussandin1/Newsdeck-sub001/internal/domain"
)

// Subscription names one column to poll and the filter expression to
// forward with every request.
type Subscription struct {
	Column string
	Filter string
}

// runningLoop tracks one live polling goroutine.
type runningLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns the set of column polling loops. It starts exactly one
// loop per subscribed column, pauses and resumes all loops without
// losing per-column state, and tears everything down on Close.
type Manager struct {
	transport Transport
	clock     clockwork.Clock
	notify    domain.NotifyFunc
	status    domain.StatusFunc
	recent    domain.RecencyFunc

	mu      sync.Mutex
	pollers map[string]*poller
	running map[string]*runningLoop
	paused  bool
	closed  bool
}

// NewManager creates a manager. notify, status and recent may be nil.
func NewManager(transport Transport, clock clockwork.Clock, notify domain.NotifyFunc, status domain.StatusFunc, recent domain.RecencyFunc) *Manager {
	return &Manager{
		transport: transport,
		clock:     clock,
		notify:    notify,
		status:    status,
		recent:    recent,
		pollers:   make(map[string]*poller),
		running:   make(map[string]*runningLoop),
	}
}

// SetSubscriptions reconciles the running loops against the desired
// set: loops for removed columns are stopped and their state dropped,
// loops for added columns are started (unless paused). Changing a
// column's filter restarts its loop with fresh state.
func (m *Manager) SetSubscriptions(subs []Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	wanted := make(map[string]string, len(subs))
	for _, sub := range subs {
		if sub.Column != "" {
			wanted[sub.Column] = sub.Filter
		}
	}

	for column, p := range m.pollers {
		filterExpr, keep := wanted[column]
		if keep && filterExpr == p.filter {
			continue
		}
		m.stopLocked(column)
		delete(m.pollers, column)
		slog.Debug("Column unsubscribed", "column", column)
	}

	for column, filterExpr := range wanted {
		if _, exists := m.pollers[column]; exists {
			continue
		}
		p := newPoller(column, filterExpr, m.transport, m.clock, m.notify, m.status, m.recent)
		m.pollers[column] = p
		if !m.paused {
			m.startLocked(p)
		}
		slog.Debug("Column subscribed", "column", column)
	}
}

// Pause cancels every in-flight request and halts loop iteration.
// Watermarks, backoff state and held items are preserved for Resume.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.paused {
		return
	}
	m.paused = true
	for column := range m.running {
		m.stopLocked(column)
	}
	slog.Debug("Polling paused", "columns", len(m.pollers))
}

// Resume restarts loops for all subscribed columns from their
// preserved watermarks.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.paused {
		return
	}
	m.paused = false
	for _, p := range m.pollers {
		m.startLocked(p)
	}
	slog.Debug("Polling resumed", "columns", len(m.pollers))
}

// Close cancels every loop and in-flight request unconditionally. It is
// idempotent and safe to call multiple times.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for column := range m.running {
		m.stopLocked(column)
	}
	m.pollers = make(map[string]*poller)
	slog.Debug("Polling manager closed")
}

// Columns returns the currently subscribed column IDs.
func (m *Manager) Columns() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.pollers))
	for column := range m.pollers {
		out = append(out, column)
	}
	return out
}

// Watermark reports the current lastSeen watermark (epoch ms) for a
// column, or 0 if the column is unknown or has not completed a poll.
// The loop must be stopped (paused or closed) for the value to be
// stable.
func (m *Manager) Watermark(column string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pollers[column]; ok {
		return p.lastSeenMs
	}
	return 0
}

// Items returns the items held for a column. The loop must be stopped
// (paused or closed) for the snapshot to be consistent.
func (m *Manager) Items(column string) []domain.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pollers[column]; ok {
		return p.Items()
	}
	return nil
}

// startLocked launches the loop goroutine for p. Callers must hold m.mu.
func (m *Manager) startLocked(p *poller) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.running[p.column] = &runningLoop{cancel: cancel, done: done}
	go func() {
		defer close(done)
		p.run(ctx)
	}()
}

// stopLocked cancels a running loop and waits for it to exit, so no
// response is processed after stop. Callers must hold m.mu.
func (m *Manager) stopLocked(column string) {
	loop, ok := m.running[column]
	if !ok {
		return
	}
	delete(m.running, column)
	loop.cancel()
	<-loop.done
}
