package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/markussandin1/Newsdeck-sub001/internal/domain"
	"github.com/markussandin1/Newsdeck-sub001/internal/metrics"
	"github.com/markussandin1/Newsdeck-sub001/internal/platform/backoff"
)

// poller runs the long-poll loop for a single column. All state
// (watermark, backoff, held item IDs) is private to the loop; the
// manager serializes access across pause/resume by never running two
// loops for the same poller at once.
type poller struct {
	column    string
	filter    string
	transport Transport
	clock     clockwork.Clock
	notify    domain.NotifyFunc
	status    domain.StatusFunc
	recent    domain.RecencyFunc

	lastSeenMs int64
	backoff    *backoff.State
	seen       map[string]struct{}
	items      []domain.Item
	connected  bool
}

func newPoller(column, filterExpr string, transport Transport, clock clockwork.Clock, notify domain.NotifyFunc, status domain.StatusFunc, recent domain.RecencyFunc) *poller {
	return &poller{
		column:    column,
		filter:    filterExpr,
		transport: transport,
		clock:     clock,
		notify:    notify,
		status:    status,
		recent:    recent,
		backoff:   backoff.New(),
		seen:      make(map[string]struct{}),
		connected: true,
	}
}

// run issues strictly sequential poll requests until ctx is cancelled.
// Errors never terminate the loop; they only feed the backoff branch.
func (p *poller) run(ctx context.Context) {
	log := slog.Default().With("column", p.column)
	log.Debug("Polling loop started", "since_ms", p.lastSeenMs)

	for {
		if ctx.Err() != nil {
			log.Debug("Polling loop stopped")
			return
		}

		res, err := p.transport.Poll(ctx, p.column, p.lastSeenMs, p.filter)
		if ctx.Err() != nil {
			// Cancelled mid-request: a racing response must not be
			// merged into torn-down state.
			log.Debug("Polling loop stopped")
			return
		}
		if err != nil {
			metrics.ClientPollFailuresTotal.Inc()
			p.setConnected(false)
			delay := p.backoff.Next()
			log.Debug("Poll failed, backing off", "error", err, "delay", delay)
			if !p.sleep(ctx, delay) {
				return
			}
			continue
		}

		p.apply(res)
	}
}

// apply folds one successful response into loop state: dedup, merge,
// watermark advancement, backoff reset, and the notification gate.
func (p *poller) apply(res *PollResult) {
	firstPoll := p.lastSeenMs == 0

	var fresh []domain.Item
	for _, item := range res.Items {
		if _, dup := p.seen[item.ID]; dup {
			metrics.ClientDuplicatesDroppedTotal.Inc()
			continue
		}
		p.seen[item.ID] = struct{}{}
		p.items = append(p.items, item)
		fresh = append(fresh, item)
	}
	if len(fresh) > 0 {
		metrics.ClientItemsReceivedTotal.Add(float64(len(fresh)))
	}

	// The watermark never moves backwards, even on a late response.
	if res.TimestampMs > p.lastSeenMs {
		p.lastSeenMs = res.TimestampMs
	}
	p.backoff.Reset()
	p.setConnected(true)

	// The initial snapshot must never trigger notifications, and only
	// items the recency predicate accepts are forwarded.
	if firstPoll || len(fresh) == 0 || p.notify == nil {
		return
	}
	now := p.clock.Now()
	var notable []domain.Item
	for _, item := range fresh {
		if p.recent == nil || p.recent(item, now) {
			notable = append(notable, item)
		}
	}
	if len(notable) > 0 {
		p.notify(p.column, notable)
	}
}

// sleep waits for the given delay on the injected clock, returning
// false if ctx was cancelled first.
func (p *poller) sleep(ctx context.Context, d time.Duration) bool {
	timer := p.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *poller) setConnected(connected bool) {
	if p.connected == connected {
		return
	}
	p.connected = connected
	if p.status != nil {
		p.status(p.column, connected)
	}
}

// Items returns a copy of the items held for this column, in arrival
// order. Only safe to call while the loop is not running.
func (p *poller) Items() []domain.Item {
	out := make([]domain.Item, len(p.items))
	copy(out, p.items)
	return out
}
