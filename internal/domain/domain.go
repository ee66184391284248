package domain

import (
	"context"
	"time"
)

// --- Model types ---

// Item is a single record flowing through the delivery pipeline. The
// broker only inspects ID (dedup identity) and carries the payload
// opaquely; CreatedMs is the ingestion timestamp in epoch milliseconds.
type Item struct {
	ID        string         `json:"id"`
	CreatedMs int64          `json:"created_ms"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// CreatedAt returns the item's creation time.
func (i Item) CreatedAt() time.Time {
	return time.UnixMilli(i.CreatedMs)
}

// ColumnUpdate is one publish event recorded in a column's history.
type ColumnUpdate struct {
	Items       []Item
	PublishedAt time.Time
}

// --- Interfaces ---

// Publisher is the producer-side contract. The ingestion pipeline calls
// Publish after deciding which columns a batch of items belongs to; the
// broker itself never decides column membership.
type Publisher interface {
	Publish(columnIDs []string, items []Item)
}

// UpdateWaiter is the consumer-side contract onto the broker. Wait
// returns all items published to the column strictly after since (the
// zero time means "from the beginning"). When no such items exist it
// parks until a matching publish or until timeout elapses; timeout
// resolves with an empty result and a nil error. The only error
// returned is ctx's, when the caller goes away mid-wait.
type UpdateWaiter interface {
	Wait(ctx context.Context, columnID string, since time.Time, timeout time.Duration) ([]Item, error)
}

// NotifyFunc receives freshly arrived items for a column that passed
// the recency gate. The notification collaborator owns all
// presentation decisions (sound, desktop alerts, rendering).
type NotifyFunc func(columnID string, items []Item)

// StatusFunc reports the connection status of a column's polling loop.
// Sustained transport failures surface here as connected=false; the
// loop itself keeps retrying.
type StatusFunc func(columnID string, connected bool)

// RecencyFunc decides whether an item is fresh enough to notify about.
type RecencyFunc func(item Item, now time.Time) bool

// RecentWithin returns a RecencyFunc accepting items created at most
// maxAge before now.
func RecentWithin(maxAge time.Duration) RecencyFunc {
	return func(item Item, now time.Time) bool {
		if item.CreatedMs == 0 {
			return false
		}
		return now.Sub(item.CreatedAt()) <= maxAge
	}
}
