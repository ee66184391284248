package broker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markussandin1/Newsdeck-sub001/internal/domain"
)

func item(id string) domain.Item {
	return domain.Item{ID: id, CreatedMs: 1}
}

// waitResult captures one Wait call resolved in a background goroutine.
type waitResult struct {
	items []domain.Item
	err   error
}

// startWait issues Wait in a goroutine and returns the result channel.
func startWait(b *Broker, columnID string, since time.Time, timeout time.Duration) <-chan waitResult {
	return startWaitCtx(context.Background(), b, columnID, since, timeout)
}

func startWaitCtx(ctx context.Context, b *Broker, columnID string, since time.Time, timeout time.Duration) <-chan waitResult {
	ch := make(chan waitResult, 1)
	go func() {
		items, err := b.Wait(ctx, columnID, since, timeout)
		ch <- waitResult{items: items, err: err}
	}()
	return ch
}

// receive waits for a background Wait to resolve, failing the test if
// it takes longer than a second of real time.
func receive(t *testing.T, ch <-chan waitResult) waitResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(time.Second):
		t.Fatal("Wait did not resolve in time")
		return waitResult{}
	}
}

func TestWait_ReturnsQueuedItemsImmediately(t *testing.T) {
	b := New(clockwork.NewFakeClock())
	b.Publish([]string{"C1"}, []domain.Item{item("a")})

	items, err := b.Wait(context.Background(), "C1", time.Time{}, 25*time.Second)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID)
}

func TestWait_SinceExcludesAlreadySeenUpdates(t *testing.T) {
	fc := clockwork.NewFakeClock()
	b := New(fc)

	b.Publish([]string{"C1"}, []domain.Item{item("old")})
	since := fc.Now()
	fc.Advance(time.Second)
	b.Publish([]string{"C1"}, []domain.Item{item("new")})

	items, err := b.Wait(context.Background(), "C1", since, 25*time.Second)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0].ID)
}

func TestWait_ParkedWaiterWokenByPublish(t *testing.T) {
	fc := clockwork.NewFakeClock()
	b := New(fc)

	ch := startWait(b, "C1", time.Time{}, 25*time.Second)
	fc.BlockUntil(1) // waiter parked on its deadline timer

	b.Publish([]string{"C1"}, []domain.Item{item("a")})

	res := receive(t, ch)
	require.NoError(t, res.err)
	require.Len(t, res.items, 1)
	assert.Equal(t, "a", res.items[0].ID)
	assert.Equal(t, 0, b.ActiveWaiters())
}

func TestWait_NoMissedWakeupWithWatermark(t *testing.T) {
	fc := clockwork.NewFakeClock()
	b := New(fc)

	b.Publish([]string{"C1"}, []domain.Item{item("seen")})
	since := fc.Now()

	ch := startWait(b, "C1", since, 25*time.Second)
	fc.BlockUntil(1)

	fc.Advance(time.Second)
	b.Publish([]string{"C1"}, []domain.Item{item("fresh")})

	res := receive(t, ch)
	require.NoError(t, res.err)
	require.Len(t, res.items, 1)
	assert.Equal(t, "fresh", res.items[0].ID)
}

func TestWait_TimeoutResolvesEmpty(t *testing.T) {
	fc := clockwork.NewFakeClock()
	b := New(fc)

	ch := startWait(b, "C2", fc.Now(), 100*time.Millisecond)
	fc.BlockUntil(1)
	fc.Advance(100 * time.Millisecond)

	res := receive(t, ch)
	require.NoError(t, res.err)
	assert.Empty(t, res.items)
	assert.Equal(t, 0, b.ActiveWaiters())
}

func TestWait_CancellationDeregistersWaiter(t *testing.T) {
	fc := clockwork.NewFakeClock()
	b := New(fc)

	ctx, cancel := context.WithCancel(context.Background())
	ch := startWaitCtx(ctx, b, "C1", time.Time{}, 25*time.Second)
	fc.BlockUntil(1)

	cancel()
	res := receive(t, ch)
	require.ErrorIs(t, res.err, context.Canceled)
	assert.Equal(t, 0, b.ActiveWaiters())
}

func TestWait_ResolvedExactlyOnceWhenPublishRacesDeadline(t *testing.T) {
	fc := clockwork.NewFakeClock()
	b := New(fc)

	ch := startWait(b, "C1", time.Time{}, 100*time.Millisecond)
	fc.BlockUntil(1)

	b.Publish([]string{"C1"}, []domain.Item{item("a")})
	fc.Advance(100 * time.Millisecond)

	res := receive(t, ch)
	require.NoError(t, res.err)
	require.Len(t, res.items, 1, "publish result must win over the deadline")
	assert.Equal(t, 0, b.ActiveWaiters())

	// The deadline firing afterwards must not produce a second result.
	select {
	case <-ch:
		t.Fatal("Wait resolved twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish_WakesAllWaitersForColumn(t *testing.T) {
	fc := clockwork.NewFakeClock()
	b := New(fc)

	const waiters = 5
	chans := make([]<-chan waitResult, waiters)
	for i := range chans {
		chans[i] = startWait(b, "C1", time.Time{}, 25*time.Second)
	}
	fc.BlockUntil(waiters)

	b.Publish([]string{"C1"}, []domain.Item{item("a")})

	for _, ch := range chans {
		res := receive(t, ch)
		require.NoError(t, res.err)
		require.Len(t, res.items, 1)
	}
	assert.Equal(t, 0, b.ActiveWaiters())
}

func TestPublish_MultipleColumnsWakeIndependently(t *testing.T) {
	fc := clockwork.NewFakeClock()
	b := New(fc)

	chA := startWait(b, "A", time.Time{}, 25*time.Second)
	chB := startWait(b, "B", time.Time{}, 25*time.Second)
	fc.BlockUntil(2)

	b.Publish([]string{"A"}, []domain.Item{item("a")})

	res := receive(t, chA)
	require.Len(t, res.items, 1)
	assert.Equal(t, 1, b.ActiveWaiters(), "waiter on B stays parked")

	b.Publish([]string{"B"}, []domain.Item{item("b")})
	res = receive(t, chB)
	require.Len(t, res.items, 1)
	assert.Equal(t, "b", res.items[0].ID)
}

func TestPublish_UnknownColumnsCreatedOnDemand(t *testing.T) {
	b := New(clockwork.NewFakeClock())

	assert.NotPanics(t, func() {
		b.Publish([]string{"never-seen"}, []domain.Item{item("a")})
	})
	assert.Equal(t, 1, b.QueuedUpdates())
}

func TestPublish_EmptyInputsAreNoOps(t *testing.T) {
	b := New(clockwork.NewFakeClock())

	b.Publish(nil, []domain.Item{item("a")})
	b.Publish([]string{"C1"}, nil)
	assert.Equal(t, 0, b.QueuedUpdates())
}

func TestTrim_CapsQueueSize(t *testing.T) {
	fc := clockwork.NewFakeClock()
	b := New(fc)

	for i := 0; i < 150; i++ {
		b.Publish([]string{"C3"}, []domain.Item{item(fmt.Sprintf("i%d", i))})
	}

	assert.LessOrEqual(t, b.QueuedUpdates(), 100)

	// Only the most recent 100 updates survive.
	items, err := b.Wait(context.Background(), "C3", time.Time{}, time.Second)
	require.NoError(t, err)
	require.Len(t, items, 100)
	assert.Equal(t, "i50", items[0].ID)
	assert.Equal(t, "i149", items[99].ID)
}

func TestTrim_DropsUpdatesOlderThanRetention(t *testing.T) {
	fc := clockwork.NewFakeClock()
	b := New(fc)

	b.Publish([]string{"C1"}, []domain.Item{item("stale")})
	fc.Advance(6 * time.Minute)
	b.Publish([]string{"C1"}, []domain.Item{item("live")})

	assert.Equal(t, 1, b.QueuedUpdates())

	items, err := b.Wait(context.Background(), "C1", time.Time{}, time.Second)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "live", items[0].ID)
}

func TestTrim_HonorsConfiguredBounds(t *testing.T) {
	fc := clockwork.NewFakeClock()
	b := New(fc, WithMaxQueuedUpdates(3), WithRetention(time.Minute))

	for i := 0; i < 5; i++ {
		b.Publish([]string{"C1"}, []domain.Item{item(fmt.Sprintf("i%d", i))})
	}
	assert.Equal(t, 3, b.QueuedUpdates())

	fc.Advance(2 * time.Minute)
	b.Publish([]string{"C1"}, []domain.Item{item("fresh")})
	assert.Equal(t, 1, b.QueuedUpdates())
}

func TestWait_ConcurrentPublishersAndWaiters(t *testing.T) {
	b := New(clockwork.NewRealClock())

	const publishers = 4
	const perPublisher = 25
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < perPublisher; i++ {
			for p := 0; p < publishers; p++ {
				b.Publish([]string{"C1"}, []domain.Item{item(fmt.Sprintf("p%d-%d", p, i))})
			}
		}
	}()

	// Read from the beginning each round and dedup by ID: redelivery is
	// allowed (at-least-once), losing items for an active reader is not.
	seen := make(map[string]struct{})
	deadline := time.Now().Add(5 * time.Second)
	for len(seen) < publishers*perPublisher && time.Now().Before(deadline) {
		items, err := b.Wait(context.Background(), "C1", time.Time{}, 100*time.Millisecond)
		require.NoError(t, err)
		for _, it := range items {
			seen[it.ID] = struct{}{}
		}
	}
	<-done

	assert.Len(t, seen, publishers*perPublisher)
}
