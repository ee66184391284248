package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Broker Metrics
var (
	// BrokerPublishesTotal tracks publish calls by the ingestion side
	BrokerPublishesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_publishes_total",
			Help: "Total publish calls accepted by the broker",
		},
	)

	// BrokerWaiterWakeupsTotal tracks waiters resolved by a publish
	BrokerWaiterWakeupsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_waiter_wakeups_total",
			Help: "Total long-poll waiters resolved by a matching publish",
		},
	)

	// BrokerWaitTimeoutsTotal tracks waiters resolved by deadline expiry
	BrokerWaitTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_wait_timeouts_total",
			Help: "Total long-poll waiters resolved empty by deadline expiry",
		},
	)

	// BrokerUpdatesTrimmedTotal tracks queued updates dropped by trimming
	BrokerUpdatesTrimmedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_updates_trimmed_total",
			Help: "Total queued updates dropped by age or size trimming",
		},
	)

	// BrokerActiveWaiters tracks currently parked long-poll waiters
	BrokerActiveWaiters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broker_active_waiters",
			Help: "Currently parked long-poll waiters across all columns",
		},
	)

	// BrokerQueuedUpdates tracks queued updates currently retained
	BrokerQueuedUpdates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broker_queued_updates",
			Help: "Queued updates currently retained across all columns",
		},
	)
)

// HTTP Endpoint Metrics
var (
	// PollRequestsTotal tracks long-poll requests by outcome
	PollRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_requests_total",
			Help: "Long-poll requests by outcome (items/empty/cancelled/rejected)",
		},
		[]string{"outcome"},
	)

	// IngestItemsTotal tracks items accepted through the publish endpoint
	IngestItemsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_items_total",
			Help: "Items accepted through the publish endpoint",
		},
	)

	// IngestRejectedTotal tracks publish requests rejected by rate limiting
	IngestRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_rejected_total",
			Help: "Publish requests rejected by per-IP rate limiting",
		},
	)
)

// Polling Client Metrics
var (
	// ClientPollFailuresTotal tracks transport failures across all column loops
	ClientPollFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "client_poll_failures_total",
			Help: "Transport failures across all column polling loops",
		},
	)

	// ClientItemsReceivedTotal tracks genuinely new items merged client-side
	ClientItemsReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "client_items_received_total",
			Help: "Genuinely new items merged into client state",
		},
	)

	// ClientDuplicatesDroppedTotal tracks redelivered items dropped by dedup
	ClientDuplicatesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "client_duplicates_dropped_total",
			Help: "Redelivered items dropped by client-side dedup",
		},
	)
)
