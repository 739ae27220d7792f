package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "course_search"
	metricsSubsystem = "catalog_events"
)

var (
	consumerLabels = []string{"topic", "consumer_group"}
	producerLabels = []string{"topic"}
)

// Consumer side. A duplicate is also counted as handled, since the
// idempotency store wraps the handler.
var (
	EventsReceived = consumerCounter("received_total",
		"Catalog events fetched from the broker, before handling.")
	EventsHandled = consumerCounter("handled_total",
		"Catalog events whose handler succeeded.")
	EventsFailed = consumerCounter("failed_total",
		"Catalog events that exhausted their retries.")
	EventsDuplicate = consumerCounter("duplicate_total",
		"Redelivered catalog events dropped by the idempotency store.")
	EventsDeadLettered = consumerCounter("dead_lettered_total",
		"Catalog events copied to their dead-letter topic.")

	EventHandleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "handle_duration_seconds",
		Help:      "Time spent in the catalog event handler, retries included.",
		Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
	}, consumerLabels)
)

// Producer side: reindexed announcements and catalogctl publish.
var (
	EventsPublished = producerCounter("published_total",
		"Catalog events written to the broker.")
	PublishFailures = producerCounter("publish_failures_total",
		"Catalog event writes that returned an error.")

	PublishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "publish_duration_seconds",
		Help:      "Time spent writing one catalog event.",
		Buckets:   prometheus.DefBuckets,
	}, producerLabels)
)

func consumerCounter(name, help string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      name,
		Help:      help,
	}, consumerLabels)
}

func producerCounter(name, help string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      name,
		Help:      help,
	}, producerLabels)
}
