package metrics

import "github.com/prometheus/client_golang/prometheus"

// Key constants are exported primarily for documentation reasons.
const (
	SubscribersKey                 = "movies_subscribers"
	BroadcastsTotalKey             = "movies_broadcasts_total"
	DeliveryFailuresTotalKey       = "movies_delivery_failures_total"
	HTTPRequestsTotalKey           = "movies_http_requests_total"
	QueueMessagesProcessedTotalKey = "movies_queue_messages_processed_total"
)

// Collectors for the movies service.
var (
	Subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: SubscribersKey,
		Help: "Number of currently registered realtime subscribers.",
	})
	BroadcastsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: BroadcastsTotalKey,
		Help: "Cumulative number of broadcast events, by event type.",
	}, []string{"type"})
	DeliveryFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: DeliveryFailuresTotalKey,
		Help: "Cumulative number of event deliveries which failed and dropped their subscriber.",
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: HTTPRequestsTotalKey,
		Help: "Cumulative number of HTTP requests served, by method and status code.",
	}, []string{"method", "code"})
)

// ServerCollectors returns the collectors used by the movies server.
func ServerCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		Subscribers,
		BroadcastsTotal,
		DeliveryFailuresTotal,
		HTTPRequestsTotal,
	}
}

// Collectors for the movie processor.
var (
	QueueMessagesProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: QueueMessagesProcessedTotalKey,
		Help: "Cumulative number of queue messages handled, by outcome.",
	}, []string{"outcome"})
)

// ProcessorCollectors returns the collectors used by the movie processor.
func ProcessorCollectors() []prometheus.Collector {
	return []prometheus.Collector{QueueMessagesProcessedTotal}
}
