package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "anonchat"

// Metrics counts what the delivery coordinator does.
type Metrics struct {
	Submitted       prometheus.Counter
	StorageFaults   prometheus.Counter
	Acknowledged    prometheus.Counter
	Published       *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
	Subscribers     prometheus.Gauge
	WorkerRestarts  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_submitted_total",
			Help:      "Messages persisted by the coordinator.",
		}),
		StorageFaults: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_faults_total",
			Help:      "Submissions rejected because the insert failed.",
		}),
		Acknowledged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_acknowledged_total",
			Help:      "Delivery acknowledgments received from receivers.",
		}),
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events put on the broadcast channel.",
		}, []string{"event"}),
		PublishFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Events the broadcast channel refused.",
		}, []string{"event"}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Connections currently subscribed to the broadcast channel.",
		}),
		WorkerRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_restarts_total",
			Help:      "Supervised workers restarted after a crash.",
		}, []string{"worker"}),
	}
}
