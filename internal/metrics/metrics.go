package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeAccepted labels probes appended to a history.
	OutcomeAccepted = "accepted"
	// OutcomeRejected labels probes refused at ingestion.
	OutcomeRejected = "rejected"
)

// Pass names used for the pass label.
const (
	PassOutages     = "outages"
	PassCorrelation = "correlation"
	PassConnection  = "connection"
	PassStats       = "stats"
)

var (
	passesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_uptime",
			Name:      "passes_total",
			Help:      "Total number of analysis passes run, partitioned by pass.",
		},
		[]string{"pass"},
	)

	passDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mirador_uptime",
			Name:      "pass_seconds",
			Help:      "Analysis pass latency in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"pass"},
	)

	probesIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_uptime",
			Name:      "probes_ingested_total",
			Help:      "Probe results offered to the session, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	fullOutages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mirador_uptime",
			Name:      "full_outages",
			Help:      "Number of full outages found by the last correlation pass.",
		},
	)

	targetConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mirador_uptime",
			Name:      "target_connected",
			Help:      "1 when the target is CONNECTED, 0 otherwise.",
		},
		[]string{"target"},
	)

	targetUptimeFraction = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mirador_uptime",
			Name:      "target_uptime_fraction",
			Help:      "Fraction of good probes per target over the retained history.",
		},
		[]string{"target"},
	)

	aggregateConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mirador_uptime",
			Name:      "aggregate_connected",
			Help:      "1 when at least one target is CONNECTED.",
		},
	)
)

// Register attaches mirador-uptime collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		passesTotal,
		passDurationSeconds,
		probesIngestedTotal,
		fullOutages,
		targetConnected,
		targetUptimeFraction,
		aggregateConnected,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePass records a pass duration.
func ObservePass(pass string, duration time.Duration) {
	passesTotal.WithLabelValues(pass).Inc()
	if duration < 0 {
		duration = 0
	}
	passDurationSeconds.WithLabelValues(pass).Observe(duration.Seconds())
}

// ObserveProbe counts an ingested probe.
func ObserveProbe(outcome string) {
	label := outcome
	if label != OutcomeRejected {
		label = OutcomeAccepted
	}
	probesIngestedTotal.WithLabelValues(label).Inc()
}

// SetFullOutages publishes the latest full outage count.
func SetFullOutages(n int) {
	fullOutages.Set(float64(n))
}

// SetConnection publishes per-target and aggregate connectivity.
func SetConnection(target string, connected bool) {
	targetConnected.WithLabelValues(target).Set(boolGauge(connected))
}

// SetAggregateConnected publishes the aggregate state.
func SetAggregateConnected(connected bool) {
	aggregateConnected.Set(boolGauge(connected))
}

// SetUptime publishes a target's uptime fraction.
func SetUptime(target string, fraction float64) {
	targetUptimeFraction.WithLabelValues(target).Set(fraction)
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
