// Package metrics exposes telegram processing counters to prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gometers"

// Collector groups the counters updated by the dispatcher.
type Collector struct {
	Received       prometheus.Counter
	Matched        *prometheus.CounterVec
	Decoded        *prometheus.CounterVec
	Failed         *prometheus.CounterVec
	MissingKey     *prometheus.CounterVec
	SkippedRecords *prometheus.CounterVec
	Duration       prometheus.Histogram
}

// New creates the counters and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegrams_received_total",
			Help:      "Telegrams read from the bus.",
		}),
		Matched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegrams_matched_total",
			Help:      "Telegrams accepted by a meter's identity filter.",
		}, []string{"meter", "driver"}),
		Decoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegrams_decoded_total",
			Help:      "Completed decode cycles.",
		}, []string{"meter", "driver"}),
		Failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegrams_failed_total",
			Help:      "Decode cycles aborted by a malformed or undecryptable payload.",
		}, []string{"meter", "driver"}),
		MissingKey: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegrams_missing_key_total",
			Help:      "Encrypted telegrams ignored because no key is configured.",
		}, []string{"meter", "driver"}),
		SkippedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Data records that could not be decoded.",
		}, []string{"meter", "driver"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching one telegram to all meters.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(c.Received, c.Matched, c.Decoded, c.Failed, c.MissingKey, c.SkippedRecords, c.Duration)
	}
	return c
}

// Observe records the time one dispatch took.
func (c *Collector) Observe(start time.Time) {
	c.Duration.Observe(time.Since(start).Seconds())
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
