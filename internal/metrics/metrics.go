package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tagdata"

// 片段丢弃原因
const (
	ReasonDecode       = "decode"
	ReasonInactive     = "inactive_sequence"
	ReasonUnrecognized = "unrecognized_attribute"
	ReasonMalformed    = "malformed_sequence"
	ReasonPersist      = "persist_exhausted"
)

// Metrics 标签数据管道指标
type Metrics struct {
	FragmentsReceived  *prometheus.CounterVec
	FragmentsDropped   *prometheus.CounterVec
	SequencesRestarted prometheus.Counter
	SequencesEvicted   prometheus.Counter
	ActiveSequences    prometheus.Gauge
	ReadingsAssembled  prometheus.Counter
	ReadingsPersisted  prometheus.Counter
	PersistRetries     prometheus.Counter
	PersistFailures    prometheus.Counter
	PublishFailures    prometheus.Counter
	PersistDuration    prometheus.Histogram
}

// New 创建指标并注册到 reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FragmentsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fragments",
			Name:      "received_total",
			Help:      "Total number of fragments received, by attribute",
		}, []string{"attribute"}),

		FragmentsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fragments",
			Name:      "dropped_total",
			Help:      "Total number of fragments or sequences dropped, by reason",
		}, []string{"reason"}),

		SequencesRestarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sequences",
			Name:      "restarted_total",
			Help:      "Sequences restarted by a repeated mac fragment",
		}),

		SequencesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sequences",
			Name:      "evicted_total",
			Help:      "Sequences evicted after exceeding the idle TTL",
		}),

		ActiveSequences: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sequences",
			Name:      "active",
			Help:      "Sequences currently being reassembled",
		}),

		ReadingsAssembled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "readings",
			Name:      "assembled_total",
			Help:      "Readings assembled from completed sequences",
		}),

		ReadingsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "readings",
			Name:      "persisted_total",
			Help:      "Readings committed to tag_data",
		}),

		PersistRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "retries_total",
			Help:      "Persistence retries after a failed attempt",
		}),

		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "failures_total",
			Help:      "Readings dropped after exhausting persistence retries",
		}),

		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "failures_total",
			Help:      "Readings that could not be published to the reading stream",
		}),

		PersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "duration_seconds",
			Help:      "Time spent persisting one reading, retries included",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.FragmentsReceived,
		m.FragmentsDropped,
		m.SequencesRestarted,
		m.SequencesEvicted,
		m.ActiveSequences,
		m.ReadingsAssembled,
		m.ReadingsPersisted,
		m.PersistRetries,
		m.PersistFailures,
		m.PublishFailures,
		m.PersistDuration,
	)

	return m
}

// NewNop 创建未注册的指标（测试用）
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
