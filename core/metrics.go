package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the ingestion counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	videos        *prometheus.CounterVec
	chunks        *prometheus.CounterVec
	embedBatches  *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		videos: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "video_ingest",
			Name:      "videos_total",
			Help:      "Videos processed by final outcome.",
		}, []string{"outcome"}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "video_ingest",
			Name:      "chunks_total",
			Help:      "Chunks by disposition (produced, duplicate, stored).",
		}, []string{"disposition"}),
		embedBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "video_ingest",
			Name:      "embedding_batches_total",
			Help:      "Embedding batches by status.",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "video_ingest",
			Name:      "stage_duration_seconds",
			Help:      "Time spent per ingestion stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}

	for _, c := range []prometheus.Collector{m.videos, m.chunks, m.embedBatches, m.stageDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// VideoOutcome counts one finished video.
func (m *Metrics) VideoOutcome(outcome string) {
	if m == nil {
		return
	}
	m.videos.WithLabelValues(outcome).Inc()
}

// Chunks adds n chunks under disposition.
func (m *Metrics) Chunks(disposition string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.chunks.WithLabelValues(disposition).Add(float64(n))
}

// EmbedBatch counts one embedding batch.
func (m *Metrics) EmbedBatch(status string) {
	if m == nil {
		return
	}
	m.embedBatches.WithLabelValues(status).Inc()
}

// ObserveStage records a stage duration in seconds.
func (m *Metrics) ObserveStage(stage VideoState, seconds float64) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(string(stage)).Observe(seconds)
}
