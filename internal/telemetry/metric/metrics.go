package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Conversions        *prometheus.CounterVec
	ConversionDuration prometheus.Histogram
	TranscodeDuration  prometheus.Histogram
	UploadSize         prometheus.Histogram
	Downloads          *prometheus.CounterVec
	RetentionDeleted   prometheus.Counter
}

// NewMetrics registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Conversions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "waveconv_conversions_total",
			Help: "Conversion requests by outcome",
		}, []string{"outcome"}),
		ConversionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "waveconv_conversion_duration_seconds",
			Help:    "End-to-end duration of successful conversions",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7 minutes
		}),
		TranscodeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "waveconv_transcode_duration_seconds",
			Help:    "Time spent in the transcoder",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		UploadSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "waveconv_upload_size_bytes",
			Help:    "Size of accepted uploads",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8), // 64KB to ~1GB
		}),
		Downloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "waveconv_downloads_total",
			Help: "Download requests by outcome",
		}, []string{"outcome"}),
		RetentionDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "waveconv_retention_deleted_total",
			Help: "Artifacts removed by the retention sweep",
		}),
	}
}

// RecordConversion counts a finished conversion. Duration is observed only on success.
func (m *Metrics) RecordConversion(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Conversions.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		m.ConversionDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) RecordTranscode(d time.Duration) {
	if m == nil {
		return
	}
	m.TranscodeDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordUpload(size int64) {
	if m == nil {
		return
	}
	m.UploadSize.Observe(float64(size))
}

func (m *Metrics) RecordDownload(outcome string) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRetention(deleted int) {
	if m == nil {
		return
	}
	m.RetentionDeleted.Add(float64(deleted))
}
