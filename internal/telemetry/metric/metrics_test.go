package metric

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordConversion("success", time.Second)
	m.RecordConversion("success", 2*time.Second)
	m.RecordConversion("invalid_input_format", 0)
	m.RecordDownload("not_found")
	m.RecordRetention(3)
	m.RecordRetention(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Conversions.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Conversions.WithLabelValues("invalid_input_format")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Downloads.WithLabelValues("not_found")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RetentionDeleted))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ConversionDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordConversion("success", time.Second)
		m.RecordTranscode(time.Second)
		m.RecordUpload(10)
		m.RecordDownload("ok")
		m.RecordRetention(1)
	})
}
