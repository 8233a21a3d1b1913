package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// LibraryMetrics tracks uploads and how often they hit already known content.
// A nil *LibraryMetrics is valid and records nothing.
type LibraryMetrics struct {
	Uploads       prometheus.Counter
	Duplicates    prometheus.Counter
	UploadedBytes prometheus.Counter
	Deletes       prometheus.Counter
	registry      *prometheus.Registry
}

func NewLibraryMetrics(registry *prometheus.Registry) (*LibraryMetrics, error) {
	m := &LibraryMetrics{
		Uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "illustag_library_uploads_total",
			Help: "Total number of stored uploads.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "illustag_library_duplicate_uploads_total",
			Help: "Total number of uploads whose content was already known.",
		}),
		UploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "illustag_library_uploaded_bytes_total",
			Help: "Total number of uploaded bytes.",
		}),
		Deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "illustag_library_deletes_total",
			Help: "Total number of deleted images.",
		}),
		registry: registry,
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register library metrics: %w", err)
	}
	return m, nil
}

func (m *LibraryMetrics) ObserveUpload(size int64, duplicate bool) {
	if m == nil {
		return
	}
	m.Uploads.Inc()
	m.UploadedBytes.Add(float64(size))
	if duplicate {
		m.Duplicates.Inc()
	}
}

func (m *LibraryMetrics) IncrementDeletes() {
	if m == nil {
		return
	}
	m.Deletes.Inc()
}

func (m *LibraryMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.Uploads
	ch <- m.Duplicates
	ch <- m.UploadedBytes
	ch <- m.Deletes
}

func (m *LibraryMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.Uploads.Desc()
	ch <- m.Duplicates.Desc()
	ch <- m.UploadedBytes.Desc()
	ch <- m.Deletes.Desc()
}
