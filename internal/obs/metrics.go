// Package obs provides observability functionality including metrics and HTTP endpoints
package obs

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	PartitionRecords    *prometheus.GaugeVec
	LoadFailuresTotal   *prometheus.CounterVec
	FetchRequestsTotal  *prometheus.CounterVec
	EmptyFetchesTotal   *prometheus.CounterVec
	RecordsFetchedTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the metrics with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewMetrics(serviceName string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		PartitionRecords: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "partition_records",
			Help:        "Number of records held by a loaded partition",
			ConstLabels: labels,
		}, []string{"partition"}),
		LoadFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "partition_load_failures_total",
			Help:        "Total number of partition loads that degraded to an empty partition",
			ConstLabels: labels,
		}, []string{"partition"}),
		FetchRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "fetch_requests_total",
			Help:        "Total number of batch fetches served",
			ConstLabels: labels,
		}, []string{"partition"}),
		EmptyFetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "fetch_empty_total",
			Help:        "Total number of batch fetches that returned no records",
			ConstLabels: labels,
		}, []string{"partition"}),
		RecordsFetchedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "records_fetched_total",
			Help:        "Total number of records returned by batch fetches",
			ConstLabels: labels,
		}, []string{"partition"}),
	}
}

// SetPartitionRecords records the size of a loaded partition
func (m *Metrics) SetPartitionRecords(partition, size int) {
	if m == nil {
		return
	}
	m.PartitionRecords.WithLabelValues(strconv.Itoa(partition)).Set(float64(size))
}

// IncrementLoadFailures increments the load failure counter for a partition by 1
func (m *Metrics) IncrementLoadFailures(partition int) {
	if m == nil {
		return
	}
	m.LoadFailuresTotal.WithLabelValues(strconv.Itoa(partition)).Inc()
}

// ObserveFetch records one fetch that returned count records
func (m *Metrics) ObserveFetch(partition, count int) {
	if m == nil {
		return
	}
	label := strconv.Itoa(partition)
	m.FetchRequestsTotal.WithLabelValues(label).Inc()
	if count == 0 {
		m.EmptyFetchesTotal.WithLabelValues(label).Inc()
		return
	}
	m.RecordsFetchedTotal.WithLabelValues(label).Add(float64(count))
}
