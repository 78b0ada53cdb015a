package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "recordindexer"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	RPC      = "rpc"
	Scan     = "scan"
	Snapshot = "snapshot"
)

// Labels holds constant labels applied to all metrics.
// These are useful for distinguishing metrics from multiple indexer instances.
type Labels struct {
	EVMChainID    uint64 // EVM chain ID (e.g., 42161 for Arbitrum One)
	Contract      string // Address of the contract being indexed
	Environment   string // Deployment environment (e.g., "production", "staging", "development")
	Region        string // Cloud region (e.g., "us-east-1", "eu-west-1")
	CloudProvider string // Cloud provider (e.g., "aws", "oci", "gcp")
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.EVMChainID != 0 {
		labels["evm_chain_id"] = strconv.FormatUint(l.EVMChainID, 10)
	}
	if l.Contract != "" {
		labels["contract"] = l.Contract
	}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Region != "" {
		labels["region"] = l.Region
	}
	if l.CloudProvider != "" {
		labels["cloud_provider"] = l.CloudProvider
	}
	return labels
}

type Metrics struct {
	// RPC metrics
	rpcCalls    *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	rpcInFlight prometheus.Gauge
	rpcRetries  *prometheus.CounterVec

	// Scan progress
	head          prometheus.Gauge
	cursor        prometheus.Gauge
	chunksScanned prometheus.Counter
	eventsScanned prometheus.Counter
	recordsAdded  prometheus.Counter
	errors        *prometheus.CounterVec

	// Snapshot persistence
	snapshotSaves        *prometheus.CounterVec
	snapshotSaveDuration prometheus.Histogram
	snapshotSize         prometheus.Gauge
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
// Returns an error if any metric registration fails.
// For metrics with constant labels (e.g., evm_chain_id), use NewWithLabels instead.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "calls_total",
			Help:      "Total RPC calls by method and status",
		}, []string{"method", "status"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "duration_seconds",
			Help:      "RPC call duration in seconds",
			// eth_getLogs over a wide range can take several seconds on public nodes
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method"}),
		rpcInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "in_flight",
			Help:      "Number of RPC calls currently in progress",
		}),
		rpcRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "retries_total",
			Help:      "Total retried chain queries by operation",
		}, []string{"operation"}),
		head: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Scan,
			Name:      "head",
			Help:      "Chain head height at the start of the scan",
		}),
		cursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Scan,
			Name:      "cursor",
			Help:      "Lowest block height scanned so far in the current run",
		}),
		chunksScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Scan,
			Name:      "chunks_total",
			Help:      "Total block ranges queried",
		}),
		eventsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Scan,
			Name:      "events_total",
			Help:      "Total Record events returned by range queries",
		}),
		recordsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Scan,
			Name:      "records_added_total",
			Help:      "Total records accepted as new by the merge step",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"type"}),
		snapshotSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Snapshot,
			Name:      "saves_total",
			Help:      "Total snapshot writes by status",
		}, []string{"status"}),
		snapshotSaveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Snapshot,
			Name:      "save_duration_seconds",
			Help:      "Time to persist a full snapshot",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		snapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Snapshot,
			Name:      "records",
			Help:      "Number of records in the last persisted snapshot",
		}),
	}

	err := errors.Join(
		reg.Register(m.rpcCalls),
		reg.Register(m.rpcDuration),
		reg.Register(m.rpcInFlight),
		reg.Register(m.rpcRetries),
		reg.Register(m.head),
		reg.Register(m.cursor),
		reg.Register(m.chunksScanned),
		reg.Register(m.eventsScanned),
		reg.Register(m.recordsAdded),
		reg.Register(m.errors),
		reg.Register(m.snapshotSaves),
		reg.Register(m.snapshotSaveDuration),
		reg.Register(m.snapshotSize),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Error type constants for non-RPC errors (RPC errors are tracked via rpcCalls{status="error"}).
const (
	ErrTypeCorruptSnapshot = "corrupt_snapshot"
	ErrTypeDecode          = "decode"
)

// IncError increments the error counter for the given error type.
func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errType).Inc()
}

// IncRPCInFlight increments the in-flight RPC gauge.
func (m *Metrics) IncRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Inc()
}

// DecRPCInFlight decrements the in-flight RPC gauge.
func (m *Metrics) DecRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Dec()
}

// RecordRPCCall records an RPC call outcome.
func (m *Metrics) RecordRPCCall(method string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.rpcCalls.WithLabelValues(method, status).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(durationSeconds)
}

// IncRetry counts a retried chain query.
func (m *Metrics) IncRetry(operation string) {
	if m == nil {
		return
	}
	m.rpcRetries.WithLabelValues(operation).Inc()
}

// SetHead records the head the scan started from.
func (m *Metrics) SetHead(head uint64) {
	if m == nil {
		return
	}
	m.head.Set(float64(head))
	m.cursor.Set(float64(head))
}

// ObserveChunk records a completed range query over [from, ...] that returned events.
func (m *Metrics) ObserveChunk(from uint64, events int) {
	if m == nil {
		return
	}
	m.chunksScanned.Inc()
	m.eventsScanned.Add(float64(events))
	m.cursor.Set(float64(from))
}

// AddRecords counts records accepted as new.
func (m *Metrics) AddRecords(n int) {
	if m == nil {
		return
	}
	m.recordsAdded.Add(float64(n))
}

// RecordSnapshotSave records a snapshot write outcome and, on success, its size.
func (m *Metrics) RecordSnapshotSave(err error, durationSeconds float64, size int) {
	if m == nil {
		return
	}
	if err != nil {
		m.snapshotSaves.WithLabelValues(StatusError).Inc()
		return
	}
	m.snapshotSaves.WithLabelValues(StatusSuccess).Inc()
	m.snapshotSaveDuration.Observe(durationSeconds)
	m.snapshotSize.Set(float64(size))
}
