// Package metrics collects Prometheus metrics for RPC dispatch outcomes,
// variable-store operation latencies, and authentication verdicts. A nil
// *Metrics is a valid no-op collector, so callers that don't wire metrics
// never need a conditional.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every counter/histogram this module exposes, grouped by
// three concerns: RPC dispatch outcomes,
// variable-store operation latency, and authentication verdicts.
type Metrics struct {
	// RPCRequestsTotal counts endpoint.Dispatch calls by interface id,
	// opcode, and resulting RPC status.
	RPCRequestsTotal *prometheus.CounterVec

	// RPCRequestDuration tracks dispatch latency by interface id.
	RPCRequestDuration *prometheus.HistogramVec

	// VariableOpDuration tracks variable-store operation latency by
	// operation name ("set_variable", "get_variable",
	// "get_next_variable_name", "query_variable_info", ...).
	VariableOpDuration *prometheus.HistogramVec

	// VariableOpsTotal counts variable-store operations by operation
	// name and resulting EFI status.
	VariableOpsTotal *prometheus.CounterVec

	// AuthVerdictsTotal counts authentication engine verdicts by
	// variable class ("secure_boot", "private") and verdict
	// ("accepted", "rejected").
	AuthVerdictsTotal *prometheus.CounterVec

	// VariablesLive tracks the current number of in-use index entries.
	VariablesLive prometheus.Gauge
}

// New creates metrics registered with reg, prefixed ts_ to distinguish
// this module's metrics from a host process's own.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RPCRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ts_rpc_requests_total",
				Help: "Total RPC requests dispatched by interface, opcode, and rpc_status",
			},
			[]string{"interface_id", "opcode", "rpc_status"},
		),
		RPCRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ts_rpc_request_duration_seconds",
				Help:    "RPC dispatch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"interface_id"},
		),
		VariableOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ts_variable_op_duration_seconds",
				Help:    "UEFI variable store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		VariableOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ts_variable_ops_total",
				Help: "Total UEFI variable store operations by operation and efi_status",
			},
			[]string{"operation", "efi_status"},
		),
		AuthVerdictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ts_auth_verdicts_total",
				Help: "Total authenticated-variable verification verdicts by class and verdict",
			},
			[]string{"class", "verdict"},
		),
		VariablesLive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ts_variables_live",
				Help: "Current number of in-use variable index entries",
			},
		),
	}

	reg.MustRegister(
		m.RPCRequestsTotal,
		m.RPCRequestDuration,
		m.VariableOpDuration,
		m.VariableOpsTotal,
		m.AuthVerdictsTotal,
		m.VariablesLive,
	)

	return m
}

// RecordRPC records one endpoint.Dispatch outcome.
func (m *Metrics) RecordRPC(interfaceID, opcode, rpcStatus string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RPCRequestsTotal.WithLabelValues(interfaceID, opcode, rpcStatus).Inc()
	m.RPCRequestDuration.WithLabelValues(interfaceID).Observe(durationSeconds)
}

// RecordVariableOp records one variable-store operation outcome.
func (m *Metrics) RecordVariableOp(operation, efiStatus string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.VariableOpsTotal.WithLabelValues(operation, efiStatus).Inc()
	m.VariableOpDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordAuthVerdict records one authentication engine verdict.
func (m *Metrics) RecordAuthVerdict(class, verdict string) {
	if m == nil {
		return
	}
	m.AuthVerdictsTotal.WithLabelValues(class, verdict).Inc()
}

// SetVariablesLive updates the live-entry gauge.
func (m *Metrics) SetVariablesLive(n int) {
	if m == nil {
		return
	}
	m.VariablesLive.Set(float64(n))
}

// NullMetrics returns nil, the no-op collector every method above
// tolerates as a receiver.
func NullMetrics() *Metrics {
	return nil
}
