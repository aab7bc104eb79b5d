// internal/metrics/metrics.go
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus collectors for motion and safety supervision.
type Metrics struct {
	// Axis commands
	AxisCommandsTotal   *prometheus.CounterVec
	RejectedCommands    *prometheus.CounterVec
	AxisAlarmsTotal     *prometheus.CounterVec
	ReferenceStepsTotal *prometheus.CounterVec

	// Coordinator
	OperationDuration *prometheus.HistogramVec
	OperationsTotal   *prometheus.CounterVec
	WaitTimeoutsTotal *prometheus.CounterVec

	// Safety
	InterlockFailuresTotal *prometheus.CounterVec
	EStopActivationsTotal  prometheus.Counter
	ResumeDeniedTotal      prometheus.Counter
	EStopActive            prometheus.Gauge

	// Data acquisition
	SamplesTotal      prometheus.Counter
	SampleErrorsTotal prometheus.Counter
}

// Get creates and registers the collectors once per process.
//
// Metrics:
//   - gantry_axis_commands_total{axis,verb}
//   - gantry_rejected_commands_total{axis,reason}
//   - gantry_axis_alarms_total{axis,kind}
//   - gantry_reference_steps_total{axis,method}
//   - gantry_operation_duration_seconds{operation}
//   - gantry_operations_total{operation,result}
//   - gantry_wait_timeouts_total{wait}
//   - gantry_interlock_failures_total{interlock}
//   - gantry_estop_activations_total
//   - gantry_resume_denied_total
//   - gantry_estop_active
//   - gantry_daq_samples_total / gantry_daq_sample_errors_total
func Get() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			AxisCommandsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gantry_axis_commands_total",
					Help: "Total number of commands sent to axes",
				},
				[]string{"axis", "verb"},
			),

			RejectedCommands: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gantry_rejected_commands_total",
					Help: "Total number of axis commands rejected before reaching hardware",
				},
				[]string{"axis", "reason"}, // "soft_limit", "alarm", "unknown_method"
			),

			AxisAlarmsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gantry_axis_alarms_total",
					Help: "Total number of overload and over-temperature findings",
				},
				[]string{"axis", "kind"},
			),

			ReferenceStepsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gantry_reference_steps_total",
					Help: "Total number of jog steps issued while referencing",
				},
				[]string{"axis", "method"},
			),

			OperationDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "gantry_operation_duration_seconds",
					Help:    "Duration of coordinated gantry operations in seconds",
					Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
				},
				[]string{"operation"},
			),

			OperationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gantry_operations_total",
					Help: "Total number of coordinated gantry operations by result",
				},
				[]string{"operation", "result"},
			),

			WaitTimeoutsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gantry_wait_timeouts_total",
					Help: "Total number of convergence waits that hit their deadline",
				},
				[]string{"wait"},
			),

			InterlockFailuresTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gantry_interlock_failures_total",
					Help: "Total number of failed interlock evaluations by failing predicate",
				},
				[]string{"interlock"},
			),

			EStopActivationsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gantry_estop_activations_total",
				Help: "Total number of transitions into the emergency-stop state",
			}),

			ResumeDeniedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gantry_resume_denied_total",
				Help: "Total number of e-stop resets denied by interlocks",
			}),

			EStopActive: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "gantry_estop_active",
				Help: "1 while the emergency stop is activated",
			}),

			SamplesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gantry_daq_samples_total",
				Help: "Total number of acquisition samples recorded",
			}),

			SampleErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gantry_daq_sample_errors_total",
				Help: "Total number of acquisition cycles that failed",
			}),
		}
	})

	return globalMetrics
}
