package observability

import (
	"context"
	"net/http"
	"strconv"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine collectors.
type Metrics struct {
	Detections     *prometheus.CounterVec
	Starts         *prometheus.CounterVec
	StepsCompleted *prometheus.CounterVec
	StepsSkipped   *prometheus.CounterVec
	Finishes       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// When activeCount is non-nil it backs the playbook_active_protocols gauge.
func NewMetrics(reg prometheus.Registerer, activeCount func() float64) *Metrics {
	m := &Metrics{
		Detections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playbook_detections_total",
				Help: "Trigger detections, by whether anything matched",
			},
			[]string{"matched"},
		),
		Starts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playbook_protocol_starts_total",
				Help: "Protocols started",
			},
			[]string{"protocol_id"},
		),
		StepsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playbook_steps_completed_total",
				Help: "Steps reported complete by callers",
			},
			[]string{"protocol_id"},
		),
		StepsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playbook_steps_skipped_total",
				Help: "Conditional steps auto-completed because their condition did not hold",
			},
			[]string{"protocol_id"},
		),
		Finishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playbook_protocol_finishes_total",
				Help: "Protocols archived into history",
			},
			[]string{"protocol_id", "success"},
		),
	}
	reg.MustRegister(m.Detections, m.Starts, m.StepsCompleted, m.StepsSkipped, m.Finishes)

	if activeCount != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "playbook_active_protocols",
				Help: "Executions currently in the active set",
			},
			activeCount,
		))
	}
	return m
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDetect: func(_ context.Context, e *domain.DetectEvent) {
			m.Detections.WithLabelValues(strconv.FormatBool(len(e.Matches) > 0)).Inc()
		},
		OnProtocolStart: func(_ context.Context, e *domain.ExecutionEvent) {
			m.Starts.WithLabelValues(e.ProtocolID).Inc()
		},
		OnStepComplete: func(_ context.Context, e *domain.ExecutionEvent) {
			m.StepsCompleted.WithLabelValues(e.ProtocolID).Inc()
		},
		OnStepSkip: func(_ context.Context, e *domain.ExecutionEvent) {
			m.StepsSkipped.WithLabelValues(e.ProtocolID).Inc()
		},
		OnProtocolFinish: func(_ context.Context, e *domain.ExecutionEvent) {
			m.Finishes.WithLabelValues(e.ProtocolID, strconv.FormatBool(e.Success)).Inc()
		},
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
