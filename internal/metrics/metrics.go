// Package metrics holds the Prometheus counters for workflow and search outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Follow-up results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics groups the intake counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// WorkflowOutcomes counts terminal states by workflow ("create", "delete", ...)
	WorkflowOutcomes *prometheus.CounterVec

	// FollowUps counts follow-up refreshes by workflow, effect, and result
	FollowUps *prometheus.CounterVec

	// SearchPages counts page requests by result
	SearchPages *prometheus.CounterVec
}

// New creates the counters and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WorkflowOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_workflow_outcomes_total",
			Help: "Terminal workflow states by workflow and state",
		}, []string{"workflow", "state"}),
		FollowUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_followups_total",
			Help: "Follow-up refreshes issued after a workflow succeeded",
		}, []string{"workflow", "effect", "result"}),
		SearchPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_search_pages_total",
			Help: "Person search page requests by result",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.WorkflowOutcomes, m.FollowUps, m.SearchPages)
	}
	return m
}

// Outcome records a terminal workflow state.
func (m *Metrics) Outcome(workflow, state string) {
	if m == nil {
		return
	}
	m.WorkflowOutcomes.WithLabelValues(workflow, state).Inc()
}

// FollowUp records one follow-up refresh.
func (m *Metrics) FollowUp(workflow, effect string, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.FollowUps.WithLabelValues(workflow, effect, result).Inc()
}

// SearchPage records one page request result.
func (m *Metrics) SearchPage(result string) {
	if m == nil {
		return
	}
	m.SearchPages.WithLabelValues(result).Inc()
}
