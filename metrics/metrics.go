package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics carries the pipeline counters. A nil *Metrics is valid and
// records nothing; passing a nil registerer yields unregistered counters.
type Metrics struct {
	ElementsFetched      *prometheus.CounterVec
	PagesFetched         *prometheus.CounterVec
	FetchFailures        *prometheus.CounterVec
	ChangesApplied       *prometheus.CounterVec
	ChangesFailed        *prometheus.CounterVec
	ChangesLeftover      prometheus.Counter
	RequestsIssued       prometheus.Counter
	ResolvedReferences   prometheus.Counter
	UnresolvedReferences prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ElementsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "salto_elements_fetched_total",
			Help: "Elements produced by the fetch mapper, per resource kind.",
		}, []string{"kind"}),
		PagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "salto_pages_fetched_total",
			Help: "Listing pages consumed, per resource kind.",
		}, []string{"kind"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "salto_fetch_failures_total",
			Help: "Fetch attempts that yielded no elements, per resource kind.",
		}, []string{"kind"}),
		ChangesApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "salto_changes_applied_total",
			Help: "Changes deployed successfully, per resource kind.",
		}, []string{"kind"}),
		ChangesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "salto_changes_failed_total",
			Help: "Changes that failed to deploy, per resource kind.",
		}, []string{"kind"}),
		ChangesLeftover: factory.NewCounter(prometheus.CounterOpts{
			Name: "salto_changes_leftover_total",
			Help: "Changes passed through for downstream handling.",
		}),
		RequestsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "salto_requests_issued_total",
			Help: "Wire requests issued by deploy mappers.",
		}),
		ResolvedReferences: factory.NewCounter(prometheus.CounterOpts{
			Name: "salto_resolved_references_total",
			Help: "Reference values rewritten into structural references.",
		}),
		UnresolvedReferences: factory.NewCounter(prometheus.CounterOpts{
			Name: "salto_unresolved_references_total",
			Help: "Reference values left unresolved after both lookup passes.",
		}),
	}
}

func (m *Metrics) AddResolvedReferences(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ResolvedReferences.Add(float64(n))
}

func (m *Metrics) AddUnresolvedReferences(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.UnresolvedReferences.Add(float64(n))
}

func (m *Metrics) AddElementsFetched(kind string, n int) {
	if m == nil {
		return
	}
	m.ElementsFetched.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) IncPagesFetched(kind string) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncFetchFailures(kind string) {
	if m == nil {
		return
	}
	m.FetchFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncChangesApplied(kind string) {
	if m == nil {
		return
	}
	m.ChangesApplied.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncChangesFailed(kind string) {
	if m == nil {
		return
	}
	m.ChangesFailed.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncChangesLeftover() {
	if m == nil {
		return
	}
	m.ChangesLeftover.Inc()
}

func (m *Metrics) IncRequestsIssued() {
	if m == nil {
		return
	}
	m.RequestsIssued.Inc()
}
