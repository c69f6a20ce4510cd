// Package metrics exposes session controller activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arcshell/cmd/identity"
	"arcshell/cmd/internal/auth/session"
)

const namespace = "arcshell"

// Recorder implements session.Observer on a private registry.
type Recorder struct {
	reg *prometheus.Registry

	bootstraps    *prometheus.CounterVec
	renewals      *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	authenticated prometheus.Gauge
	loading       prometheus.Gauge
}

var _ session.Observer = (*Recorder)(nil)

// NewRecorder registers the session collectors plus Go runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		bootstraps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "bootstrap_total",
			Help:      "Session bootstrap runs by outcome.",
		}, []string{"outcome"}),
		renewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "renewal_total",
			Help:      "Background session refresh calls by result class.",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Session state transitions by resulting state.",
		}, []string{"state"}),
		authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "authenticated",
			Help:      "1 while the session is authenticated.",
		}),
		loading: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "loading",
			Help:      "1 until the bootstrap check finishes.",
		}),
	}

	r.loading.Set(1)

	r.reg.MustRegister(
		r.bootstraps,
		r.renewals,
		r.transitions,
		r.authenticated,
		r.loading,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// BootstrapFinished counts a bootstrap outcome.
func (r *Recorder) BootstrapFinished(outcome session.Outcome) {
	r.bootstraps.WithLabelValues(string(outcome)).Inc()
}

// RenewalFinished counts a renewal by identity.Classify label.
func (r *Recorder) RenewalFinished(err error) {
	r.renewals.WithLabelValues(identity.Classify(err)).Inc()
}

// StateChanged tracks the latest snapshot.
func (r *Recorder) StateChanged(s session.Session) {
	r.transitions.WithLabelValues(s.State().String()).Inc()
	r.authenticated.Set(boolGauge(s.IsAuthenticated))
	r.loading.Set(boolGauge(s.Loading))
}

// Registry exposes the underlying registry for extra collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
