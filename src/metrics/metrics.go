// Package metrics exposes governance activity as prometheus counters.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stake-plus/landvote/src/governance"
)

// Recorder counts committed events and rejected votes. It is a
// governance.Publisher.
type Recorder struct {
	registry    *prometheus.Registry
	votesCast   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		votesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "landvote_votes_cast_total",
			Help: "Votes appended to the ledger.",
		}, []string{"choice"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "landvote_transitions_total",
			Help: "Proposal lifecycle transitions by resulting status.",
		}, []string{"status"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "landvote_vote_rejections_total",
			Help: "Vote attempts rejected by eligibility checks.",
		}, []string{"reason"}),
	}
	r.registry.MustRegister(r.votesCast, r.transitions, r.rejections)
	r.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return r
}

func (r *Recorder) Publish(_ context.Context, ev governance.Event) error {
	switch ev.Kind {
	case governance.EventVoteCast:
		r.votesCast.WithLabelValues(string(ev.Choice)).Inc()
	case governance.EventProposalSubmitted, governance.EventProposalActivated, governance.EventProposalClosed:
		r.transitions.WithLabelValues(string(ev.Status)).Inc()
	}
	return nil
}

// ObserveRejection counts a refused vote by its eligibility reason.
func (r *Recorder) ObserveRejection(reason governance.Reason) {
	r.rejections.WithLabelValues(string(reason)).Inc()
}

// Handler serves the exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
