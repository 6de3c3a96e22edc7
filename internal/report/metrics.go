package report

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder exports the outcome counts and verdicts of a run as Prometheus
// metrics.
type Recorder struct {
	registry    *prometheus.Registry
	cases       *prometheus.CounterVec
	nodeResults *prometheus.CounterVec
	passed      *prometheus.GaugeVec
	nodes       *prometheus.GaugeVec
	runPassed   prometheus.Gauge
}

// NewRecorder creates a recorder backed by its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "replcheck",
			Name:      "case_results_total",
			Help:      "Number of test cases by check category and outcome",
		}, []string{"category", "status"}),
		nodeResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "replcheck",
			Name:      "node_results_total",
			Help:      "Number of per-node read outcomes by check category, node and outcome",
		}, []string{"category", "node", "status"}),
		passed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "replcheck",
			Name:      "category_passed",
			Help:      "1 if the check category passed in the last run, 0 otherwise",
		}, []string{"category"}),
		nodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "replcheck",
			Name:      "nodes",
			Help:      "Configured nodes by probe state",
		}, []string{"state"}),
		runPassed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "replcheck",
			Name:      "run_passed",
			Help:      "1 if every executed check passed, 0 otherwise",
		}),
	}
	r.registry.MustRegister(r.cases, r.nodeResults, r.passed, r.nodes, r.runPassed)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Observe adds the outcomes of rep to the recorder.
func (r *Recorder) Observe(rep *Report) {
	r.nodes.WithLabelValues("reachable").Set(float64(rep.Reachable))
	r.nodes.WithLabelValues("unreachable").Set(float64(len(rep.Cluster) - rep.Reachable))

	for _, c := range rep.Categories {
		for _, cr := range c.Cases {
			r.cases.WithLabelValues(c.Name, string(cr.Status)).Inc()
			for _, nr := range cr.Nodes {
				r.nodeResults.WithLabelValues(c.Name, nr.Node, string(nr.Status)).Inc()
			}
		}
		r.passed.WithLabelValues(c.Name).Set(boolGauge(c.Passed))
	}
	r.runPassed.Set(boolGauge(rep.Passed))
}

// Push sends the current metrics to a Prometheus Pushgateway.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
