// Package harness runs the selected checks over one probe of the cluster and
// assembles the report.
package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dreamware/replcheck/internal/cluster"
	"github.com/dreamware/replcheck/internal/config"
	"github.com/dreamware/replcheck/internal/fixture"
	"github.com/dreamware/replcheck/internal/probe"
	"github.com/dreamware/replcheck/internal/report"
	"github.com/dreamware/replcheck/internal/verify"
)

// Check names one verification and the report category it produces.
type Check string

const (
	CheckPersistence Check = "persistence"
	CheckVerify      Check = "verify"
	CheckReplication Check = "replication"
	CheckConsistency Check = "consistency"
)

// CategoryCluster is reported, alone, when no node answered the probe.
const CategoryCluster = "cluster"

// AllChecks is the order "all" runs in: consistency reads the keys
// replication has just written.
var AllChecks = []Check{CheckPersistence, CheckReplication, CheckConsistency}

// ParseCheck validates a check name.
func ParseCheck(s string) (Check, error) {
	switch c := Check(s); c {
	case CheckPersistence, CheckVerify, CheckReplication, CheckConsistency:
		return c, nil
	default:
		return "", fmt.Errorf("unknown check %q", s)
	}
}

const pushTimeout = 5 * time.Second

// Harness holds everything a run needs. The node list and fixtures are fixed
// at construction.
type Harness struct {
	cfg         *config.Config
	fixtures    fixture.Resolved
	prober      *probe.Prober
	persistence *verify.Persistence
	replication *verify.Replication
	consistency *verify.Consistency
	recorder    *report.Recorder
	logger      *zap.Logger
	now         func() time.Time
}

// New wires a harness from validated configuration and resolved fixtures.
// A nil logger disables logging.
func New(cfg *config.Config, fixtures fixture.Resolved, logger *zap.Logger) *Harness {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cluster.NewClient(cfg.ClusterClient(), logger)
	opts := cfg.VerifyOptions()

	return &Harness{
		cfg:         cfg,
		fixtures:    fixtures,
		prober:      probe.New(client, cfg.ProbeOptions(), logger),
		persistence: verify.NewPersistence(client, opts, logger),
		replication: verify.NewReplication(client, opts, logger),
		consistency: verify.NewConsistency(client, opts, logger),
		recorder:    report.NewRecorder(),
		logger:      logger,
		now:         time.Now,
	}
}

// Recorder exposes the metrics of every run made by h.
func (h *Harness) Recorder() *report.Recorder { return h.recorder }

// Run probes the cluster once and runs checks in the order given. With no
// checks only the probe outcome is reported. If no node is reachable the run
// stops after the probe with a failed "cluster" category. When ctx is
// canceled the checks stop early and the partial report is marked
// interrupted.
func (h *Harness) Run(ctx context.Context, checks ...Check) *report.Report {
	runID := uuid.NewString()
	logger := h.logger.With(zap.String("run_id", runID))
	rep := report.New(runID, h.now())

	logger.Info("Run started",
		zap.Int("nodes", len(h.cfg.Nodes)),
		zap.Any("checks", checks))

	view := h.prober.Probe(ctx, h.cfg.Nodes)
	rep.SetCluster(view)

	switch {
	case ctx.Err() != nil:
	case view.ReachableCount() == 0:
		rep.Abort(CategoryCluster, "could not connect to any node", nil)
	default:
		fixtures := h.fixtures
		if h.cfg.NamespaceKeys {
			fixtures = fixtures.Namespaced(runID[:8] + "_")
		}
		for _, check := range checks {
			if ctx.Err() != nil {
				break
			}
			h.runCheck(ctx, rep, view, check, fixtures)
		}
	}

	rep.Finalize(ctx.Err() != nil, h.now())
	logger.Info("Run finished",
		zap.Bool("passed", rep.Passed),
		zap.Bool("interrupted", rep.Interrupted),
		zap.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)))

	h.publish(rep, logger)
	return rep
}

func (h *Harness) runCheck(ctx context.Context, rep *report.Report, view cluster.View, check Check, fixtures fixture.Resolved) {
	name := string(check)

	switch check {
	case CheckPersistence, CheckVerify:
		cases := fixtures.Persistence
		if check == CheckVerify {
			// verify reads what an earlier run wrote, so its keys are never namespaced
			cases = h.fixtures.Persistence
		}
		node, err := h.persistenceTarget(view)
		if err != nil {
			rep.Abort(name, err.Error(), unreachableCases(cases, node.Name))
			return
		}
		if check == CheckVerify {
			rep.Add(name, h.persistence.Verify(ctx, node, cases))
		} else {
			rep.Add(name, h.persistence.Run(ctx, node, cases))
		}

	case CheckReplication:
		results, err := h.replication.Run(ctx, view, fixtures.Replication)
		h.record(rep, name, results, err)

	case CheckConsistency:
		results, err := h.consistency.Run(ctx, view, fixtures.Consistency)
		h.record(rep, name, results, err)
	}
}

func (h *Harness) record(rep *report.Report, name string, results []report.CaseResult, err error) {
	if errors.Is(err, verify.ErrInsufficientNodes) {
		rep.Abort(name, err.Error(), results)
		return
	}
	rep.Add(name, results)
}

// persistenceTarget resolves the configured persistence node, or the first
// reachable node when none is configured.
func (h *Harness) persistenceTarget(view cluster.View) (cluster.Node, error) {
	name := h.cfg.Persistence.Node
	if name == "" {
		node, _ := view.Primary()
		return node, nil
	}
	st, ok := view.Lookup(name)
	if !ok {
		return cluster.Node{Name: name}, fmt.Errorf("persistence node %q is not configured", name)
	}
	if !st.Reachable {
		return st.Node, fmt.Errorf("persistence node %q is unreachable: %s", name, st.Error)
	}
	return st.Node, nil
}

func unreachableCases(cases []fixture.Payload, node string) []report.CaseResult {
	out := make([]report.CaseResult, len(cases))
	for i, c := range cases {
		out[i] = report.CaseResult{Key: c.Key, Node: node, Status: report.StatusUnreachable}
	}
	return out
}

// publish records the run in the metrics registry and pushes it when a
// Pushgateway is configured. Failures are logged only.
func (h *Harness) publish(rep *report.Report, logger *zap.Logger) {
	h.recorder.Observe(rep)

	url := h.cfg.Metrics.Pushgateway
	if url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := h.recorder.Push(ctx, url, h.cfg.Metrics.Job); err != nil {
		logger.Warn("Failed to push metrics", zap.Error(err))
		return
	}
	logger.Debug("Metrics pushed", zap.String("pushgateway", url))
}
