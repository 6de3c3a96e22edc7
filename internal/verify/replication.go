package verify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/replcheck/internal/cluster"
	"github.com/dreamware/replcheck/internal/fixture"
	"github.com/dreamware/replcheck/internal/report"
)

// Replication writes each case to the primary (the first reachable node) and
// checks that every other reachable node serves the same bytes within the
// propagation budget.
type Replication struct {
	kv     KV
	logger *zap.Logger
	opts   Options
}

// NewReplication creates a replication check. A nil logger disables logging.
func NewReplication(kv KV, opts Options, logger *zap.Logger) *Replication {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replication{kv: kv, opts: opts.withDefaults(), logger: logger}
}

// Run evaluates every case against view. With fewer than MinNodes reachable
// nodes no call is made: every case is reported as insufficient_nodes and the
// returned error wraps ErrInsufficientNodes.
func (r *Replication) Run(ctx context.Context, view cluster.View, cases []fixture.Payload) ([]report.CaseResult, error) {
	if view.ReachableCount() < MinNodes {
		err := insufficient(view.ReachableCount())
		out := make([]report.CaseResult, len(cases))
		for i, c := range cases {
			out[i] = report.CaseResult{Key: c.Key, Status: report.StatusInsufficient, Detail: err.Error()}
		}
		return out, err
	}

	primary, peers := view.Reachable[0], view.Reachable[1:]
	r.logger.Info("Replication check",
		zap.String("primary", primary.Name),
		zap.Int("peers", len(peers)),
		zap.Int("cases", len(cases)),
		zap.Duration("budget", r.opts.Poll.Budget))

	return runCases(ctx, r.opts.Concurrency, len(cases), func(ctx context.Context, i int) report.CaseResult {
		return r.replicate(ctx, primary, peers, cases[i])
	}), nil
}

func (r *Replication) replicate(ctx context.Context, primary cluster.Node, peers []cluster.Node, c fixture.Payload) report.CaseResult {
	if ctx.Err() != nil {
		return canceledCase(c.Key, primary.Name)
	}

	res := r.kv.Put(ctx, primary, c.Key, c.Value)
	if !res.OK() {
		if ctx.Err() != nil {
			return canceledCase(c.Key, primary.Name)
		}
		// Reads against a write that never succeeded prove nothing.
		return report.CaseResult{
			Key:    c.Key,
			Node:   primary.Name,
			Status: report.StatusWriteFailed,
			Error:  res.Describe(),
		}
	}

	nodes := make([]report.NodeResult, len(peers))
	var g errgroup.Group
	for j, peer := range peers {
		j, peer := j, peer
		g.Go(func() error {
			nodes[j] = r.awaitPeer(ctx, peer, c)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		cr := canceledCase(c.Key, primary.Name)
		cr.Nodes = nodes
		return cr
	}

	cr := report.CaseResult{Key: c.Key, Node: primary.Name, Status: report.StatusPass, Nodes: nodes}
	replicated := 0
	for _, nr := range nodes {
		if nr.Status.Passed() {
			replicated++
		}
	}
	if replicated < len(nodes) {
		cr.Status = caseStatus(nodes)
		cr.Detail = fmt.Sprintf("replicated to %d/%d peers", replicated, len(nodes))
	}

	r.logger.Debug("Replication case",
		zap.String("key", c.Key),
		zap.String("status", string(cr.Status)),
		zap.Int("replicated", replicated),
		zap.Int("peers", len(nodes)))
	return cr
}

// awaitPeer reads c from peer until it matches or the propagation budget is
// spent. Only not-yet-propagated outcomes (missing, mismatched, stale) are
// retried; protocol, throttling and transport failures are final.
func (r *Replication) awaitPeer(ctx context.Context, peer cluster.Node, c fixture.Payload) report.NodeResult {
	var last cluster.Result
	attempts := poll(ctx, r.opts.Poll, func() bool {
		last = r.kv.Get(ctx, peer, c.Key)
		switch judge(c, last) {
		case report.StatusPass, report.StatusProtocol, report.StatusThrottled, report.StatusUnreachable:
			return true
		default:
			return false
		}
	})

	nr := nodeResult(c, last, r.opts.PreviewBytes)
	nr.Node = peer.Name
	nr.Attempts = attempts
	return nr
}

// caseStatus picks the status of a partially replicated case: divergent
// content outranks missing keys, which outrank call failures.
func caseStatus(nodes []report.NodeResult) report.Status {
	rank := map[report.Status]int{
		report.StatusMismatch:    6,
		report.StatusStale:       5,
		report.StatusMissing:     4,
		report.StatusProtocol:    3,
		report.StatusThrottled:   2,
		report.StatusUnreachable: 1,
	}
	worst := report.StatusPass
	for _, nr := range nodes {
		if rank[nr.Status] > rank[worst] {
			worst = nr.Status
		}
	}
	return worst
}
