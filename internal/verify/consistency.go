package verify

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/replcheck/internal/cluster"
	"github.com/dreamware/replcheck/internal/codec"
	"github.com/dreamware/replcheck/internal/report"
)

// Consistency reads a key list from every node, with no intervening write,
// and groups the answers by exact bytes.
type Consistency struct {
	kv     KV
	logger *zap.Logger
	opts   Options
}

// NewConsistency creates a consistency check. A nil logger disables logging.
func NewConsistency(kv KV, opts Options, logger *zap.Logger) *Consistency {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consistency{kv: kv, opts: opts.withDefaults(), logger: logger}
}

// Run checks every key. Nodes that were unreachable at probe time are listed
// as unreachable without being called. Not-found and failed reads are
// reported per node but excluded from the judgment:
//
//   - two or more distinct payloads: inconsistent
//   - one payload, every reachable node has it: pass
//   - one payload, some nodes lack it: incomplete (passes)
//   - no payload at all: absent, or the read failure if no node answered
//
// With fewer than MinNodes reachable nodes the returned error wraps
// ErrInsufficientNodes and no call is made.
func (c *Consistency) Run(ctx context.Context, view cluster.View, keys []string) ([]report.CaseResult, error) {
	if view.ReachableCount() < MinNodes {
		err := insufficient(view.ReachableCount())
		out := make([]report.CaseResult, len(keys))
		for i, k := range keys {
			out[i] = report.CaseResult{Key: k, Status: report.StatusInsufficient, Detail: err.Error()}
		}
		return out, err
	}

	return runCases(ctx, c.opts.Concurrency, len(keys), func(ctx context.Context, i int) report.CaseResult {
		return c.checkKey(ctx, view, keys[i])
	}), nil
}

func (c *Consistency) checkKey(ctx context.Context, view cluster.View, key string) report.CaseResult {
	if ctx.Err() != nil {
		return canceledCase(key, "")
	}

	results := make([]cluster.Result, len(view.Nodes))
	var g errgroup.Group
	for i, st := range view.Nodes {
		if !st.Reachable {
			continue
		}
		i, st := i, st
		g.Go(func() error {
			results[i] = c.kv.Get(ctx, st.Node, key)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return canceledCase(key, "")
	}

	var (
		groups [][]byte
		nodes  = make([]report.NodeResult, len(view.Nodes))
		found  int
	)
	for i, st := range view.Nodes {
		nr := report.NodeResult{Node: st.Node.Name}
		res := results[i]
		switch {
		case !st.Reachable:
			nr.Status = report.StatusUnreachable
			nr.Error = st.Error
		case res.OK():
			found++
			nr.Status = report.StatusPass
			nr.Size = len(res.Body)
			nr.Group = groupOf(&groups, res.Body)
			nr.Actual = codec.Preview(res.Body, c.opts.PreviewBytes)
		default:
			nr.Status = report.StatusFor(res)
			nr.StatusCode = res.StatusCode
			if nr.Status != report.StatusMissing {
				nr.Error = res.Describe()
			}
		}
		nodes[i] = nr
	}

	cr := report.CaseResult{Key: key, Groups: len(groups), Nodes: nodes}
	switch {
	case len(groups) > 1:
		cr.Status = report.StatusInconsistent
		cr.Detail = fmt.Sprintf("%d distinct values across %d nodes", len(groups), found)
	case len(groups) == 1 && found == len(view.Nodes):
		cr.Status = report.StatusPass
	case len(groups) == 1:
		cr.Status = report.StatusIncomplete
		cr.Detail = fmt.Sprintf("found on %d/%d nodes", found, len(view.Nodes))
	default:
		cr.Status = noValueStatus(nodes)
		cr.Detail = "no node returned the key"
		if cr.Status == report.StatusAbsent {
			cr.Detail = "key never written or not propagated to any node; no divergence"
		}
	}

	c.logger.Debug("Consistency case",
		zap.String("key", key),
		zap.String("status", string(cr.Status)),
		zap.Int("groups", len(groups)),
		zap.Int("found", found))
	return cr
}

// groupOf returns the 1-based equality class of b, adding a new class when b
// matches none. Classes are numbered in node order.
func groupOf(groups *[][]byte, b []byte) int {
	for i, g := range *groups {
		if bytes.Equal(g, b) {
			return i + 1
		}
	}
	*groups = append(*groups, b)
	return len(*groups)
}

// noValueStatus reports absent when any reachable node answered not-found,
// otherwise the first read failure.
func noValueStatus(nodes []report.NodeResult) report.Status {
	first := report.StatusUnreachable
	seen := false
	for _, nr := range nodes {
		if nr.Status == report.StatusMissing {
			return report.StatusAbsent
		}
		if !seen && nr.Status != report.StatusUnreachable {
			first, seen = nr.Status, true
		}
	}
	return first
}
