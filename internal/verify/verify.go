// Package verify implements the checks the harness runs against a cluster:
// single-node persistence, replication from a primary to its peers, and
// cross-node consistency of a fixed key list.
//
// Every check consumes typed network results from a KV and produces one
// report.CaseResult per key. Failures are recorded at the smallest unit
// (one key, or one key on one node) and never abort sibling keys. Cases run
// concurrently up to Options.Concurrency; each worker writes only its own
// result slot, so the result slices need no locking.
package verify

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/replcheck/internal/cluster"
	"github.com/dreamware/replcheck/internal/codec"
	"github.com/dreamware/replcheck/internal/fixture"
	"github.com/dreamware/replcheck/internal/report"
)

// MinNodes is the number of reachable nodes the cross-node checks need.
const MinNodes = 2

// ErrInsufficientNodes is returned, wrapped with the observed count, when a
// cross-node check cannot be evaluated.
var ErrInsufficientNodes = errors.New("insufficient nodes")

// KV is the store boundary the checks drive. *cluster.Client implements it.
type KV interface {
	Put(ctx context.Context, node cluster.Node, key string, value []byte) cluster.Result
	Get(ctx context.Context, node cluster.Node, key string) cluster.Result
}

// Options tunes all checks.
type Options struct {
	Concurrency  int        // cases in flight per check; <= 0 means 1
	PreviewBytes int        // bytes shown in expected/actual previews
	Poll         PollConfig // replication read retries
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.PreviewBytes == 0 {
		o.PreviewBytes = 50
	}
	o.Poll = o.Poll.withDefaults()
	return o
}

func insufficient(reachable int) error {
	return fmt.Errorf("%w: %d reachable, %d required", ErrInsufficientNodes, reachable, MinNodes)
}

// runCases evaluates n cases with at most limit in flight and returns the
// results in case order.
func runCases(ctx context.Context, limit, n int, fn func(ctx context.Context, i int) report.CaseResult) []report.CaseResult {
	out := make([]report.CaseResult, n)

	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			out[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func canceledCase(key, node string) report.CaseResult {
	return report.CaseResult{Key: key, Node: node, Status: report.StatusCanceled, Error: context.Canceled.Error()}
}

// judge compares a read against the payload it should return.
func judge(p fixture.Payload, res cluster.Result) report.Status {
	switch {
	case !res.OK():
		return report.StatusFor(res)
	case codec.Equal(p.Value, res.Body):
		return report.StatusPass
	case p.HasInitial() && codec.Equal(p.Initial, res.Body):
		return report.StatusStale
	default:
		return report.StatusMismatch
	}
}

// nodeResult describes one read of p from a node.
func nodeResult(p fixture.Payload, res cluster.Result, preview int) report.NodeResult {
	nr := report.NodeResult{
		Node:       res.Node,
		Status:     judge(p, res),
		StatusCode: res.StatusCode,
		Size:       len(res.Body),
	}
	switch nr.Status {
	case report.StatusPass:
	case report.StatusMismatch, report.StatusStale:
		nr.Actual = codec.Preview(res.Body, preview)
	case report.StatusMissing:
	default:
		nr.Error = res.Describe()
	}
	return nr
}
