package verify

import (
	"context"

	"go.uber.org/zap"

	"github.com/dreamware/replcheck/internal/cluster"
	"github.com/dreamware/replcheck/internal/codec"
	"github.com/dreamware/replcheck/internal/fixture"
	"github.com/dreamware/replcheck/internal/report"
)

// Persistence writes each case to one node and reads it back from the same
// node, without involving any peer.
type Persistence struct {
	kv     KV
	logger *zap.Logger
	opts   Options
}

// NewPersistence creates a persistence check. A nil logger disables logging.
func NewPersistence(kv KV, opts Options, logger *zap.Logger) *Persistence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persistence{kv: kv, opts: opts.withDefaults(), logger: logger}
}

// Run writes and reads back every case on node. Cases that carry an initial
// value are written twice; reading the initial bytes back is reported as
// stale. A failed call on one key never affects the others.
func (p *Persistence) Run(ctx context.Context, node cluster.Node, cases []fixture.Payload) []report.CaseResult {
	return runCases(ctx, p.opts.Concurrency, len(cases), func(ctx context.Context, i int) report.CaseResult {
		return p.roundTrip(ctx, node, cases[i])
	})
}

// Verify only reads: it certifies that values written by an earlier Run are
// still served, for example after the node was restarted.
func (p *Persistence) Verify(ctx context.Context, node cluster.Node, cases []fixture.Payload) []report.CaseResult {
	return runCases(ctx, p.opts.Concurrency, len(cases), func(ctx context.Context, i int) report.CaseResult {
		if ctx.Err() != nil {
			return canceledCase(cases[i].Key, node.Name)
		}
		return p.readBack(ctx, node, cases[i])
	})
}

func (p *Persistence) roundTrip(ctx context.Context, node cluster.Node, c fixture.Payload) report.CaseResult {
	if ctx.Err() != nil {
		return canceledCase(c.Key, node.Name)
	}

	if c.HasInitial() {
		if cr, ok := p.write(ctx, node, c.Key, c.Initial, "initial write"); !ok {
			return cr
		}
	}
	if cr, ok := p.write(ctx, node, c.Key, c.Value, ""); !ok {
		return cr
	}
	return p.readBack(ctx, node, c)
}

func (p *Persistence) write(ctx context.Context, node cluster.Node, key string, value []byte, detail string) (report.CaseResult, bool) {
	res := p.kv.Put(ctx, node, key, value)
	if res.OK() {
		return report.CaseResult{}, true
	}
	if ctx.Err() != nil {
		return canceledCase(key, node.Name), false
	}
	p.logger.Debug("Write failed",
		zap.String("key", key),
		zap.String("node", node.Name),
		zap.Stringer("kind", res.Kind))
	return report.CaseResult{
		Key:    key,
		Node:   node.Name,
		Status: report.StatusWriteFailed,
		Detail: detail,
		Error:  res.Describe(),
	}, false
}

func (p *Persistence) readBack(ctx context.Context, node cluster.Node, c fixture.Payload) report.CaseResult {
	res := p.kv.Get(ctx, node, c.Key)
	if !res.OK() && ctx.Err() != nil {
		return canceledCase(c.Key, node.Name)
	}

	cr := report.CaseResult{
		Key:    c.Key,
		Node:   node.Name,
		Status: judge(c, res),
	}
	switch cr.Status {
	case report.StatusPass:
	case report.StatusMismatch, report.StatusStale:
		cr.Expected = codec.Preview(c.Value, p.opts.PreviewBytes)
		cr.Actual = codec.Preview(res.Body, p.opts.PreviewBytes)
		if cr.Status == report.StatusStale {
			cr.Detail = "read returned the overwritten value"
		}
	case report.StatusMissing:
		cr.Expected = codec.Preview(c.Value, p.opts.PreviewBytes)
		cr.Detail = "key not found"
	default:
		cr.Error = res.Describe()
	}

	p.logger.Debug("Persistence case",
		zap.String("key", c.Key),
		zap.String("node", node.Name),
		zap.String("status", string(cr.Status)))
	return cr
}
