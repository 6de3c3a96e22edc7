// Package probe determines which configured nodes are reachable before any
// check runs.
package probe

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/replcheck/internal/cluster"
)

// DefaultKey is read from every node during a probe. It is not expected to
// exist, so a not-found answer is the normal healthy outcome.
const DefaultKey = "_health_check"

// CheckFunc probes a single node. A non-nil error marks the node unreachable.
type CheckFunc func(ctx context.Context, node cluster.Node) error

// Config controls a probe round.
type Config struct {
	Key     string        // sentinel key read from each node
	Timeout time.Duration // per node, shorter than data-call timeouts
}

// Prober performs one-shot reachability checks against a static node list.
// Thread-safe: a Prober may be used by concurrent callers once configured.
type Prober struct {
	client    *cluster.Client
	checkFunc CheckFunc
	logger    *zap.Logger
	key       string
	timeout   time.Duration
}

// New creates a prober that reads cfg.Key through client. The client's rate
// limiter is bypassed so a probe is never delayed past its own timeout.
//
// Parameters:
//   - client: Client used for the sentinel read
//   - cfg: Sentinel key and per-node timeout (defaults: "_health_check", 2s)
//   - logger: Destination for probe diagnostics; nil disables logging
//
// Example:
//
//	prober := probe.New(client, probe.Config{Timeout: 2 * time.Second}, logger)
//	view := prober.Probe(ctx, nodes)
func New(client *cluster.Client, cfg Config, logger *zap.Logger) *Prober {
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Prober{
		client:  client.Unpaced(),
		logger:  logger,
		key:     cfg.Key,
		timeout: cfg.Timeout,
	}
	p.checkFunc = p.defaultCheck
	return p
}

// SetCheckFunction overrides the default sentinel read. Useful for tests and
// custom health checks. Must be called before Probe.
//
// Example:
//
//	prober.SetCheckFunction(func(ctx context.Context, n cluster.Node) error {
//	    return nil // every node is reachable
//	})
func (p *Prober) SetCheckFunction(fn CheckFunc) {
	p.checkFunc = fn
}

// Probe checks every node concurrently and returns the view in declaration
// order. A failing node never stops the others from being probed.
//
// Implementation:
//  1. Start one check per node, each bounded by the probe timeout
//  2. Record each outcome in that node's own slot
//  3. Wait for all checks, then derive the reachable subset
func (p *Prober) Probe(ctx context.Context, nodes []cluster.Node) cluster.View {
	statuses := make([]cluster.NodeStatus, len(nodes))

	var g errgroup.Group
	for i, node := range nodes {
		i, node := i, node
		g.Go(func() error {
			statuses[i] = p.checkNode(ctx, node)
			return nil
		})
	}
	_ = g.Wait()

	view := cluster.NewView(statuses)
	p.logger.Info("Probe completed",
		zap.Int("nodes", len(nodes)),
		zap.Int("reachable", view.ReachableCount()))
	return view
}

func (p *Prober) checkNode(ctx context.Context, node cluster.Node) cluster.NodeStatus {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	st := cluster.NodeStatus{Node: node, Reachable: true}
	if err := p.checkFunc(ctx, node); err != nil {
		st.Reachable = false
		st.Error = err.Error()
		p.logger.Warn("Node unreachable",
			zap.String("node", node.Name),
			zap.String("addr", node.Addr),
			zap.Error(err))
		return st
	}
	p.logger.Debug("Node reachable", zap.String("node", node.Name))
	return st
}

// defaultCheck reads the sentinel key. Any HTTP answer, including 404 and
// 5xx, proves the node is accepting connections; only transport failures
// count against it.
func (p *Prober) defaultCheck(ctx context.Context, node cluster.Node) error {
	res := p.client.Get(ctx, node, p.key)
	if res.Kind == cluster.KindTransportError {
		return res.Err
	}
	return nil
}
