package cluster

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Kind classifies the outcome of a single PUT or GET against one node.
type Kind int

const (
	// KindOK means the node answered with a 2xx status.
	KindOK Kind = iota
	// KindNotFound means the node answered 404 to a read.
	KindNotFound
	// KindProtocolError means the node answered with any other non-2xx status.
	KindProtocolError
	// KindTransportError means no HTTP answer was obtained: refused, timeout, DNS, canceled.
	KindTransportError
	// KindThrottled means the call was never sent because the rate limiter
	// could not admit it before the context ended.
	KindThrottled
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindNotFound:
		return "not_found"
	case KindProtocolError:
		return "protocol_error"
	case KindTransportError:
		return "transport_error"
	case KindThrottled:
		return "throttled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the typed outcome of one network call.
// Body holds the raw response bytes only when Kind is KindOK.
type Result struct {
	Node       string
	Kind       Kind
	StatusCode int
	Body       []byte
	Err        error
}

// OK reports whether the call succeeded with a 2xx status.
func (r Result) OK() bool { return r.Kind == KindOK }

// Describe renders the failure part of a result for reports.
func (r Result) Describe() string {
	switch {
	case r.Kind != KindTransportError && r.Kind != KindThrottled:
		return fmt.Sprintf("status %d", r.StatusCode)
	case r.Err != nil:
		return r.Err.Error()
	default:
		return r.Kind.String()
	}
}

// ClientConfig controls how the store's PUT/GET boundary is addressed.
type ClientConfig struct {
	Timeout   time.Duration // per call, applied on top of the caller's context
	KeyHeader string        // header carrying the key, "Key" by default
	PutPath   string
	GetPath   string
	PutMethod string
	RateLimit float64 // requests per second across all nodes; 0 disables pacing
	Burst     int
}

func (c *ClientConfig) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.KeyHeader == "" {
		c.KeyHeader = "Key"
	}
	if c.PutPath == "" {
		c.PutPath = "/put"
	}
	if c.GetPath == "" {
		c.GetPath = "/get"
	}
	if c.PutMethod == "" {
		c.PutMethod = http.MethodPost
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
}

// Client issues key-addressed PUT/GET calls against store nodes.
// Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	cfg        ClientConfig
}

// NewClient creates a client. A nil logger disables logging.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	cfg.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		// Deadlines come from contexts so that probes can use a shorter one.
		httpClient: &http.Client{},
		logger:     logger,
		cfg:        cfg,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	return c
}

// Unpaced returns a client sharing c's transport and settings but without the
// rate limiter.
func (c *Client) Unpaced() *Client {
	u := *c
	u.limiter = nil
	return &u
}

// Config returns the effective client configuration.
func (c *Client) Config() ClientConfig { return c.cfg }

// Put writes value under key on node. The body is sent verbatim.
func (c *Client) Put(ctx context.Context, node Node, key string, value []byte) Result {
	return c.do(ctx, node, c.cfg.PutMethod, c.cfg.PutPath, key, value)
}

// Get reads key from node. A 2xx answer carries the stored bytes verbatim.
func (c *Client) Get(ctx context.Context, node Node, key string) Result {
	return c.do(ctx, node, http.MethodGet, c.cfg.GetPath, key, nil)
}

func (c *Client) do(ctx context.Context, node Node, method, path, key string, body []byte) Result {
	res := Result{Node: node.Name, Kind: KindTransportError}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			res.Kind = KindThrottled
			res.Err = fmt.Errorf("rate limiter: %w", err)
			return res
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	url := node.BaseURL() + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		res.Err = err
		return res
	}
	req.Header.Set(c.cfg.KeyHeader, key)
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		res.Err = err
		c.logger.Warn("Request failed",
			zap.String("node", node.Name),
			zap.String("method", method),
			zap.String("key", key),
			zap.Error(err))
		return res
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Err = fmt.Errorf("read body from %s: %w", url, err)
		return res
	}

	res.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		res.Kind = KindOK
		res.Body = payload
	case resp.StatusCode == http.StatusNotFound:
		res.Kind = KindNotFound
	default:
		res.Kind = KindProtocolError
		res.Err = fmt.Errorf("http %s %s: %d", method, url, resp.StatusCode)
	}

	c.logger.Debug("Request completed",
		zap.String("node", node.Name),
		zap.String("method", method),
		zap.String("key", key),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(payload)))
	return res
}
