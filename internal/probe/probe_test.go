package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/replcheck/internal/cluster"
)

// TestNewDefaults verifies that New fills in the sentinel key and timeout.
func TestNewDefaults(t *testing.T) {
	p := New(cluster.NewClient(cluster.ClientConfig{}, nil), Config{}, nil)

	assert.Equal(t, DefaultKey, p.key)
	assert.Equal(t, 2*time.Second, p.timeout)
	assert.NotNil(t, p.checkFunc)
	assert.NotNil(t, p.logger)
}

// TestProbeStatuses drives the default check against real HTTP answers.
func TestProbeStatuses(t *testing.T) {
	var (
		mu   sync.Mutex
		keys []string
	)
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get("Key"))
		mu.Unlock()
		http.NotFound(w, r)
	}))
	defer notFound.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	nodes := []cluster.Node{
		{Name: "Node 1", Addr: closedURL},
		{Name: "Node 2", Addr: notFound.URL},
		{Name: "Node 3", Addr: broken.URL},
	}

	p := New(cluster.NewClient(cluster.ClientConfig{}, nil), Config{Timeout: time.Second}, nil)
	view := p.Probe(context.Background(), nodes)

	require.Len(t, view.Nodes, 3)
	assert.False(t, view.Nodes[0].Reachable)
	assert.NotEmpty(t, view.Nodes[0].Error)
	assert.True(t, view.Nodes[1].Reachable, "404 is a healthy answer")
	assert.True(t, view.Nodes[2].Reachable, "a 5xx answer still proves connectivity")

	// reachable subset keeps declaration order
	assert.Equal(t, []cluster.Node{nodes[1], nodes[2]}, view.Reachable)
	primary, ok := view.Primary()
	require.True(t, ok)
	assert.Equal(t, "Node 2", primary.Name)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{DefaultKey}, keys)
}

// TestProbeTimeout verifies that a slow node is marked unreachable within
// the probe timeout rather than the data-call timeout.
func TestProbeTimeout(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	p := New(cluster.NewClient(cluster.ClientConfig{Timeout: 10 * time.Second}, nil),
		Config{Timeout: 50 * time.Millisecond}, nil)

	start := time.Now()
	view := p.Probe(context.Background(), []cluster.Node{{Name: "slow", Addr: slow.URL}})

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 0, view.ReachableCount())
	assert.Contains(t, view.Nodes[0].Error, "deadline exceeded")
}

// TestProbeIsolation verifies that failures are isolated per node and that
// checks run concurrently.
func TestProbeIsolation(t *testing.T) {
	p := New(cluster.NewClient(cluster.ClientConfig{}, nil), Config{Timeout: time.Second}, nil)

	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	p.SetCheckFunction(func(ctx context.Context, n cluster.Node) error {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()

		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		if n.Name == "b" {
			return errors.New("connection refused")
		}
		return nil
	})

	nodes := []cluster.Node{{Name: "a", Addr: "a:1"}, {Name: "b", Addr: "b:1"}, {Name: "c", Addr: "c:1"}}
	view := p.Probe(context.Background(), nodes)

	assert.Equal(t, 2, view.ReachableCount())
	assert.Equal(t, "connection refused", view.Nodes[1].Error)
	assert.Equal(t, []cluster.Node{nodes[0], nodes[2]}, view.Reachable)
	assert.Greater(t, peak, 1, "checks should overlap")
}

// TestProbeCanceled verifies that a canceled context marks nodes unreachable
// without hanging.
func TestProbeCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(cluster.NewClient(cluster.ClientConfig{}, nil), Config{}, nil)
	view := p.Probe(ctx, []cluster.Node{{Name: "Node 1", Addr: server.URL}})

	assert.Equal(t, 0, view.ReachableCount())
}

// TestProbeEmpty verifies that an empty node list yields an empty view.
func TestProbeEmpty(t *testing.T) {
	p := New(cluster.NewClient(cluster.ClientConfig{}, nil), Config{}, nil)
	view := p.Probe(context.Background(), nil)

	assert.Empty(t, view.Nodes)
	_, ok := view.Primary()
	assert.False(t, ok)
}

// TestProbeIgnoresRateLimit verifies that a paced client cannot make healthy
// nodes miss the probe timeout.
func TestProbeIgnoresRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	nodes := make([]cluster.Node, 4)
	for i := range nodes {
		nodes[i] = cluster.Node{Name: fmt.Sprintf("Node %d", i+1), Addr: server.URL}
	}

	client := cluster.NewClient(cluster.ClientConfig{RateLimit: 1, Burst: 1}, nil)
	p := New(client, Config{Timeout: 200 * time.Millisecond}, nil)
	view := p.Probe(context.Background(), nodes)

	assert.Equal(t, 4, view.ReachableCount())
	for _, st := range view.Nodes {
		assert.True(t, st.Reachable, "%s: %s", st.Node.Name, st.Error)
	}
}
