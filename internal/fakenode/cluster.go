package fakenode

import (
	"fmt"
	"net/http/httptest"
	"sync"

	"github.com/dreamware/replcheck/internal/cluster"
)

// Cluster is a set of fully meshed nodes named "Node 1".."Node N".
type Cluster struct {
	nodes []*Node

	mu      sync.Mutex
	servers []*httptest.Server
}

// NewCluster creates n nodes, each replicating to all the others.
func NewCluster(n int, opts Options) *Cluster {
	c := &Cluster{nodes: make([]*Node, n)}
	for i := range c.nodes {
		c.nodes[i] = New(fmt.Sprintf("Node %d", i+1), opts)
	}
	for i, node := range c.nodes {
		peers := make([]*Node, 0, n-1)
		for j, peer := range c.nodes {
			if j != i {
				peers = append(peers, peer)
			}
		}
		node.SetPeers(peers)
	}
	return c
}

// Nodes returns the cluster members in order.
func (c *Cluster) Nodes() []*Node { return c.nodes }

// Node returns member i, counting from 0.
func (c *Cluster) Node(i int) *Node { return c.nodes[i] }

// StartTest serves every node on a loopback httptest server and returns
// their descriptors.
func (c *Cluster) StartTest() []cluster.Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]cluster.Node, len(c.nodes))
	c.servers = make([]*httptest.Server, len(c.nodes))
	for i, n := range c.nodes {
		c.servers[i] = httptest.NewServer(n.Handler())
		out[i] = cluster.Node{Name: n.Name(), Addr: c.servers[i].URL}
	}
	return out
}

// Stop takes member i offline: its listener is closed so connections are
// refused, and it no longer accepts replicated entries.
func (c *Cluster) Stop(i int) {
	c.nodes[i].Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if i < len(c.servers) && c.servers[i] != nil {
		c.servers[i].Close()
		c.servers[i] = nil
	}
}

// Wait blocks until all in-flight replication has been delivered.
func (c *Cluster) Wait() {
	for _, n := range c.nodes {
		n.Wait()
	}
}

// Close waits for replication and shuts every server down.
func (c *Cluster) Close() {
	c.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.servers {
		if s != nil {
			s.Close()
			c.servers[i] = nil
		}
	}
}
