package cluster

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Node identifies one independently addressable store instance.
// Nodes are immutable configuration; reachability lives in NodeStatus.
type Node struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// BaseURL returns the node address as an absolute URL without a trailing slash.
// Both "host:port" and "http://host:port/" forms are accepted.
func (n Node) BaseURL() string {
	url := strings.TrimSpace(n.Addr)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = fmt.Sprintf("http://%s", url)
	}
	return strings.TrimRight(url, "/")
}

func (n Node) String() string {
	if n.Name == "" {
		return n.Addr
	}
	return fmt.Sprintf("%s (%s)", n.Name, n.Addr)
}

// NodeStatus is the outcome of probing one node.
type NodeStatus struct {
	Node      Node   `json:"node" yaml:"node"`
	Reachable bool   `json:"reachable" yaml:"reachable"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// View is the cluster as observed by a single probe round.
// Nodes keeps declaration order; Reachable is the reachable subset in the same order.
type View struct {
	Nodes     []NodeStatus `json:"nodes" yaml:"nodes"`
	Reachable []Node       `json:"-" yaml:"-"`
}

// NewView builds a view from per-node statuses given in declaration order.
func NewView(statuses []NodeStatus) View {
	v := View{Nodes: statuses}
	for _, st := range statuses {
		if st.Reachable {
			v.Reachable = append(v.Reachable, st.Node)
		}
	}
	return v
}

// ReachableCount returns the number of nodes that answered the probe.
func (v View) ReachableCount() int {
	return len(v.Reachable)
}

// Unreachable returns the statuses of nodes that failed the probe.
func (v View) Unreachable() []NodeStatus {
	var out []NodeStatus
	for _, st := range v.Nodes {
		if !st.Reachable {
			out = append(out, st)
		}
	}
	return out
}

// Lookup finds a configured node by name.
func (v View) Lookup(name string) (NodeStatus, bool) {
	idx := slices.IndexFunc(v.Nodes, func(st NodeStatus) bool { return st.Node.Name == name })
	if idx < 0 {
		return NodeStatus{}, false
	}
	return v.Nodes[idx], true
}

// Primary returns the first reachable node.
func (v View) Primary() (Node, bool) {
	if len(v.Reachable) == 0 {
		return Node{}, false
	}
	return v.Reachable[0], true
}

// ValidateNodes checks a static node list: at least one node, non-empty
// addresses, unique names.
func ValidateNodes(nodes []Node) error {
	if len(nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}
	seen := make(map[string]bool, len(nodes))
	for i, n := range nodes {
		if strings.TrimSpace(n.Addr) == "" {
			return fmt.Errorf("node %d: addr is required", i)
		}
		if n.Name == "" {
			return fmt.Errorf("node %d (%s): name is required", i, n.Addr)
		}
		if seen[n.Name] {
			return fmt.Errorf("duplicate node name %q", n.Name)
		}
		seen[n.Name] = true
	}
	return nil
}

// NodesFromAddrs names a bare address list "Node 1", "Node 2", ... in order.
func NodesFromAddrs(addrs []string) []Node {
	nodes := make([]Node, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		nodes = append(nodes, Node{Name: fmt.Sprintf("Node %d", len(nodes)+1), Addr: a})
	}
	return nodes
}
