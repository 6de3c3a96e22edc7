package cluster

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNodeBaseURL tests address normalization for both address forms
func TestNodeBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		expected string
	}{
		{"host and port", "localhost:8080", "http://localhost:8080"},
		{"full url", "http://localhost:8081", "http://localhost:8081"},
		{"trailing slash", "http://localhost:8082/", "http://localhost:8082"},
		{"https", "https://kv.example.com", "https://kv.example.com"},
		{"surrounding space", "  127.0.0.1:9000 ", "http://127.0.0.1:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Node{Name: "n", Addr: tt.addr}.BaseURL())
		})
	}
}

// TestNodeJSON verifies the wire names used in JSON reports
func TestNodeJSON(t *testing.T) {
	data, err := json.Marshal(Node{Name: "Node 1", Addr: "http://localhost:8080"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Node 1","addr":"http://localhost:8080"}`, string(data))
}

// TestNewView verifies that the reachable subset keeps declaration order
func TestNewView(t *testing.T) {
	a := Node{Name: "a", Addr: "localhost:1"}
	b := Node{Name: "b", Addr: "localhost:2"}
	c := Node{Name: "c", Addr: "localhost:3"}

	view := NewView([]NodeStatus{
		{Node: a, Reachable: false, Error: "connection refused"},
		{Node: b, Reachable: true},
		{Node: c, Reachable: true},
	})

	assert.Equal(t, 2, view.ReachableCount())
	assert.Equal(t, []Node{b, c}, view.Reachable)

	primary, ok := view.Primary()
	require.True(t, ok)
	assert.Equal(t, b, primary)

	down := view.Unreachable()
	require.Len(t, down, 1)
	assert.Equal(t, "a", down[0].Node.Name)
	assert.Equal(t, "connection refused", down[0].Error)

	st, ok := view.Lookup("c")
	require.True(t, ok)
	assert.True(t, st.Reachable)

	_, ok = view.Lookup("missing")
	assert.False(t, ok)
}

// TestViewPrimaryEmpty verifies that an all-down cluster has no primary
func TestViewPrimaryEmpty(t *testing.T) {
	view := NewView([]NodeStatus{{Node: Node{Name: "a", Addr: "x"}}})
	_, ok := view.Primary()
	assert.False(t, ok)
	assert.Equal(t, 0, view.ReachableCount())
}

// TestValidateNodes tests static node list validation
func TestValidateNodes(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []Node
		wantErr string
	}{
		{"empty", nil, "at least one node"},
		{"missing addr", []Node{{Name: "a"}}, "addr is required"},
		{"missing name", []Node{{Addr: "localhost:1"}}, "name is required"},
		{"duplicate", []Node{{Name: "a", Addr: "x:1"}, {Name: "a", Addr: "x:2"}}, "duplicate node name"},
		{"valid", []Node{{Name: "a", Addr: "x:1"}, {Name: "b", Addr: "x:2"}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNodes(tt.nodes)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestNodesFromAddrs verifies generated names and blank skipping
func TestNodesFromAddrs(t *testing.T) {
	nodes := NodesFromAddrs([]string{"localhost:8080", " ", "http://localhost:8081"})
	require.Len(t, nodes, 2)
	assert.Equal(t, Node{Name: "Node 1", Addr: "localhost:8080"}, nodes[0])
	assert.Equal(t, Node{Name: "Node 2", Addr: "http://localhost:8081"}, nodes[1])
}
