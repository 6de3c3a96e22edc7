// Package fakenode implements an in-process replicated key-value store that
// speaks the same PUT/GET protocol as the real nodes replcheck targets.
//
// Writes accepted by one node are copied to every peer asynchronously after a
// configurable delay. Faults can be injected per node to produce the defects
// the checks exist to catch: dropped replication, failing writes, divergent
// replicas and stopped nodes.
package fakenode

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dreamware/replcheck/internal/storage"
)

// KeyHeader carries the key on every data request.
const KeyHeader = "Key"

// Options configures a node.
type Options struct {
	ReplicationDelay time.Duration // delay before a write reaches each peer
	Logger           *zap.Logger
}

// Faults are injected misbehaviours. The zero value is a healthy node.
type Faults struct {
	DropReplication bool // accepted writes are never sent to peers
	FailWrites      bool // writes are answered 503 and not stored
	IgnoreReplicas  bool // entries from peers are discarded
}

// Node is one fake store instance.
type Node struct {
	name    string
	store   *storage.MemoryStore
	logger  *zap.Logger
	delay   time.Duration
	router  *mux.Router
	stopped atomic.Bool

	mu     sync.RWMutex
	peers  []*Node
	faults Faults

	pending sync.WaitGroup
}

// New creates a node with no peers.
func New(name string, opts Options) *Node {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Node{
		name:   name,
		store:  storage.NewMemoryStore(name),
		logger: logger.With(zap.String("node", name)),
		delay:  opts.ReplicationDelay,
	}
	n.router = n.routes()
	return n
}

func (n *Node) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/put", n.handlePut).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/get", n.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/health", n.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", n.handleStats).Methods(http.MethodGet)
	return r
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Store exposes the node's replica.
func (n *Node) Store() *storage.MemoryStore { return n.store }

// Handler returns the node's HTTP API.
func (n *Node) Handler() http.Handler { return n.router }

// SetPeers replaces the replication targets.
func (n *Node) SetPeers(peers []*Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers = peers
}

// SetFaults replaces the injected faults.
func (n *Node) SetFaults(f Faults) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.faults = f
}

// Diverge stores value for key on this node only, as if replication of the
// write had been lost.
func (n *Node) Diverge(key string, value []byte) {
	n.store.Put(key, value)
}

// Stop makes the node discard replicated entries. Serving is stopped by the
// owner of the listener.
func (n *Node) Stop() { n.stopped.Store(true) }

// Wait blocks until every replication started by this node has been delivered.
func (n *Node) Wait() { n.pending.Wait() }

func (n *Node) currentFaults() (Faults, []*Node) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.faults, n.peers
}

func (n *Node) handlePut(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(KeyHeader)
	if key == "" {
		http.Error(w, "missing Key header", http.StatusBadRequest)
		return
	}

	faults, peers := n.currentFaults()
	if faults.FailWrites {
		http.Error(w, "writes disabled", http.StatusServiceUnavailable)
		return
	}

	value, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	entry := n.store.Put(key, value)
	n.logger.Debug("Write accepted",
		zap.String("key", key),
		zap.Int("bytes", len(value)),
		zap.Uint64("version", entry.Version))

	if !faults.DropReplication {
		n.replicate(key, entry, peers)
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (n *Node) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(KeyHeader)
	if key == "" {
		http.Error(w, "missing Key header", http.StatusBadRequest)
		return
	}

	value, err := n.store.Get(key)
	if err != nil {
		http.Error(w, "key not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(value); err != nil {
		n.logger.Warn("Error writing response", zap.Error(err))
	}
}

func (n *Node) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (n *Node) handleStats(w http.ResponseWriter, _ *http.Request) {
	response := struct {
		Node string `json:"node"`
		storage.StoreStats
	}{
		Node:       n.name,
		StoreStats: n.store.Stats(),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// replicate delivers entry to every peer after the configured delay.
func (n *Node) replicate(key string, entry storage.Entry, peers []*Node) {
	for _, peer := range peers {
		peer := peer
		n.pending.Add(1)
		go func() {
			defer n.pending.Done()
			if n.delay > 0 {
				time.Sleep(n.delay)
			}
			peer.receive(key, entry)
		}()
	}
}

func (n *Node) receive(key string, entry storage.Entry) {
	if n.stopped.Load() {
		return
	}
	if faults, _ := n.currentFaults(); faults.IgnoreReplicas {
		return
	}
	if n.store.Apply(key, entry) {
		n.logger.Debug("Replica applied",
			zap.String("key", key),
			zap.String("origin", entry.Origin),
			zap.Uint64("version", entry.Version))
	}
}
