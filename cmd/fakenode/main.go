// Package main runs a local cluster of fake replicated key-value nodes that
// speak the PUT/GET protocol replcheck verifies.
//
// Every node listens on its own port and copies accepted writes to the other
// nodes after a configurable delay, which makes the binary a convenient
// target for trying replcheck without a real store.
//
// Configuration:
//   - FAKENODE_COUNT: Number of nodes (default: 3)
//   - FAKENODE_HOST: Listen host (default: "127.0.0.1")
//   - FAKENODE_BASE_PORT: Port of the first node; node i listens on base+i (default: 8080)
//   - FAKENODE_REPLICATION_DELAY: Delay before a write reaches each peer (default: "50ms")
//   - FAKENODE_LOG_LEVEL: debug, info, warn or error (default: "info")
//
// Example usage:
//
//	# Start three nodes on 8080-8082 and check them
//	FAKENODE_REPLICATION_DELAY=20ms ./fakenode &
//	replcheck all
//
//	# Store and read a value directly
//	curl -X POST -H 'Key: greeting' -d 'hello' localhost:8080/put
//	curl -H 'Key: greeting' localhost:8081/get
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/replcheck/internal/fakenode"
	"github.com/dreamware/replcheck/internal/logging"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

// settings is the environment-derived configuration.
type settings struct {
	count    int
	host     string
	basePort int
	delay    time.Duration
	logLevel string
}

// loadSettings reads and validates the FAKENODE_* environment.
func loadSettings() (settings, error) {
	var s settings
	var err error

	if s.count, err = strconv.Atoi(getenv("FAKENODE_COUNT", "3")); err != nil || s.count < 1 {
		return s, fmt.Errorf("invalid FAKENODE_COUNT: must be a positive integer")
	}
	s.host = getenv("FAKENODE_HOST", "127.0.0.1")
	if s.basePort, err = strconv.Atoi(getenv("FAKENODE_BASE_PORT", "8080")); err != nil || s.basePort < 1 || s.basePort+s.count-1 > 65535 {
		return s, fmt.Errorf("invalid FAKENODE_BASE_PORT: must leave room for %d ports", s.count)
	}
	if s.delay, err = time.ParseDuration(getenv("FAKENODE_REPLICATION_DELAY", "50ms")); err != nil || s.delay < 0 {
		return s, fmt.Errorf("invalid FAKENODE_REPLICATION_DELAY: must be a non-negative duration")
	}
	s.logLevel = getenv("FAKENODE_LOG_LEVEL", "info")
	return s, nil
}

// listenAddr returns the listen address of node i.
func (s settings) listenAddr(i int) string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.basePort+i))
}

// newServers builds one HTTP server per cluster member.
func newServers(c *fakenode.Cluster, s settings) []*http.Server {
	servers := make([]*http.Server, len(c.Nodes()))
	for i, node := range c.Nodes() {
		servers[i] = &http.Server{
			Addr:              s.listenAddr(i),
			Handler:           node.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return servers
}

// main starts the nodes and serves until SIGINT or SIGTERM, then shuts the
// servers down and waits for in-flight replication.
//
// Exit codes:
//   - 0: Normal shutdown via signal
//   - 1: Invalid configuration or a listener failed to start
func main() {
	s, err := loadSettings()
	if err != nil {
		logFatal("%v", err)
		return
	}
	logger, err := logging.New(s.logLevel, "console")
	if err != nil {
		logFatal("%v", err)
		return
	}
	defer func() { _ = logger.Sync() }()

	c := fakenode.NewCluster(s.count, fakenode.Options{ReplicationDelay: s.delay, Logger: logger})
	servers := newServers(c, s)

	for i, srv := range servers {
		go func(name string, srv *http.Server) {
			logger.Info("Node listening", zap.String("node", name), zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logFatal("listen %s: %v", srv.Addr, err)
			}
		}(c.Node(i).Name(), srv)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Server shutdown error", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}
	c.Close()
	logger.Info("Cluster stopped")
}

// getenv retrieves an environment variable with a default fallback value.
//
// Parameters:
//   - k: Environment variable name to look up
//   - def: Default value if variable is unset or empty
//
// Returns:
//   - Environment variable value if set and non-empty
//   - Default value otherwise
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
