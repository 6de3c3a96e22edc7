// Package cluster describes the store nodes under test and the byte-oriented
// PUT/GET boundary the harness uses to reach them.
//
// # Overview
//
// The store is treated as a black box. Every node is an independently
// addressable HTTP endpoint; the harness knows nothing about its storage
// engine, replication protocol or quorum settings. All it can do is:
//
//	PUT  <addr>/put   Key: <key>   body: raw bytes   -> 2xx on success
//	GET  <addr>/get   Key: <key>                     -> 2xx + raw bytes, 404 if absent
//
// Paths, the PUT method and the key header name are configurable through
// ClientConfig.
//
// # Core Types
//
// Node: static identity of a store instance (symbolic name + base address).
// Addresses may be given as "host:port" or as full URLs.
//
// NodeStatus / View: the result of one probe round. View keeps every node in
// declaration order and exposes the reachable subset in the same order; the
// first reachable node is the conventional write target.
//
// Result: the typed outcome of one call. Instead of surfacing Go errors the
// client classifies each call as one of
//
//	KindOK             2xx, Body holds the payload verbatim
//	KindNotFound       404
//	KindProtocolError  any other status from a reachable node
//	KindTransportError refused, timed out, DNS failure or canceled
//	KindThrottled      never sent: the rate limiter gave up first
//
// so verifiers branch explicitly on the kind of failure and never conflate a
// dead node with a content mismatch.
//
// # Timeouts and Pacing
//
// Each call runs under ClientConfig.Timeout layered on the caller's context,
// which lets the probe impose a shorter deadline than data calls. An optional
// token bucket (golang.org/x/time/rate) paces requests across all nodes.
// Probes go through Unpaced, so pacing never eats into the probe timeout.
//
// # Concurrency
//
// Client is safe for concurrent use; View and Node are values and are never
// mutated after construction.
package cluster
