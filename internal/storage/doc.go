// Package storage provides the replica storage behind the in-process fake
// store nodes that replcheck is tested and demonstrated against.
//
// # Overview
//
// Each fake node owns one MemoryStore. Writes accepted by the node itself go
// through Put, which stamps the value with the node's Lamport clock and its
// name. Writes received from a peer go through Apply, which keeps whichever
// entry is newer:
//
//	┌──────────┐  Put(k, v)      ┌─────────────┐
//	│  client  │ ──────────────▶ │ node A      │  Entry{v, 7, "A"}
//	└──────────┘                 │ MemoryStore │
//	                             └──────┬──────┘
//	                                    │ Apply(k, Entry{v, 7, "A"})
//	                     ┌──────────────┴──────────────┐
//	                     ▼                             ▼
//	              ┌─────────────┐               ┌─────────────┐
//	              │ node B      │               │ node C      │
//	              └─────────────┘               └─────────────┘
//
// # Ordering
//
// Entries compare by Version and then by Origin, so two replicas that have
// applied the same set of entries hold the same value for every key no
// matter the order the entries arrived in. Apply also moves the local clock
// forward, so a later local Put always outranks everything the node has seen.
//
// # Concurrency
//
// All methods are safe for concurrent use. Reads take a shared lock, writes
// an exclusive one, and values are copied on the way in and out so callers
// never alias stored bytes.
//
// # Limitations
//
// MemoryStore keeps no data across restarts and never evicts. Deletes are not
// replicated and leave no tombstone.
package storage
