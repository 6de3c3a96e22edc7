// Package report aggregates check outcomes into per-category counts, a final
// verdict and a process exit status, and renders them for humans and tools.
package report

import (
	"time"

	"github.com/dreamware/replcheck/internal/cluster"
)

// Status is the outcome of one case, or of one node within a case.
type Status string

const (
	StatusPass         Status = "pass"
	StatusMismatch     Status = "mismatch"
	StatusStale        Status = "stale" // the overwritten value was read back
	StatusMissing      Status = "missing"
	StatusProtocol     Status = "protocol_error"
	StatusUnreachable  Status = "unreachable"
	StatusThrottled    Status = "throttled" // the rate limiter gave up before the call was sent
	StatusWriteFailed  Status = "write_failed"
	StatusInsufficient Status = "insufficient_nodes"
	StatusInconsistent Status = "inconsistent"
	StatusIncomplete   Status = "incomplete" // consistent, but some nodes lack the key
	StatusAbsent       Status = "absent"     // no node has the key
	StatusCanceled     Status = "canceled"
)

// Passed reports whether s counts as a success.
func (s Status) Passed() bool {
	return s == StatusPass || s == StatusIncomplete
}

// StatusFor maps a failed network call to a node status.
func StatusFor(res cluster.Result) Status {
	switch res.Kind {
	case cluster.KindOK:
		return StatusPass
	case cluster.KindNotFound:
		return StatusMissing
	case cluster.KindProtocolError:
		return StatusProtocol
	case cluster.KindThrottled:
		return StatusThrottled
	default:
		return StatusUnreachable
	}
}

// NodeResult is the outcome for one (key, node) pair.
type NodeResult struct {
	Node       string `json:"node" yaml:"node"`
	Status     Status `json:"status" yaml:"status"`
	StatusCode int    `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Size       int    `json:"size" yaml:"size"`
	Actual     string `json:"actual,omitempty" yaml:"actual,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	Attempts   int    `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	Group      int    `json:"group,omitempty" yaml:"group,omitempty"`
}

// CaseResult is the outcome for one key.
type CaseResult struct {
	Key      string       `json:"key" yaml:"key"`
	Status   Status       `json:"status" yaml:"status"`
	Node     string       `json:"node,omitempty" yaml:"node,omitempty"` // write target or read node
	Detail   string       `json:"detail,omitempty" yaml:"detail,omitempty"`
	Expected string       `json:"expected,omitempty" yaml:"expected,omitempty"`
	Actual   string       `json:"actual,omitempty" yaml:"actual,omitempty"`
	Error    string       `json:"error,omitempty" yaml:"error,omitempty"`
	Groups   int          `json:"groups,omitempty" yaml:"groups,omitempty"`
	Nodes    []NodeResult `json:"nodes,omitempty" yaml:"nodes,omitempty"`
}

// Category aggregates the cases of one check.
type Category struct {
	Name       string       `json:"name" yaml:"name"`
	Attempted  int          `json:"attempted" yaml:"attempted"`
	Succeeded  int          `json:"succeeded" yaml:"succeeded"`
	Failed     int          `json:"failed" yaml:"failed"`
	Incomplete int          `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`
	Aborted    string       `json:"aborted,omitempty" yaml:"aborted,omitempty"`
	Passed     bool         `json:"passed" yaml:"passed"`
	Cases      []CaseResult `json:"cases,omitempty" yaml:"cases,omitempty"`
}

func newCategory(name string, cases []CaseResult) *Category {
	c := &Category{Name: name, Cases: cases, Attempted: len(cases)}
	for _, cr := range cases {
		if cr.Status.Passed() {
			c.Succeeded++
		} else {
			c.Failed++
		}
		if cr.Status == StatusIncomplete {
			c.Incomplete++
		}
	}
	c.Passed = c.Failed == 0
	return c
}

// Report is created fresh per run and lives only as long as the process.
type Report struct {
	RunID       string               `json:"run_id" yaml:"run_id"`
	StartedAt   time.Time            `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time            `json:"finished_at" yaml:"finished_at"`
	Cluster     []cluster.NodeStatus `json:"cluster" yaml:"cluster"`
	Reachable   int                  `json:"reachable" yaml:"reachable"`
	Categories  []*Category          `json:"categories" yaml:"categories"`
	Interrupted bool                 `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	Passed      bool                 `json:"passed" yaml:"passed"`
}

// New starts an empty report.
func New(runID string, startedAt time.Time) *Report {
	return &Report{RunID: runID, StartedAt: startedAt}
}

// SetCluster records the probe outcome.
func (r *Report) SetCluster(v cluster.View) {
	r.Cluster = v.Nodes
	r.Reachable = v.ReachableCount()
}

// Add records the cases of a completed check and returns its category.
func (r *Report) Add(name string, cases []CaseResult) *Category {
	c := newCategory(name, cases)
	r.Categories = append(r.Categories, c)
	return c
}

// Abort records a check that could not run meaningfully. Any cases given are
// kept for detail, but the category never passes.
func (r *Report) Abort(name, reason string, cases []CaseResult) *Category {
	c := newCategory(name, cases)
	c.Aborted = reason
	c.Passed = false
	r.Categories = append(r.Categories, c)
	return c
}

// Category returns the named category, or nil.
func (r *Report) Category(name string) *Category {
	for _, c := range r.Categories {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Finalize derives the overall verdict. A run passes only when it was not
// interrupted and every executed category passed.
func (r *Report) Finalize(interrupted bool, finishedAt time.Time) {
	r.Interrupted = interrupted
	r.FinishedAt = finishedAt
	r.Passed = !interrupted
	for _, c := range r.Categories {
		if !c.Passed {
			r.Passed = false
		}
	}
}

// ExitCode is 0 when the run passed and 1 otherwise.
func (r *Report) ExitCode() int {
	if r.Passed {
		return 0
	}
	return 1
}
