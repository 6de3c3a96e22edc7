package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// Format selects a report renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want text, json or yaml)", s)
	}
}

// Render writes r to w in the given format.
func Render(w io.Writer, r *Report, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return renderText(w, r)
	}
}

// errWriter keeps the first write error so the text renderer can stay linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

var categoryTitles = map[string]string{
	"cluster":     "Cluster",
	"persistence": "Persistence",
	"verify":      "Persisted Data",
	"replication": "Replication",
	"consistency": "Consistency",
}

func title(name string) string {
	if t, ok := categoryTitles[name]; ok {
		return t
	}
	return name
}

func renderText(w io.Writer, r *Report) error {
	ew := &errWriter{w: w}
	line := strings.Repeat("=", 70)

	ew.printf("%s\nreplcheck run %s  started %s\n%s\n", line, r.RunID, r.StartedAt.UTC().Format(time.RFC3339), line)

	ew.printf("\n## Nodes\n")
	for _, st := range r.Cluster {
		if st.Reachable {
			ew.printf("  [UP]   %s\n", st.Node)
		} else {
			ew.printf("  [DOWN] %s: %s\n", st.Node, st.Error)
		}
	}
	ew.printf("  reachable: %d/%d\n", r.Reachable, len(r.Cluster))

	for _, c := range r.Categories {
		ew.printf("\n## %s\n", title(c.Name))
		if c.Aborted != "" {
			ew.printf("  ABORTED: %s\n", c.Aborted)
		}
		for _, cr := range c.Cases {
			renderCase(ew, cr)
		}
	}

	ew.printf("\n## Summary\n")
	if ew.err != nil {
		return ew.err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range r.Categories {
		verdict := "PASS"
		if !c.Passed {
			verdict = "FAIL"
		}
		counts := fmt.Sprintf("%d/%d passed", c.Succeeded, c.Attempted)
		if c.Incomplete > 0 {
			counts += fmt.Sprintf(" (%d incomplete)", c.Incomplete)
		}
		if c.Aborted != "" {
			counts += " (aborted)"
		}
		if _, err := fmt.Fprintf(tw, "  %s\t%s\t%s\n", c.Name, counts, verdict); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	switch {
	case r.Interrupted:
		ew.printf("\nVERDICT: INTERRUPTED (partial results above)\n")
	case r.Passed:
		ew.printf("\nVERDICT: PASS\n")
	default:
		ew.printf("\nVERDICT: FAIL\n")
	}
	return ew.err
}

func renderCase(ew *errWriter, cr CaseResult) {
	mark := "PASS"
	if !cr.Status.Passed() {
		mark = "FAIL"
	}
	ew.printf("  [%s] %s: %s", mark, cr.Key, cr.Status)
	if cr.Node != "" {
		ew.printf(" (%s)", cr.Node)
	}
	if cr.Groups > 1 {
		ew.printf(", %d distinct values", cr.Groups)
	}
	ew.printf("\n")
	if cr.Detail != "" {
		ew.printf("         %s\n", cr.Detail)
	}
	if cr.Error != "" {
		ew.printf("         error:    %s\n", cr.Error)
	}
	if cr.Expected != "" && !cr.Status.Passed() {
		ew.printf("         expected: %s\n", cr.Expected)
		if cr.Actual != "" {
			ew.printf("         got:      %s\n", cr.Actual)
		}
	}
	for _, nr := range cr.Nodes {
		ew.printf("         - %s: %s", nr.Node, nr.Status)
		if nr.Group > 0 {
			ew.printf(" [group %d, %d bytes]", nr.Group, nr.Size)
		}
		if nr.Attempts > 1 {
			ew.printf(" after %d reads", nr.Attempts)
		}
		if nr.Error != "" {
			ew.printf(": %s", nr.Error)
		} else if nr.Actual != "" && (!nr.Status.Passed() || cr.Groups > 1) {
			ew.printf(": got %s", nr.Actual)
		}
		ew.printf("\n")
	}
}
