// Package fixture holds the ordered test-case sets the checks run against.
package fixture

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/replcheck/internal/codec"
)

// Case is one key/value test case. When Initial is set the case first writes
// Initial and then Value, and only Value may be read back.
type Case struct {
	Key     string       `yaml:"key"`
	Value   codec.Value  `yaml:"value"`
	Initial *codec.Value `yaml:"initial,omitempty"`
}

// Payload is a Case resolved to canonical bytes.
type Payload struct {
	Key     string
	Value   []byte
	Initial []byte // nil when the case has no overwrite step
}

// HasInitial reports whether the case overwrites an earlier value.
func (p Payload) HasInitial() bool { return p.Initial != nil }

// Resolve encodes the case's values.
func (c Case) Resolve() (Payload, error) {
	value, err := c.Value.Bytes()
	if err != nil {
		return Payload{}, fmt.Errorf("key %q: value: %w", c.Key, err)
	}
	p := Payload{Key: c.Key, Value: value}
	if c.Initial != nil {
		initial, err := c.Initial.Bytes()
		if err != nil {
			return Payload{}, fmt.Errorf("key %q: initial: %w", c.Key, err)
		}
		if initial == nil {
			initial = []byte{}
		}
		p.Initial = initial
	}
	return p, nil
}

// Set groups the independent case lists used by the checks. They are not
// required to overlap.
type Set struct {
	Persistence []Case   `yaml:"persistence"`
	Replication []Case   `yaml:"replication"`
	Consistency []string `yaml:"consistency"`
}

// Resolved is a Set with every value encoded, ready to be sent.
type Resolved struct {
	Persistence []Payload
	Replication []Payload
	Consistency []string
}

// Resolve validates and encodes every case in s. Only persistence cases may
// carry an initial value.
func (s Set) Resolve() (Resolved, error) {
	var (
		out Resolved
		err error
	)
	for _, c := range s.Replication {
		if c.Initial != nil {
			return Resolved{}, fmt.Errorf("replication: key %q: initial is only supported in the persistence set", c.Key)
		}
	}
	if out.Persistence, err = resolveAll("persistence", s.Persistence); err != nil {
		return Resolved{}, err
	}
	if out.Replication, err = resolveAll("replication", s.Replication); err != nil {
		return Resolved{}, err
	}
	if err := checkKeys("consistency", s.Consistency); err != nil {
		return Resolved{}, err
	}
	out.Consistency = append([]string(nil), s.Consistency...)
	return out, nil
}

func resolveAll(set string, cases []Case) ([]Payload, error) {
	keys := make([]string, 0, len(cases))
	for _, c := range cases {
		keys = append(keys, c.Key)
	}
	if err := checkKeys(set, keys); err != nil {
		return nil, err
	}
	out := make([]Payload, 0, len(cases))
	for _, c := range cases {
		p, err := c.Resolve()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", set, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func checkKeys(set string, keys []string) error {
	seen := make(map[string]bool, len(keys))
	for i, k := range keys {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%s: case %d: key is required", set, i)
		}
		if seen[k] {
			return fmt.Errorf("%s: duplicate key %q", set, k)
		}
		seen[k] = true
	}
	return nil
}

// Namespaced returns a copy of r with prefix prepended to every key.
func (r Resolved) Namespaced(prefix string) Resolved {
	if prefix == "" {
		return r
	}
	out := Resolved{
		Persistence: make([]Payload, len(r.Persistence)),
		Replication: make([]Payload, len(r.Replication)),
		Consistency: make([]string, len(r.Consistency)),
	}
	for i, p := range r.Persistence {
		p.Key = prefix + p.Key
		out.Persistence[i] = p
	}
	for i, p := range r.Replication {
		p.Key = prefix + p.Key
		out.Replication[i] = p
	}
	for i, k := range r.Consistency {
		out.Consistency[i] = prefix + k
	}
	return out
}

// Load reads a fixture file. Sets omitted from the file fall back to the
// defaults, so a file may override only the replication cases, for example.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("failed to read fixture file: %w", err)
	}
	var file Set
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Set{}, fmt.Errorf("failed to parse fixture file: %w", err)
	}

	set := Default()
	if file.Persistence != nil {
		set.Persistence = file.Persistence
	}
	if file.Replication != nil {
		set.Replication = file.Replication
	}
	if file.Consistency != nil {
		set.Consistency = file.Consistency
	}
	if _, err := set.Resolve(); err != nil {
		return Set{}, fmt.Errorf("invalid fixture file: %w", err)
	}
	return set, nil
}
