package fixture

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/replcheck/internal/codec"
)

func TestDefaultResolves(t *testing.T) {
	resolved, err := Default().Resolve()
	require.NoError(t, err)

	require.Len(t, resolved.Persistence, 4)
	require.Len(t, resolved.Replication, 5)
	assert.Equal(t, []string{"repl_test_1", "repl_test_2", "repl_test_3"}, resolved.Consistency)

	byKey := map[string]Payload{}
	for _, p := range append(resolved.Persistence, resolved.Replication...) {
		byKey[p.Key] = p
	}

	assert.Equal(t, []byte{0x00, 0xFF, 0x0A, 0x0D}, byKey["binary_data_test"].Value)
	assert.Equal(t, []byte{0x00, 0x01, 0x02, 0xFF, 0xFE}, byKey["repl_binary"].Value)
	assert.Len(t, byKey["repl_test_4"].Value, 1000)
	assert.Equal(t, []byte("Unicode test: 你好世界 🚀 café"), byKey["repl_test_3"].Value)

	overwrite := byKey["session_token_xyz"]
	require.True(t, overwrite.HasInitial())
	assert.Equal(t, []byte("This is the ORIGINAL session token."), overwrite.Initial)
	assert.Equal(t, []byte("This is the NEW, overwritten session data."), overwrite.Value)
	assert.False(t, byKey["user_profile_1"].HasInitial())
}

func TestDefaultOrderIsStable(t *testing.T) {
	resolved, err := Default().Resolve()
	require.NoError(t, err)

	var keys []string
	for _, p := range resolved.Persistence {
		keys = append(keys, p.Key)
	}
	assert.Equal(t, []string{"user_profile_1", "session_token_xyz", "config_setting_3", "binary_data_test"}, keys)
}

func TestResolveValidation(t *testing.T) {
	tests := []struct {
		name    string
		set     Set
		wantErr string
	}{
		{
			name:    "empty key",
			set:     Set{Persistence: []Case{{Key: " ", Value: codec.Text("x")}}},
			wantErr: "key is required",
		},
		{
			name: "duplicate key",
			set: Set{Replication: []Case{
				{Key: "a", Value: codec.Text("x")},
				{Key: "a", Value: codec.Text("y")},
			}},
			wantErr: `duplicate key "a"`,
		},
		{
			name:    "duplicate consistency key",
			set:     Set{Consistency: []string{"a", "a"}},
			wantErr: "consistency: duplicate key",
		},
		{
			name:    "bad encoding",
			set:     Set{Persistence: []Case{{Key: "a", Value: codec.TextIn("x", "nope")}}},
			wantErr: "unsupported encoding",
		},
		{
			name: "bad initial",
			set: Set{Persistence: []Case{
				{Key: "a", Value: codec.Text("x"), Initial: &codec.Value{Hex: "zz"}},
			}},
			wantErr: "initial",
		},
		{
			name: "initial in replication set",
			set: Set{Replication: []Case{
				{Key: "r", Value: codec.Text("new"), Initial: &codec.Value{Text: "old"}},
			}},
			wantErr: `replication: key "r": initial is only supported in the persistence set`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.set.Resolve()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNamespaced(t *testing.T) {
	resolved, err := Default().Resolve()
	require.NoError(t, err)

	ns := resolved.Namespaced("1a2b3c4d_")
	assert.Equal(t, "1a2b3c4d_user_profile_1", ns.Persistence[0].Key)
	assert.Equal(t, "1a2b3c4d_repl_binary", ns.Replication[4].Key)
	assert.Equal(t, "1a2b3c4d_repl_test_1", ns.Consistency[0])

	// original untouched, payloads shared
	assert.Equal(t, "user_profile_1", resolved.Persistence[0].Key)
	assert.Equal(t, resolved.Replication[4].Value, ns.Replication[4].Value)

	assert.Equal(t, resolved, resolved.Namespaced(""))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixtures.yaml")
	content := `
persistence:
  - key: overwrite_me
    initial: old
    value: {text: "naïve", encoding: latin-1}
replication:
  - key: blob
    value: {hex: "00 ff 00"}
  - key: greeting
    value: hello
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	set, err := Load(path)
	require.NoError(t, err)

	// consistency not in the file: defaults kept
	assert.Equal(t, DefaultConsistency(), set.Consistency)

	resolved, err := set.Resolve()
	require.NoError(t, err)
	require.Len(t, resolved.Replication, 2)
	assert.Equal(t, []byte{0x00, 0xFF, 0x00}, resolved.Replication[0].Value)
	assert.Equal(t, []byte("hello"), resolved.Replication[1].Value)
	require.Len(t, resolved.Persistence, 1)
	assert.Equal(t, []byte("old"), resolved.Persistence[0].Initial)
	assert.Equal(t, []byte{'n', 'a', 0xEF, 'v', 'e'}, resolved.Persistence[0].Value)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read fixture file")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("replication: [unclosed"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "failed to parse fixture file")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte(strings.TrimSpace(`
persistence:
  - key: a
    value: {text: "你好", encoding: latin-1}
`)), 0o644))
	_, err = Load(invalid)
	assert.ErrorContains(t, err, "invalid fixture file")

	replInitial := filepath.Join(dir, "repl-initial.yaml")
	require.NoError(t, os.WriteFile(replInitial, []byte(strings.TrimSpace(`
replication:
  - key: r
    initial: old
    value: new
`)), 0o644))
	_, err = Load(replInitial)
	assert.ErrorContains(t, err, "initial is only supported in the persistence set")
}
