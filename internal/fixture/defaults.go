package fixture

import (
	"strings"

	"github.com/dreamware/replcheck/internal/codec"
)

// Default returns the built-in case sets.
func Default() Set {
	return Set{
		Persistence: DefaultPersistence(),
		Replication: DefaultReplication(),
		Consistency: DefaultConsistency(),
	}
}

// DefaultPersistence covers plain text, an overwrite and raw bytes that are
// not valid UTF-8.
func DefaultPersistence() []Case {
	original := codec.Text("This is the ORIGINAL session token.")
	return []Case{
		{Key: "user_profile_1", Value: codec.Text("Hello world from User A!")},
		{Key: "session_token_xyz", Value: codec.Text("This is the NEW, overwritten session data."), Initial: &original},
		{Key: "config_setting_3", Value: codec.Text("short")},
		{Key: "binary_data_test", Value: codec.TextIn("\u0000ÿ\n\r", "latin-1")},
	}
}

// DefaultReplication covers short text, punctuation, non-Latin text, a 1000
// byte value and raw bytes.
func DefaultReplication() []Case {
	return []Case{
		{Key: "repl_test_1", Value: codec.Text("Simple text value")},
		{Key: "repl_test_2", Value: codec.Text("A longer value with special chars: !@#$%^&*()")},
		{Key: "repl_test_3", Value: codec.Text("Unicode test: 你好世界 🚀 café")},
		{Key: "repl_test_4", Value: codec.Text(strings.Repeat("x", 1000))},
		{Key: "repl_binary", Value: codec.TextIn("\u0000\u0001\u0002ÿþ", "latin-1")},
	}
}

// DefaultConsistency lists keys written by the default replication cases.
func DefaultConsistency() []string {
	return []string{"repl_test_1", "repl_test_2", "repl_test_3"}
}
