// Package codec turns logical test values into the exact bytes sent to and
// expected back from the store, and renders received bytes for reports.
//
// Comparison is always byte-level. Decoding to text only ever happens in
// Preview, which never fails.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"gopkg.in/yaml.v3"
)

// Value is a payload as written in a fixture: text in a named encoding, or a
// literal byte sequence given as hex or base64. Exactly one form must be set.
type Value struct {
	Text     string `yaml:"text,omitempty" json:"text,omitempty"`
	Encoding string `yaml:"encoding,omitempty" json:"encoding,omitempty"`
	Hex      string `yaml:"hex,omitempty" json:"hex,omitempty"`
	Base64   string `yaml:"base64,omitempty" json:"base64,omitempty"`

	// set distinguishes an explicit empty text from an unset value.
	set bool
}

// Text returns a UTF-8 text value.
func Text(s string) Value {
	return Value{Text: s, set: true}
}

// TextIn returns a text value encoded with the named encoding.
func TextIn(s, enc string) Value {
	return Value{Text: s, Encoding: enc, set: true}
}

// Raw returns a literal byte value.
func Raw(b []byte) Value {
	return Value{Hex: hex.EncodeToString(b), set: true}
}

// UnmarshalYAML accepts either a plain scalar (UTF-8 text) or a mapping with
// text/encoding, hex or base64.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*v = Text(node.Value)
		return nil
	}
	type plain Value
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*v = Value(p)
	v.set = true
	return nil
}

// Bytes returns the canonical byte sequence for v.
func (v Value) Bytes() ([]byte, error) {
	forms := 0
	if v.Hex != "" {
		forms++
	}
	if v.Base64 != "" {
		forms++
	}
	if v.Text != "" || (v.set && v.Hex == "" && v.Base64 == "") {
		forms++
	}
	if forms == 0 {
		return nil, fmt.Errorf("value has no text, hex or base64")
	}
	if forms > 1 {
		return nil, fmt.Errorf("value must set exactly one of text, hex or base64")
	}

	switch {
	case v.Hex != "":
		b, err := hex.DecodeString(strings.Join(strings.Fields(v.Hex), ""))
		if err != nil {
			return nil, fmt.Errorf("invalid hex value: %w", err)
		}
		return b, nil
	case v.Base64 != "":
		b, err := base64.StdEncoding.DecodeString(v.Base64)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 value: %w", err)
		}
		return b, nil
	default:
		return Encode(v.Text, v.Encoding)
	}
}

// MustBytes is Bytes for values known to be valid, such as built-in fixtures.
func (v Value) MustBytes() []byte {
	b, err := v.Bytes()
	if err != nil {
		panic(err)
	}
	return b
}

// Encode converts text to bytes in the named encoding. An empty name means
// UTF-8. Characters the encoding cannot represent are an error, never a
// silent substitution.
func Encode(text, name string) ([]byte, error) {
	switch normalize(name) {
	case "", "utf8":
		if !utf8.ValidString(text) {
			return nil, fmt.Errorf("text is not valid UTF-8")
		}
		return []byte(text), nil
	case "ascii", "usascii":
		for i, r := range text {
			if r >= utf8.RuneSelf {
				return nil, fmt.Errorf("encode as ascii: non-ASCII character %q at offset %d", r, i)
			}
		}
		return []byte(text), nil
	}

	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	out, err := enc.NewEncoder().String(text)
	if err != nil {
		return nil, fmt.Errorf("encode %s as %s: %w", Preview([]byte(text), 20), name, err)
	}
	return []byte(out), nil
}

// Lookup resolves a single-byte or multi-byte encoding name.
func Lookup(name string) (encoding.Encoding, error) {
	switch normalize(name) {
	case "latin1", "iso88591", "l1", "raw", "binary", "bytes":
		// ISO-8859-1 maps U+0000..U+00FF one-to-one onto bytes 0x00..0xFF.
		return charmap.ISO8859_1, nil
	case "cp1252", "windows1252":
		return charmap.Windows1252, nil
	case "utf16", "utf16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), nil
	case "utf16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return enc, nil
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(name)
}

// Equal compares two payloads byte for byte.
func Equal(expected, actual []byte) bool {
	return bytes.Equal(expected, actual)
}

// Preview renders at most limit bytes of b for humans. Valid UTF-8 is shown
// quoted; anything else as a hex dump. A limit <= 0 shows everything.
func Preview(b []byte, limit int) string {
	if b == nil {
		return "<nil>"
	}
	if utf8.Valid(b) {
		if limit <= 0 || len(b) <= limit {
			return strconv.Quote(string(b))
		}
		shown := b[:limit]
		for len(shown) > 0 && !utf8.Valid(shown) {
			shown = shown[:len(shown)-1]
		}
		return fmt.Sprintf("%s... (%d bytes)", strconv.Quote(string(shown)), len(b))
	}

	shown, suffix := b, ""
	if limit > 0 && len(b) > limit {
		shown, suffix = b[:limit], " ..."
	}
	return fmt.Sprintf("[binary %d bytes: % x%s]", len(b), shown, suffix)
}
