package sharetoken

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// Claim is a single disclosed identity attribute.
type Claim struct {
	Name  string
	Value string
}

// ClaimSet is the ordered set of claims a holder chose to disclose.
// Names are unique; order is preserved through encoding and decoding.
type ClaimSet []Claim

// Len returns the number of claims.
func (s ClaimSet) Len() int {
	return len(s)
}

// Get returns the value for name.
func (s ClaimSet) Get(name string) (string, bool) {
	for _, c := range s {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Names returns claim names in order.
func (s ClaimSet) Names() []string {
	names := make([]string, 0, len(s))
	for _, c := range s {
		names = append(names, c.Name)
	}
	return names
}

// Map returns the claims as a plain map. Order is lost.
func (s ClaimSet) Map() map[string]string {
	out := make(map[string]string, len(s))
	for _, c := range s {
		out[c.Name] = c.Value
	}
	return out
}

// Equal reports whether both sets hold the same claims in the same order.
func (s ClaimSet) Equal(other ClaimSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no backing array with s.
func (s ClaimSet) Clone() ClaimSet {
	if s == nil {
		return nil
	}
	return append(ClaimSet{}, s...)
}

// Validate checks that every claim can be encoded canonically.
func (s ClaimSet) Validate() error {
	seen := make(map[string]struct{}, len(s))
	for i, c := range s {
		switch {
		case c.Name == "":
			return fmt.Errorf("claim %d: empty name", i)
		case !utf8.ValidString(c.Name):
			return fmt.Errorf("claim %d: name is not valid UTF-8", i)
		case !utf8.ValidString(c.Value):
			return fmt.Errorf("claim %q: value is not valid UTF-8", c.Name)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("duplicate claim %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// MarshalJSON writes the claims as a JSON object in set order.
func (s ClaimSet) MarshalJSON() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(c.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of string values, keeping wire order.
func (s *ClaimSet) UnmarshalJSON(data []byte) error {
	// The token stream below does not check separators, so syntax is checked first.
	if bytes.IndexByte(data, 0) >= 0 || !json.Valid(data) {
		return errors.New("claims are not valid JSON")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("claims must be a JSON object")
	}

	out := ClaimSet{}
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return errors.New("claim name must be a string")
		}
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		value, ok := tok.(string)
		if !ok {
			return fmt.Errorf("claim %q must be a string", name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate claim %q", name)
		}
		seen[name] = struct{}{}
		out = append(out, Claim{Name: name, Value: value})
	}
	tok, err = dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '}' {
		return errors.New("claims object not terminated")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after claims object")
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*s = out
	return nil
}
