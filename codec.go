package sharetoken

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwa"
)

const (
	// MaxSegmentLength bounds each encoded header or payload segment.
	MaxSegmentLength = 8 << 10
	// MaxTokenLength bounds a whole token before any decoding happens.
	MaxTokenLength = 16 << 10

	// maxNumericDate is 9999-12-31T23:59:59Z.
	maxNumericDate = 253402300799
)

var segmentEncoding = base64.RawURLEncoding.Strict()

// Header is the first token segment.
type Header struct {
	Algorithm jwa.SignatureAlgorithm `json:"alg"`
	Type      string                 `json:"typ"`
}

// Payload is the second token segment. Times are whole seconds since the epoch.
type Payload struct {
	Claims    ClaimSet `json:"claims"`
	IssuedAt  int64    `json:"iat"`
	ExpiresAt *int64   `json:"exp,omitempty"`
	Issuer    string   `json:"iss"`
}

// IssuedTime returns iat as a UTC time.
func (p Payload) IssuedTime() time.Time {
	return time.Unix(p.IssuedAt, 0).UTC()
}

// ExpiresTime returns exp as a UTC time; false when the token never expires.
func (p Payload) ExpiresTime() (time.Time, bool) {
	if p.ExpiresAt == nil {
		return time.Time{}, false
	}
	return time.Unix(*p.ExpiresAt, 0).UTC(), true
}

// EncodeHeader returns the canonical base64url form of h.
func EncodeHeader(h Header) (string, error) {
	if h.Algorithm == "" || h.Type == "" {
		return "", newError(ErrCodeEncoding, errors.New("header requires alg and typ"))
	}
	return encodeSegment(h)
}

// EncodePayload returns the canonical base64url form of p.
func EncodePayload(p Payload) (string, error) {
	if p.Claims == nil {
		p.Claims = ClaimSet{}
	}
	if err := p.Claims.Validate(); err != nil {
		return "", newError(ErrCodeEncoding, err)
	}
	if err := checkNumericDate(p.IssuedAt); err != nil {
		return "", newError(ErrCodeEncoding, fmt.Errorf("iat: %w", err))
	}
	if p.ExpiresAt != nil {
		if err := checkNumericDate(*p.ExpiresAt); err != nil {
			return "", newError(ErrCodeEncoding, fmt.Errorf("exp: %w", err))
		}
		if *p.ExpiresAt < p.IssuedAt {
			return "", newError(ErrCodeEncoding, errors.New("exp precedes iat"))
		}
	}
	return encodeSegment(p)
}

func encodeSegment(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", newError(ErrCodeEncoding, err)
	}
	return segmentEncoding.EncodeToString(raw), nil
}

// DecodeHeader parses a header segment. It does not establish trust.
func DecodeHeader(segment string) (Header, error) {
	fields, err := decodeObject(segment, []string{"alg", "typ"}, nil)
	if err != nil {
		return Header{}, err
	}
	var h Header
	var alg string
	if err := decodeString(fields["alg"], &alg); err != nil {
		return Header{}, malformed(fmt.Errorf("alg: %w", err))
	}
	if err := decodeString(fields["typ"], &h.Type); err != nil {
		return Header{}, malformed(fmt.Errorf("typ: %w", err))
	}
	h.Algorithm = jwa.SignatureAlgorithm(alg)
	return h, nil
}

// DecodePayload parses a payload segment. It does not establish trust.
func DecodePayload(segment string) (Payload, error) {
	fields, err := decodeObject(segment, []string{"claims", "iat", "iss"}, []string{"exp"})
	if err != nil {
		return Payload{}, err
	}
	var p Payload
	if isNull(fields["claims"]) {
		return Payload{}, malformed(errors.New("claims: null"))
	}
	if err := json.Unmarshal(fields["claims"], &p.Claims); err != nil {
		return Payload{}, malformed(fmt.Errorf("claims: %w", err))
	}
	if err := decodeNumericDate(fields["iat"], &p.IssuedAt); err != nil {
		return Payload{}, malformed(fmt.Errorf("iat: %w", err))
	}
	if raw, ok := fields["exp"]; ok {
		var exp int64
		if err := decodeNumericDate(raw, &exp); err != nil {
			return Payload{}, malformed(fmt.Errorf("exp: %w", err))
		}
		if exp < p.IssuedAt {
			return Payload{}, malformed(errors.New("exp precedes iat"))
		}
		p.ExpiresAt = &exp
	}
	if err := decodeString(fields["iss"], &p.Issuer); err != nil {
		return Payload{}, malformed(fmt.Errorf("iss: %w", err))
	}
	return p, nil
}

// decodeObject base64url-decodes a segment into its top-level JSON members and
// checks that exactly the required keys, plus any optional ones, are present.
func decodeObject(segment string, required, optional []string) (map[string]json.RawMessage, error) {
	raw, err := decodeSegmentBytes(segment)
	if err != nil {
		return nil, err
	}
	switch {
	case bytes.IndexByte(raw, 0) >= 0:
		return nil, malformed(errors.New("segment contains NUL byte"))
	case !utf8.Valid(raw):
		return nil, malformed(errors.New("segment is not valid UTF-8"))
	case hasUnpairedSurrogate(raw):
		return nil, malformed(errors.New("segment escapes an unpaired surrogate"))
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, malformed(fmt.Errorf("unmarshal segment: %w", err))
	}
	if fields == nil {
		return nil, malformed(errors.New("segment is not a JSON object"))
	}
	if err := checkUniqueMembers(raw); err != nil {
		return nil, malformed(err)
	}

	allowed := make(map[string]struct{}, len(required)+len(optional))
	for _, k := range required {
		allowed[k] = struct{}{}
		if _, ok := fields[k]; !ok {
			return nil, malformed(fmt.Errorf("missing required key %q", k))
		}
	}
	for _, k := range optional {
		allowed[k] = struct{}{}
	}
	for k := range fields {
		if _, ok := allowed[k]; !ok {
			return nil, malformed(fmt.Errorf("unexpected key %q", k))
		}
	}
	return fields, nil
}

// checkUniqueMembers rejects objects that repeat a top-level member name.
// raw must already be known to be valid JSON.
func checkUniqueMembers(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	seen := make(map[string]struct{})
	depth := 0
	expectName := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
				// The top-level object opens, or a member's value does.
				if depth <= 2 {
					expectName = true
				}
			case '}', ']':
				depth--
			}
			continue
		}
		if depth != 1 {
			continue
		}
		if !expectName {
			expectName = true
			continue
		}
		name, ok := tok.(string)
		if !ok {
			return errors.New("member name must be a string")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate key %q", name)
		}
		seen[name] = struct{}{}
		expectName = false
	}
}

// hasUnpairedSurrogate reports whether raw holds a \u escape for a UTF-16
// surrogate that is not part of a high/low pair. The JSON decoder would
// silently turn it into U+FFFD.
func hasUnpairedSurrogate(raw []byte) bool {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' {
			continue
		}
		i++
		if i >= len(raw) || raw[i] != 'u' {
			continue
		}
		r, ok := escapedUnit(raw, i+1)
		if !ok {
			return false
		}
		i += 4
		switch {
		case r >= 0xDC00 && r <= 0xDFFF:
			return true
		case r >= 0xD800 && r <= 0xDBFF:
			if i+6 >= len(raw) || raw[i+1] != '\\' || raw[i+2] != 'u' {
				return true
			}
			low, ok := escapedUnit(raw, i+3)
			if !ok || low < 0xDC00 || low > 0xDFFF {
				return true
			}
			i += 6
		}
	}
	return false
}

func escapedUnit(raw []byte, at int) (uint64, bool) {
	if at+4 > len(raw) {
		return 0, false
	}
	v, err := strconv.ParseUint(string(raw[at:at+4]), 16, 16)
	return v, err == nil
}

func decodeSegmentBytes(segment string) ([]byte, error) {
	switch {
	case segment == "":
		return nil, malformed(errors.New("empty segment"))
	case len(segment) > MaxSegmentLength:
		return nil, malformed(fmt.Errorf("segment exceeds %d characters", MaxSegmentLength))
	case !isBase64URL(segment):
		return nil, malformed(errors.New("invalid base64url characters"))
	}
	raw, err := segmentEncoding.DecodeString(segment)
	if err != nil {
		return nil, malformed(fmt.Errorf("decode base64url: %w", err))
	}
	return raw, nil
}

func decodeString(raw json.RawMessage, dst *string) error {
	if isNull(raw) {
		return errors.New("null")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	if *dst == "" {
		return errors.New("empty")
	}
	return nil
}

func decodeNumericDate(raw json.RawMessage, dst *int64) error {
	if isNull(raw) {
		return errors.New("null")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	return checkNumericDate(*dst)
}

func checkNumericDate(v int64) error {
	if v < 0 || v > maxNumericDate {
		return fmt.Errorf("timestamp %d out of range", v)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// isBase64URL reports whether s only holds characters of the unpadded
// base64url alphabet. The decoder alone would skip CR and LF.
func isBase64URL(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func malformed(err error) error {
	return newError(ErrCodeMalformed, err)
}
