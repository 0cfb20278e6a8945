package sharetoken

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/crypto/hkdf"
)

// MinKeyLength is the shortest secret accepted for signing.
const MinKeyLength = 32

const redacted = "[redacted]"

var errKeyDestroyed = errors.New("signing key destroyed")

// SigningKey holds symmetric key material. It keeps a private copy of the
// bytes, zeroes them on Destroy, and never prints or serializes them.
type SigningKey struct {
	mu   sync.RWMutex
	data []byte
}

// NewSigningKey copies secret into a new SigningKey. The caller may wipe its
// own slice afterwards.
func NewSigningKey(secret []byte) (*SigningKey, error) {
	if len(secret) < MinKeyLength {
		return nil, newError(ErrCodeSigning, fmt.Errorf("key too short: minimum %d bytes required, got %d", MinKeyLength, len(secret)))
	}
	if isWeakKey(secret) {
		return nil, newError(ErrCodeSigning, errors.New("weak key: insufficient entropy"))
	}
	data := make([]byte, len(secret))
	copy(data, secret)
	return &SigningKey{data: data}, nil
}

// GenerateSigningKey returns a fresh random key of size bytes.
func GenerateSigningKey(size int) (*SigningKey, error) {
	if size < MinKeyLength {
		size = MinKeyLength
	}
	buf := make([]byte, size)
	defer zeroBytes(buf)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, newError(ErrCodeSigning, fmt.Errorf("read random: %w", err))
	}
	return NewSigningKey(buf)
}

// DeriveSigningKey derives a size-byte key from master using HKDF-SHA256.
func DeriveSigningKey(master, salt, info []byte, size int) (*SigningKey, error) {
	if len(master) < MinKeyLength {
		return nil, newError(ErrCodeSigning, fmt.Errorf("master secret too short: minimum %d bytes required, got %d", MinKeyLength, len(master)))
	}
	if size < MinKeyLength {
		size = MinKeyLength
	}
	out := make([]byte, size)
	defer zeroBytes(out)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, salt, info), out); err != nil {
		return nil, newError(ErrCodeSigning, fmt.Errorf("derive key: %w", err))
	}
	return NewSigningKey(out)
}

// SigningKeyFromJWK parses a symmetric ("oct") JSON Web Key.
func SigningKeyFromJWK(data []byte) (*SigningKey, error) {
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, newError(ErrCodeSigning, fmt.Errorf("parse jwk: %w", err))
	}
	if key.KeyType() != jwa.OctetSeq {
		return nil, newError(ErrCodeSigning, fmt.Errorf("jwk must be of type %q, got %q", jwa.OctetSeq, key.KeyType()))
	}
	var raw []byte
	if err := key.Raw(&raw); err != nil {
		return nil, newError(ErrCodeSigning, fmt.Errorf("extract jwk secret: %w", err))
	}
	defer zeroBytes(raw)
	return NewSigningKey(raw)
}

// JWK exports the key as an "oct" JSON Web Key tagged with alg. Only key
// generation tooling should call this.
func (k *SigningKey) JWK(alg jwa.SignatureAlgorithm) (jwk.Key, error) {
	var out jwk.Key
	err := k.use(func(secret []byte) error {
		key, err := jwk.FromRaw(append([]byte(nil), secret...))
		if err != nil {
			return err
		}
		if err := key.Set(jwk.AlgorithmKey, alg); err != nil {
			return err
		}
		if err := jwk.AssignKeyID(key); err != nil {
			return err
		}
		out = key
		return nil
	})
	if err != nil {
		return nil, newError(ErrCodeSigning, err)
	}
	return out, nil
}

// Clone returns an independent copy of the key.
func (k *SigningKey) Clone() (*SigningKey, error) {
	var out *SigningKey
	err := k.use(func(secret []byte) error {
		data := make([]byte, len(secret))
		copy(data, secret)
		out = &SigningKey{data: data}
		return nil
	})
	if err != nil {
		return nil, newError(ErrCodeSigning, err)
	}
	return out, nil
}

// Len returns the key size in bytes, or 0 once destroyed.
func (k *SigningKey) Len() int {
	if k == nil {
		return 0
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.data)
}

// Destroyed reports whether the key material has been wiped.
func (k *SigningKey) Destroyed() bool {
	return k.Len() == 0
}

// Destroy zeroes the key material. It is safe to call more than once.
func (k *SigningKey) Destroy() {
	if k == nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	zeroBytes(k.data)
	k.data = nil
}

// use runs fn with the raw secret under a read lock. fn must not retain the slice.
func (k *SigningKey) use(fn func(secret []byte) error) error {
	if k == nil {
		return errors.New("signing key is nil")
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	if len(k.data) == 0 {
		return errKeyDestroyed
	}
	return fn(k.data)
}

func (k *SigningKey) String() string {
	return "SigningKey(" + redacted + ")"
}

// GoString keeps %#v from dumping the bytes.
func (k *SigningKey) GoString() string {
	return k.String()
}

// LogValue implements slog.LogValuer.
func (k *SigningKey) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// MarshalJSON never emits key material.
func (k *SigningKey) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// MarshalText never emits key material.
func (k *SigningKey) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// zeroBytes overwrites data in place.
func zeroBytes(data []byte) {
	for i := range data {
		data[i] = 0
	}
	runtime.KeepAlive(data)
}

// isWeakKey rejects degenerate secrets: a single repeated byte, a short
// repeating pattern, or very few distinct byte values.
func isWeakKey(key []byte) bool {
	if len(key) == 0 {
		return true
	}
	for period := 1; period <= 4; period++ {
		if len(key) < period*3 {
			break
		}
		repeated := true
		for i := period; i < len(key); i++ {
			if key[i] != key[i%period] {
				repeated = false
				break
			}
		}
		if repeated {
			return true
		}
	}
	distinct := make(map[byte]struct{}, len(key))
	for _, b := range key {
		distinct[b] = struct{}{}
	}
	return len(distinct) < 8
}
