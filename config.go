package sharetoken

import (
	"crypto"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	defaultAlgorithm = jwa.HS256
	defaultTokenType = "JWT"
	// DefaultIssuer identifies tokens minted by the wallet.
	DefaultIssuer = "digital-id-wallet"
)

var macHashes = map[jwa.SignatureAlgorithm]crypto.Hash{
	jwa.HS256: crypto.SHA256,
	jwa.HS384: crypto.SHA384,
	jwa.HS512: crypto.SHA512,
}

// Config is the process-wide signing configuration shared by Issuer and Verifier.
type Config struct {
	// Algorithm is the keyed MAC algorithm (HS256, HS384 or HS512).
	Algorithm jwa.SignatureAlgorithm
	// TokenType is written to and required in the "typ" header.
	TokenType string
	// Issuer is written to the "iss" claim.
	Issuer string
	// RequireIssuer makes the verifier reject tokens whose issuer differs from Issuer.
	RequireIssuer bool
	// Key is copied by NewIssuer/NewVerifier; the caller keeps ownership of this instance.
	Key *SigningKey
	// Clock supplies "now"; defaults to the wall clock.
	Clock jwt.Clock
	// Logger receives debug events. Key material and claim values are never logged.
	Logger *slog.Logger
}

// normalize sets default values for optional fields.
func (c *Config) normalize() {
	if c.Algorithm == "" {
		c.Algorithm = defaultAlgorithm
	}
	if c.TokenType == "" {
		c.TokenType = defaultTokenType
	}
	if c.Issuer == "" {
		c.Issuer = DefaultIssuer
	}
	if c.Clock == nil {
		c.Clock = jwt.ClockFunc(time.Now)
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// validate ensures the configuration is usable.
func (c Config) validate() error {
	minSize := MinKeySize(c.Algorithm)
	switch {
	case minSize == 0:
		return configError(fmt.Errorf("algorithm %q is not a supported keyed MAC", c.Algorithm))
	case c.Key == nil:
		return newError(ErrCodeSigning, errors.New("signing key is required"))
	case c.Key.Destroyed():
		return newError(ErrCodeSigning, errKeyDestroyed)
	case c.Key.Len() < minSize:
		return newError(ErrCodeSigning, fmt.Errorf("key too short for %s: minimum %d bytes, got %d", c.Algorithm, minSize, c.Key.Len()))
	}
	return nil
}

// resolved returns a normalized, validated copy holding a private clone of the key.
func (c Config) resolved() (Config, error) {
	clone := c
	clone.normalize()
	if err := clone.validate(); err != nil {
		return Config{}, err
	}
	key, err := clone.Key.Clone()
	if err != nil {
		return Config{}, err
	}
	clone.Key = key
	return clone, nil
}

// MinKeySize returns the shortest key accepted for alg: the larger of the
// hash output size and MinKeyLength. It is 0 for unsupported algorithms.
func MinKeySize(alg jwa.SignatureAlgorithm) int {
	hash, ok := macHashes[alg]
	if !ok {
		return 0
	}
	return max(hash.Size(), MinKeyLength)
}

// ParseAlgorithm converts a configured name into a signature algorithm.
func ParseAlgorithm(name string) (jwa.SignatureAlgorithm, error) {
	var alg jwa.SignatureAlgorithm
	if err := alg.Accept(name); err != nil {
		return "", configError(err)
	}
	if _, ok := macHashes[alg]; !ok {
		return "", configError(fmt.Errorf("algorithm %q is not a supported keyed MAC", name))
	}
	return alg, nil
}

func configError(err error) error {
	return newError(ErrCodeInvalidConfig, err)
}
