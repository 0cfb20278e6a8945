package sharetoken

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// Verifier checks share tokens offline. It is safe for concurrent use.
type Verifier struct {
	cfg      Config
	verifier jws.Verifier
	logger   *slog.Logger
}

// NewVerifier builds a verifier from cfg. The verifier keeps its own copy of the key.
func NewVerifier(cfg Config) (*Verifier, error) {
	resolved, err := cfg.resolved()
	if err != nil {
		return nil, err
	}
	verifier, err := jws.NewVerifier(resolved.Algorithm)
	if err != nil {
		resolved.Key.Destroy()
		return nil, configError(fmt.Errorf("create verifier: %w", err))
	}
	return &Verifier{
		cfg:      resolved,
		verifier: verifier,
		logger:   resolved.Logger.With("component", "verifier"),
	}, nil
}

// Algorithm returns the only algorithm this verifier accepts.
func (v *Verifier) Algorithm() jwa.SignatureAlgorithm {
	return v.cfg.Algorithm
}

// Verify checks token against the configured key and clock.
func (v *Verifier) Verify(token string) VerificationResult {
	return v.VerifyAt(token, v.cfg.Clock.Now())
}

// VerifyAt checks token as of now. Claims are released only after the
// signature has been checked and the token is within its validity window.
func (v *Verifier) VerifyAt(token string, now time.Time) VerificationResult {
	res := v.verify(token, now)
	if res.Outcome != OutcomeValid {
		v.logger.Debug("share token rejected", "outcome", res.Outcome.String(), "reason", string(res.Reason))
	}
	return res
}

func (v *Verifier) verify(token string, now time.Time) VerificationResult {
	if len(token) > MaxTokenLength {
		return rejected(ErrCodeMalformed, fmt.Errorf("token exceeds %d characters", MaxTokenLength), nil)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return rejected(ErrCodeMalformed, fmt.Errorf("expected 3 segments, got %d", len(parts)), nil)
	}
	for _, part := range parts {
		if part == "" {
			return rejected(ErrCodeMalformed, errors.New("empty segment"), nil)
		}
	}

	header, err := DecodeHeader(parts[0])
	if err != nil {
		return rejected(ErrCodeMalformed, err, nil)
	}
	payload, err := DecodePayload(parts[1])
	if err != nil {
		return rejected(ErrCodeMalformed, err, nil)
	}
	signature, err := decodeSegmentBytes(parts[2])
	if err != nil {
		return rejected(ErrCodeMalformed, fmt.Errorf("signature: %w", err), nil)
	}
	meta := newDisplayInfo(header, payload)

	if header.Algorithm != v.cfg.Algorithm {
		return rejected(ErrCodeUnsupportedAlgorithm, fmt.Errorf("algorithm %q not accepted", header.Algorithm), meta)
	}
	if header.Type != v.cfg.TokenType {
		return rejected(ErrCodeMalformed, fmt.Errorf("token type %q not accepted", header.Type), meta)
	}

	signingInput := []byte(token[:len(parts[0])+1+len(parts[1])])
	err = v.cfg.Key.use(func(secret []byte) error {
		return v.verifier.Verify(signingInput, signature, secret)
	})
	switch {
	case errors.Is(err, errKeyDestroyed):
		return rejected(ErrCodeSigning, errors.New("verifier is closed"), meta)
	case err != nil:
		return rejected(ErrCodeBadSignature, err, meta)
	}

	if v.cfg.RequireIssuer && payload.Issuer != v.cfg.Issuer {
		return rejected(ErrCodeInvalidIssuer, fmt.Errorf("issuer %q not accepted", payload.Issuer), meta)
	}

	// iat and exp are whole seconds, so now is compared at the same resolution.
	if exp, ok := payload.ExpiresTime(); ok && now.Unix() > exp.Unix() {
		return VerificationResult{
			Outcome:  OutcomeExpired,
			Reason:   ErrCodeExpired,
			Metadata: meta,
			err:      newError(ErrCodeExpired, fmt.Errorf("expired at %s", exp.Format(time.RFC3339))),
		}
	}

	return VerificationResult{
		Outcome:  OutcomeValid,
		Claims:   payload.Claims,
		Metadata: meta,
	}
}

// Close wipes the verifier's key. Later verifications are rejected.
func (v *Verifier) Close() {
	v.cfg.Key.Destroy()
}
