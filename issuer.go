package sharetoken

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// Issuer mints signed share tokens. It is safe for concurrent use.
type Issuer struct {
	cfg    Config
	signer jws.Signer
	header string
	logger *slog.Logger
}

// NewIssuer builds an issuer from cfg. The issuer keeps its own copy of the key.
func NewIssuer(cfg Config) (*Issuer, error) {
	resolved, err := cfg.resolved()
	if err != nil {
		return nil, err
	}
	signer, err := jws.NewSigner(resolved.Algorithm)
	if err != nil {
		resolved.Key.Destroy()
		return nil, configError(fmt.Errorf("create signer: %w", err))
	}
	header, err := EncodeHeader(Header{Algorithm: resolved.Algorithm, Type: resolved.TokenType})
	if err != nil {
		resolved.Key.Destroy()
		return nil, err
	}
	return &Issuer{
		cfg:    resolved,
		signer: signer,
		header: header,
		logger: resolved.Logger.With("component", "issuer"),
	}, nil
}

// Algorithm returns the configured signature algorithm.
func (i *Issuer) Algorithm() jwa.SignatureAlgorithm {
	return i.cfg.Algorithm
}

// IssuerName returns the value written to the "iss" claim.
func (i *Issuer) IssuerName() string {
	return i.cfg.Issuer
}

// Issue signs claims with an expiry derived from choice, reading the configured clock.
func (i *Issuer) Issue(claims ClaimSet, choice ExpirationChoice) (string, error) {
	return i.IssueAt(claims, choice, i.cfg.Clock.Now())
}

// IssueRecord projects rec through selection and issues a token for the result.
func (i *Issuer) IssueRecord(rec IdentityRecord, selection Selection, choice ExpirationChoice) (string, error) {
	return i.Issue(Project(rec, selection), choice)
}

// IssueAt is Issue with an explicit issuance time, truncated to whole seconds.
// The result is deterministic for a fixed now. An empty claim set is allowed.
func (i *Issuer) IssueAt(claims ClaimSet, choice ExpirationChoice, now time.Time) (string, error) {
	if !choice.Valid() {
		return "", newError(ErrCodeEncoding, fmt.Errorf("unknown expiration choice %d", int(choice)))
	}
	payload := Payload{
		Claims:   claims.Clone(),
		IssuedAt: now.Unix(),
		Issuer:   i.cfg.Issuer,
	}
	if payload.Claims == nil {
		payload.Claims = ClaimSet{}
	}
	if exp, ok := ResolveExpiration(choice, now); ok {
		ts := exp.Unix()
		payload.ExpiresAt = &ts
	}

	body, err := EncodePayload(payload)
	if err != nil {
		return "", err
	}
	signingInput := i.header + "." + body
	sig, err := i.sign([]byte(signingInput))
	if err != nil {
		return "", err
	}

	i.logger.Debug("issued share token",
		"alg", i.cfg.Algorithm.String(),
		"fields", payload.Claims.Names(),
		"expiration", choice.String(),
	)
	return signingInput + "." + segmentEncoding.EncodeToString(sig), nil
}

func (i *Issuer) sign(input []byte) ([]byte, error) {
	var sig []byte
	err := i.cfg.Key.use(func(secret []byte) error {
		var serr error
		sig, serr = i.signer.Sign(input, secret)
		return serr
	})
	if err != nil {
		if errors.Is(err, errKeyDestroyed) {
			err = errors.New("issuer is closed")
		}
		return nil, newError(ErrCodeSigning, err)
	}
	return sig, nil
}

// Close wipes the issuer's key. Later calls fail with a signing error.
func (i *Issuer) Close() {
	i.cfg.Key.Destroy()
}
