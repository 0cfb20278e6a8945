package sharetoken

import (
	"context"
	"crypto/sha256"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

var testT = time.Unix(1_700_000_000, 0).UTC()

func testSecret(label string) []byte {
	sum := sha256.Sum256([]byte("sharetoken test key " + label))
	return sum[:]
}

func newTestConfig(t *testing.T, label string) Config {
	t.Helper()
	key, err := NewSigningKey(testSecret(label))
	require.NoError(t, err)
	t.Cleanup(key.Destroy)
	return Config{Key: key, Clock: fixedClock(testT)}
}

func fixedClock(now time.Time) jwt.Clock {
	return jwt.ClockFunc(func() time.Time { return now })
}

func newPair(t *testing.T, cfg Config) (*Issuer, *Verifier) {
	t.Helper()
	issuer, err := NewIssuer(cfg)
	require.NoError(t, err)
	verifier, err := NewVerifier(cfg)
	require.NoError(t, err)
	t.Cleanup(issuer.Close)
	t.Cleanup(verifier.Close)
	return issuer, verifier
}

func silvaClaims() ClaimSet {
	return ClaimSet{
		{Name: FieldFullName, Value: "A. Silva"},
		{Name: FieldIDNumber, Value: "X123"},
	}
}

func TestVerifier_RoundTrip(t *testing.T) {
	issuer, verifier := newPair(t, newTestConfig(t, "roundtrip"))

	sets := []ClaimSet{
		silvaClaims(),
		Project(SampleRecord(), DefaultSelection()),
		Project(SampleRecord(), SelectFields(RecordFields()...)),
		{{Name: "note", Value: "ünïcødé <&> \"quoted\""}},
	}
	for _, choice := range []ExpirationChoice{Never, OneHour, OneDay, OneWeek} {
		for _, claims := range sets {
			token, err := issuer.IssueAt(claims, choice, testT)
			require.NoError(t, err, choice.String())
			res := verifier.VerifyAt(token, testT)
			require.True(t, res.Valid(), "%s: got %s (%v)", choice, res.Outcome, res.Err())
			require.True(t, res.Claims.Equal(claims), "got %v, want %v", res.Claims, claims)
			require.NoError(t, res.Err())
		}
	}
}

func TestVerifier_ConcreteScenario(t *testing.T) {
	issuer, verifier := newPair(t, newTestConfig(t, "scenario"))

	token, err := issuer.IssueAt(silvaClaims(), OneDay, testT)
	require.NoError(t, err)

	payload, err := DecodePayload(strings.Split(token, ".")[1])
	require.NoError(t, err)
	require.Equal(t, int64(1_700_000_000), payload.IssuedAt)
	require.NotNil(t, payload.ExpiresAt)
	require.Equal(t, int64(1_700_086_400), *payload.ExpiresAt)
	require.Equal(t, DefaultIssuer, payload.Issuer)

	res := verifier.VerifyAt(token, testT.Add(86_401*time.Second))
	require.Equal(t, OutcomeExpired, res.Outcome)
	require.Nil(t, res.Claims, "expired result must not carry claims")

	res = verifier.VerifyAt(token, testT.Add(86_399*time.Second))
	require.True(t, res.Valid(), "got %s (%v)", res.Outcome, res.Err())
	require.True(t, res.Claims.Equal(silvaClaims()))
}

func TestVerifier_ExpirationBoundaries(t *testing.T) {
	issuer, verifier := newPair(t, newTestConfig(t, "boundaries"))

	t.Run("one hour", func(t *testing.T) {
		token, err := issuer.IssueAt(silvaClaims(), OneHour, testT)
		require.NoError(t, err)
		require.True(t, verifier.VerifyAt(token, testT.Add(3599*time.Second)).Valid())
		require.True(t, verifier.VerifyAt(token, testT.Add(3600*time.Second)).Valid(), "valid exactly at expiry")

		res := verifier.VerifyAt(token, testT.Add(3601*time.Second))
		require.Equal(t, OutcomeExpired, res.Outcome)
		require.Equal(t, ErrCodeExpired, CodeOf(res.Err()))
		require.ErrorIs(t, res.Err(), ErrExpired)
	})

	t.Run("sub-second issuance", func(t *testing.T) {
		issued := testT.Add(900 * time.Millisecond)
		token, err := issuer.IssueAt(silvaClaims(), OneHour, issued)
		require.NoError(t, err)
		require.True(t, verifier.VerifyAt(token, issued.Add(3600*time.Second)).Valid(),
			"the last second of the window still counts")
		require.True(t, verifier.VerifyAt(token, testT.Add(3600*time.Second+999*time.Millisecond)).Valid())
		require.Equal(t, OutcomeExpired, verifier.VerifyAt(token, testT.Add(3601*time.Second)).Outcome)
	})

	t.Run("never", func(t *testing.T) {
		token, err := issuer.IssueAt(silvaClaims(), Never, testT)
		require.NoError(t, err)
		res := verifier.VerifyAt(token, testT.AddDate(10, 0, 0))
		require.True(t, res.Valid(), "never-expiring token rejected after ten years: %s", res.Outcome)
	})
}

func TestVerifier_UsesInjectedClock(t *testing.T) {
	cfg := newTestConfig(t, "clock")
	issuer, err := NewIssuer(cfg)
	require.NoError(t, err)
	defer issuer.Close()

	token, err := issuer.Issue(silvaClaims(), OneHour)
	require.NoError(t, err)

	late := cfg
	late.Clock = fixedClock(testT.Add(2 * time.Hour))
	verifier, err := NewVerifier(late)
	require.NoError(t, err)
	defer verifier.Close()

	require.Equal(t, OutcomeExpired, verifier.Verify(token).Outcome)
}

func TestVerifier_SingleByteTamper(t *testing.T) {
	issuer, verifier := newPair(t, newTestConfig(t, "tamper"))

	token, err := issuer.IssueAt(silvaClaims(), Never, testT)
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		for _, replacement := range []byte{'A', 'z', '.', '-'} {
			if token[i] == replacement {
				continue
			}
			tampered := token[:i] + string(replacement) + token[i+1:]
			res := verifier.VerifyAt(tampered, testT)
			require.False(t, res.Valid(), "tampered token accepted (index %d -> %q)", i, replacement)
			require.Contains(t,
				[]ErrorCode{ErrCodeMalformed, ErrCodeBadSignature, ErrCodeUnsupportedAlgorithm},
				res.Reason, "index %d", i)
			require.Nil(t, res.Claims, "rejected result carries claims at index %d", i)
		}
	}
}

func TestVerifier_WrongKeyStillDisplays(t *testing.T) {
	issuer, _ := newPair(t, newTestConfig(t, "issuer-key"))
	_, otherVerifier := newPair(t, newTestConfig(t, "other-key"))

	token, err := issuer.IssueAt(silvaClaims(), OneWeek, testT)
	require.NoError(t, err)

	res := otherVerifier.VerifyAt(token, testT)
	require.Equal(t, ErrCodeBadSignature, res.Reason)
	require.Equal(t, "This code could not be verified", res.Message())

	info := DecodeForDisplay(token)
	require.NotNil(t, info, "a well-formed token must decode for display")
	require.Equal(t, "HS256", info.Algorithm)
	require.Equal(t, DefaultIssuer, info.Issuer)
	require.True(t, info.IssuedAt.Equal(testT))
	require.NotNil(t, info.ExpiresAt)
	require.True(t, info.ExpiresAt.Equal(testT.Add(7*24*time.Hour)))
}

func TestVerifier_StructuralRejections(t *testing.T) {
	issuer, verifier := newPair(t, newTestConfig(t, "structure"))
	token, err := issuer.IssueAt(silvaClaims(), Never, testT)
	require.NoError(t, err)
	parts := strings.Split(token, ".")

	cases := map[string]string{
		"empty":            "",
		"one segment":      "abc",
		"two segments":     parts[0] + "." + parts[1],
		"four segments":    token + ".x",
		"empty signature":  parts[0] + "." + parts[1] + ".",
		"empty header":     "." + parts[1] + "." + parts[2],
		"padded signature": token + "=",
		"newline":          parts[0] + "." + parts[1] + "\n." + parts[2],
		"not json":         "bm90IGpzb24." + parts[1] + "." + parts[2],
		"oversized":        strings.Repeat("a", MaxTokenLength+1),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			res := verifier.VerifyAt(input, testT)
			require.Equal(t, OutcomeInvalid, res.Outcome)
			require.Equal(t, ErrCodeMalformed, res.Reason)
			require.ErrorIs(t, res.Err(), ErrMalformed)
		})
	}
}

func TestVerifier_AlgorithmAndTypeChecks(t *testing.T) {
	cfg := newTestConfig(t, "alg")
	_, verifier := newPair(t, cfg)

	longKey, err := NewSigningKey(append(testSecret("alg-a"), testSecret("alg-b")...))
	require.NoError(t, err)
	defer longKey.Destroy()
	strong := cfg
	strong.Algorithm = jwa.HS512
	strong.Key = longKey
	issuer512, err := NewIssuer(strong)
	require.NoError(t, err)
	defer issuer512.Close()

	token, err := issuer512.IssueAt(silvaClaims(), Never, testT)
	require.NoError(t, err)
	res := verifier.VerifyAt(token, testT)
	require.Equal(t, ErrCodeUnsupportedAlgorithm, res.Reason)
	require.NotNil(t, res.Metadata)
	require.Equal(t, "HS512", res.Metadata.Algorithm)

	typed := cfg
	typed.TokenType = "share+jwt"
	typedIssuer, err := NewIssuer(typed)
	require.NoError(t, err)
	defer typedIssuer.Close()
	token, err = typedIssuer.IssueAt(silvaClaims(), Never, testT)
	require.NoError(t, err)
	require.Equal(t, ErrCodeMalformed, verifier.VerifyAt(token, testT).Reason, "foreign typ")

	// "none" must never be accepted, whatever the signature segment holds.
	noneHeader, err := EncodeHeader(Header{Algorithm: jwa.NoSignature, Type: "JWT"})
	require.NoError(t, err)
	parts := strings.Split(token, ".")
	res = verifier.VerifyAt(noneHeader+"."+parts[1]+"."+parts[2], testT)
	require.False(t, res.Valid())
	require.Equal(t, ErrCodeUnsupportedAlgorithm, res.Reason)
}

func TestVerifier_RequireIssuer(t *testing.T) {
	cfg := newTestConfig(t, "iss")
	other := cfg
	other.Issuer = "someone-else"
	issuer, err := NewIssuer(other)
	require.NoError(t, err)
	defer issuer.Close()
	token, err := issuer.IssueAt(silvaClaims(), Never, testT)
	require.NoError(t, err)

	lenient, err := NewVerifier(cfg)
	require.NoError(t, err)
	defer lenient.Close()
	require.True(t, lenient.VerifyAt(token, testT).Valid(), "issuer is not pinned by default")

	strict := cfg
	strict.RequireIssuer = true
	pinned, err := NewVerifier(strict)
	require.NoError(t, err)
	defer pinned.Close()
	require.Equal(t, ErrCodeInvalidIssuer, pinned.VerifyAt(token, testT).Reason)
}

func TestVerifier_ClosedKey(t *testing.T) {
	issuer, verifier := newPair(t, newTestConfig(t, "closed"))
	token, err := issuer.IssueAt(silvaClaims(), Never, testT)
	require.NoError(t, err)

	verifier.Close()
	res := verifier.VerifyAt(token, testT)
	require.False(t, res.Valid())
	require.Equal(t, ErrCodeSigning, res.Reason)

	issuer.Close()
	_, err = issuer.IssueAt(silvaClaims(), Never, testT)
	require.ErrorIs(t, err, ErrSigning)
}

func TestVerifier_CallerKeyIndependent(t *testing.T) {
	cfg := newTestConfig(t, "independent")
	issuer, verifier := newPair(t, cfg)

	// The caller wiping its own key must not affect built issuers or verifiers.
	cfg.Key.Destroy()

	token, err := issuer.IssueAt(silvaClaims(), Never, testT)
	require.NoError(t, err)
	require.True(t, verifier.VerifyAt(token, testT).Valid())
}

func TestVerifier_Concurrent(t *testing.T) {
	issuer, verifier := newPair(t, newTestConfig(t, "concurrent"))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			now := testT.Add(time.Duration(g) * time.Second)
			for i := 0; i < 25; i++ {
				token, err := issuer.IssueAt(silvaClaims(), OneHour, now)
				if err != nil {
					errs <- err
					return
				}
				if res := verifier.VerifyAt(token, now); !res.Valid() {
					errs <- res.Err()
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err, "concurrent issue/verify")
	}
}

func TestVerifier_InteroperatesWithJWT(t *testing.T) {
	cfg := newTestConfig(t, "interop")
	issuer, _ := newPair(t, cfg)

	token, err := issuer.IssueAt(silvaClaims(), OneDay, testT)
	require.NoError(t, err)

	parsed, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, testSecret("interop")),
		jwt.WithValidate(false),
	)
	require.NoError(t, err)
	require.Equal(t, DefaultIssuer, parsed.Issuer())
	require.True(t, parsed.IssuedAt().Equal(testT))
	require.True(t, parsed.Expiration().Equal(testT.Add(24*time.Hour)))

	raw, ok := parsed.Get("claims")
	require.True(t, ok, "claims missing")
	claims, ok := raw.(map[string]interface{})
	require.True(t, ok, "unexpected claims: %#v", raw)
	require.Equal(t, "A. Silva", claims[FieldFullName])
	require.Equal(t, "X123", claims[FieldIDNumber])

	require.Error(t, jwt.Validate(parsed, jwt.WithClock(fixedClock(testT.Add(25*time.Hour)))),
		"jwt.Validate must reject an expired share token")
}

func TestVerifiedClaimsContext(t *testing.T) {
	issuer, verifier := newPair(t, newTestConfig(t, "context"))
	token, err := issuer.IssueAt(silvaClaims(), OneHour, testT)
	require.NoError(t, err)

	vc, ok := VerifiedClaimsFromResult(verifier.VerifyAt(token, testT))
	require.True(t, ok)
	ctx := BindVerifiedClaims(context.Background(), vc)
	got, ok := VerifiedClaimsFromContext(ctx)
	require.True(t, ok)
	require.True(t, got.Claims.Equal(silvaClaims()))
	require.Equal(t, DefaultIssuer, got.Issuer)

	_, ok = VerifiedClaimsFromResult(verifier.VerifyAt(token, testT.Add(2*time.Hour)))
	require.False(t, ok, "expired result must not yield verified claims")
	_, ok = VerifiedClaimsFromContext(context.Background())
	require.False(t, ok, "empty context must not yield claims")
}
