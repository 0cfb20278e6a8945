package sharetoken

import (
	"context"
	"time"
)

type verifiedClaimsKey struct{}

// VerifiedClaims is what a successful verification hands to downstream code.
type VerifiedClaims struct {
	Claims    ClaimSet
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt *time.Time
}

// VerifiedClaimsFromResult extracts trusted claims; false unless the result is valid.
func VerifiedClaimsFromResult(res VerificationResult) (VerifiedClaims, bool) {
	if !res.Valid() {
		return VerifiedClaims{}, false
	}
	vc := VerifiedClaims{Claims: res.Claims.Clone()}
	if res.Metadata != nil {
		vc.Issuer = res.Metadata.Issuer
		vc.IssuedAt = res.Metadata.IssuedAt
		vc.ExpiresAt = res.Metadata.ExpiresAt
	}
	return vc, true
}

// BindVerifiedClaims stores verified claims inside the context for downstream consumers.
func BindVerifiedClaims(ctx context.Context, claims VerifiedClaims) context.Context {
	return context.WithValue(ctx, verifiedClaimsKey{}, claims)
}

// VerifiedClaimsFromContext retrieves claims previously stored in the context.
func VerifiedClaimsFromContext(ctx context.Context) (VerifiedClaims, bool) {
	if ctx == nil {
		return VerifiedClaims{}, false
	}
	value := ctx.Value(verifiedClaimsKey{})
	if value == nil {
		return VerifiedClaims{}, false
	}
	claims, ok := value.(VerifiedClaims)
	return claims, ok
}
