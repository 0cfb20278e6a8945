package sharetoken

import "time"

// Outcome is the verdict of a verification.
type Outcome int

const (
	OutcomeInvalid Outcome = iota
	OutcomeValid
	OutcomeExpired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeValid:
		return "valid"
	case OutcomeExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// VerificationResult is produced by Verifier.Verify.
//
// Claims is populated only when Outcome is OutcomeValid. Metadata is whatever
// could be decoded from the token and carries no trust on its own, even for
// invalid or expired tokens.
type VerificationResult struct {
	Outcome  Outcome
	Reason   ErrorCode
	Claims   ClaimSet
	Metadata *DisplayInfo

	err error
}

// Valid reports whether the token was authentic and within its validity window.
func (r VerificationResult) Valid() bool {
	return r.Outcome == OutcomeValid
}

// Expired reports whether the token was authentic but past its expiry.
func (r VerificationResult) Expired() bool {
	return r.Outcome == OutcomeExpired
}

// Err returns the typed rejection, or nil for a valid token.
func (r VerificationResult) Err() error {
	if r.Outcome == OutcomeValid {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return newError(r.Reason, nil)
}

// Message returns the text to show a user. It never says which check failed.
func (r VerificationResult) Message() string {
	if r.Outcome == OutcomeValid {
		return "Verified"
	}
	return publicRejection
}

// ExpiresAt returns the token expiry when it was decoded and is set.
func (r VerificationResult) ExpiresAt() (time.Time, bool) {
	if r.Metadata == nil || r.Metadata.ExpiresAt == nil {
		return time.Time{}, false
	}
	return *r.Metadata.ExpiresAt, true
}

func rejected(code ErrorCode, err error, meta *DisplayInfo) VerificationResult {
	return VerificationResult{
		Outcome:  OutcomeInvalid,
		Reason:   code,
		Metadata: meta,
		err:      newError(code, err),
	}
}
