package sharetoken

import (
	"errors"
	"fmt"
)

// ErrorCode represents engine error categories.
type ErrorCode string

const (
	ErrCodeMalformed            ErrorCode = "malformed"
	ErrCodeUnsupportedAlgorithm ErrorCode = "unsupported-algorithm"
	ErrCodeBadSignature         ErrorCode = "bad-signature"
	ErrCodeExpired              ErrorCode = "expired"
	ErrCodeInvalidIssuer        ErrorCode = "invalid-issuer"
	ErrCodeSigning              ErrorCode = "signing-error"
	ErrCodeEncoding             ErrorCode = "encoding-error"
	ErrCodeInvalidConfig        ErrorCode = "invalid-config"
)

var errorMessages = map[ErrorCode]string{
	ErrCodeMalformed:            "Malformed token",
	ErrCodeUnsupportedAlgorithm: "Unsupported algorithm",
	ErrCodeBadSignature:         "Bad signature",
	ErrCodeExpired:              "Token expired",
	ErrCodeInvalidIssuer:        "Invalid issuer",
	ErrCodeSigning:              "Signing error",
	ErrCodeEncoding:             "Encoding error",
	ErrCodeInvalidConfig:        "Invalid configuration",
}

// Sentinel values usable with errors.Is. Matching compares codes only.
var (
	ErrMalformed            = &Error{Code: ErrCodeMalformed}
	ErrUnsupportedAlgorithm = &Error{Code: ErrCodeUnsupportedAlgorithm}
	ErrBadSignature         = &Error{Code: ErrCodeBadSignature}
	ErrExpired              = &Error{Code: ErrCodeExpired}
	ErrInvalidIssuer        = &Error{Code: ErrCodeInvalidIssuer}
	ErrSigning              = &Error{Code: ErrCodeSigning}
	ErrEncoding             = &Error{Code: ErrCodeEncoding}
	ErrInvalidConfig        = &Error{Code: ErrCodeInvalidConfig}
)

// ErrNoRecord is returned by a RecordSource when no identity record is stored.
var ErrNoRecord = errors.New("no identity record stored")

// publicRejection is the only text a holder or relying party should see for a
// rejected token, whatever check failed.
const publicRejection = "This code could not be verified"

// Error wraps engine errors with a stable code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Code)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// PublicMessage returns the user-facing text for a rejection code. Every
// rejection maps to the same text so a UI cannot hint at which check failed.
func PublicMessage(code ErrorCode) string {
	switch code {
	case "":
		return ""
	case ErrCodeSigning, ErrCodeEncoding, ErrCodeInvalidConfig:
		return "This code could not be created"
	default:
		return publicRejection
	}
}

// CodeOf extracts the ErrorCode from err, or "" when err is not an engine error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func newError(code ErrorCode, err error) error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = string(code)
	}
	return &Error{Code: code, Message: msg, Err: err}
}
