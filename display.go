package sharetoken

import (
	"strings"
	"time"
)

// DisplayInfo is token metadata decoded WITHOUT checking the signature. It is
// for showing the holder or a scanner what a code claims to be, never for
// deciding whether to trust it. It carries no claims.
type DisplayInfo struct {
	Algorithm string     `json:"algorithm"`
	TokenType string     `json:"tokenType"`
	Issuer    string     `json:"issuer"`
	IssuedAt  time.Time  `json:"issuedAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// DecodeForDisplay reads header and payload metadata from a token or a
// verification URL carrying one. It needs no key and returns nil when the
// input cannot be decoded.
func DecodeForDisplay(token string) *DisplayInfo {
	token = TokenFromURL(token)
	if len(token) > MaxTokenLength {
		return nil
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil
	}
	h, err := DecodeHeader(parts[0])
	if err != nil {
		return nil
	}
	p, err := DecodePayload(parts[1])
	if err != nil {
		return nil
	}
	return newDisplayInfo(h, p)
}

func newDisplayInfo(h Header, p Payload) *DisplayInfo {
	info := &DisplayInfo{
		Algorithm: h.Algorithm.String(),
		TokenType: h.Type,
		Issuer:    p.Issuer,
		IssuedAt:  p.IssuedTime(),
	}
	if exp, ok := p.ExpiresTime(); ok {
		info.ExpiresAt = &exp
	}
	return info
}

// NeverExpires reports whether the token carries no expiry.
func (d *DisplayInfo) NeverExpires() bool {
	return d.ExpiresAt == nil
}
