package sharetoken

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// TokenQueryParam is the query parameter carrying the token in a verification URL.
const TokenQueryParam = "token"

// VerificationURL embeds token in baseURL as ?token=..., keeping any existing query.
func VerificationURL(baseURL, token string) (string, error) {
	if token == "" {
		return "", errors.New("token is empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("base url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("base url has no host")
	}
	q := u.Query()
	q.Set(TokenQueryParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// TokenFromURL returns the token carried by a scanned or pasted verification
// URL. Input that is not a URL with a token parameter is returned trimmed.
func TokenFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "?") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if token := u.Query().Get(TokenQueryParam); token != "" {
		return token
	}
	return raw
}
