package sharetoken

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// ProviderConfig defines how share tokens should be issued by default.
type ProviderConfig struct {
	Issuer     *Issuer
	Records    RecordSource
	Selection  Selection
	Expiration ExpirationChoice
	BaseURL    string
}

// Provider issues share tokens for the holder's stored identity record.
// Nothing is cached: every call loads the record and signs a new token.
type Provider struct {
	issuer   *Issuer
	records  RecordSource
	defaults ShareParams
}

// ShareParams holds the per-call disclosure choices.
type ShareParams struct {
	Selection  Selection
	Expiration ExpirationChoice
	BaseURL    string
}

// ShareOption customizes the behaviour for a single Token call.
type ShareOption func(*ShareParams)

// WithFields discloses exactly the named fields.
func WithFields(names ...string) ShareOption {
	return func(p *ShareParams) {
		p.Selection = SelectFields(names...)
	}
}

// WithSelection replaces the disclosure flags.
func WithSelection(sel Selection) ShareOption {
	return func(p *ShareParams) {
		p.Selection = cloneSelection(sel)
	}
}

// WithExpiration sets how long the token stays valid.
func WithExpiration(choice ExpirationChoice) ShareOption {
	return func(p *ShareParams) {
		p.Expiration = choice
	}
}

// WithBaseURL overrides the verification page used by ShareURL.
func WithBaseURL(baseURL string) ShareOption {
	return func(p *ShareParams) {
		p.BaseURL = baseURL
	}
}

// NewProvider constructs a Provider using the supplied defaults.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.Issuer == nil {
		return nil, errors.New("issuer is required")
	}
	if cfg.Records == nil {
		return nil, errors.New("record source is required")
	}
	sel := cfg.Selection
	if sel == nil {
		sel = DefaultSelection()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultVerificationBaseURL
	}
	return &Provider{
		issuer:  cfg.Issuer,
		records: cfg.Records,
		defaults: ShareParams{
			Selection:  cloneSelection(sel),
			Expiration: cfg.Expiration,
			BaseURL:    baseURL,
		},
	}, nil
}

// Token loads the record and returns a freshly signed share token.
func (p *Provider) Token(ctx context.Context, opts ...ShareOption) (string, error) {
	params := p.params(opts)
	rec, err := p.records.LoadRecord(ctx)
	if err != nil {
		return "", fmt.Errorf("load record: %w", err)
	}
	return p.issuer.IssueRecord(rec, params.Selection, params.Expiration)
}

// ShareURL returns the verification URL to render as a QR code.
func (p *Provider) ShareURL(ctx context.Context, opts ...ShareOption) (string, error) {
	params := p.params(opts)
	token, err := p.Token(ctx, opts...)
	if err != nil {
		return "", err
	}
	return VerificationURL(params.BaseURL, token)
}

// TokenSource adapts the provider to oauth2.TokenSource for callers that
// attach share tokens to outgoing requests. Each Token call mints a new token.
func (p *Provider) TokenSource(ctx context.Context, opts ...ShareOption) oauth2.TokenSource {
	return &shareTokenSource{
		ctx:      persistentContext(ctx),
		provider: p,
		opts:     append([]ShareOption(nil), opts...),
	}
}

type shareTokenSource struct {
	ctx      context.Context
	provider *Provider
	opts     []ShareOption
}

func (s *shareTokenSource) Token() (*oauth2.Token, error) {
	raw, err := s.provider.Token(s.ctx, s.opts...)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	if info := DecodeForDisplay(raw); info != nil && info.ExpiresAt != nil {
		tok.Expiry = *info.ExpiresAt
	}
	return tok, nil
}

func (p *Provider) params(opts []ShareOption) ShareParams {
	params := p.defaults
	params.Selection = cloneSelection(p.defaults.Selection)
	for _, opt := range opts {
		opt(&params)
	}
	return params
}

func cloneSelection(in Selection) Selection {
	if in == nil {
		return Selection{}
	}
	out := make(Selection, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// persistentContext keeps values of ctx but drops its cancellation, so a
// token source outlives the request that created it.
func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
