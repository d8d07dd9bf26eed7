package oidc

import (
	"context"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	discoveryTimeout  = 10 * time.Second
	discoveryAttempts = 5
	discoveryDelay    = 2 * time.Second
	discoveryMaxDelay = 30 * time.Second
)

// IssuerConfig is the relying-party registration injected at startup
type IssuerConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Issuer is the discovered, immutable OIDC client handle. It is constructed
// once before the server accepts authentication traffic and is safe to share
// read-only across all requests.
type Issuer struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	oauth2   oauth2.Config
}

// Discover performs provider discovery against the issuer's well-known
// metadata endpoint, retrying with exponential backoff up to a bounded
// number of attempts. Exhausting the attempts is fatal to startup; the
// caller must not serve authentication routes without a discovered issuer.
func Discover(ctx context.Context, cfg IssuerConfig, logger *zap.Logger) (*Issuer, error) {
	var provider *oidc.Provider
	var lastErr error

	for attempt := 0; attempt < discoveryAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
		provider, lastErr = oidc.NewProvider(attemptCtx, cfg.IssuerURL)
		cancel()
		if lastErr == nil {
			break
		}

		delay := discoveryDelay * time.Duration(1<<uint(attempt))
		if delay > discoveryMaxDelay {
			delay = discoveryMaxDelay
		}
		logger.Warn("oidc_discovery_failed_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", discoveryAttempts),
			zap.Error(lastErr),
			zap.Duration("retry_delay", delay),
		)

		select {
		case <-ctx.Done():
			return nil, &DiscoveryError{Issuer: cfg.IssuerURL, Err: ctx.Err()}
		case <-time.After(delay):
		}
	}

	if lastErr != nil {
		return nil, &DiscoveryError{Issuer: cfg.IssuerURL, Err: lastErr}
	}

	logger.Info("oidc_issuer_discovered",
		zap.String("issuer", cfg.IssuerURL),
		zap.String("auth_endpoint", provider.Endpoint().AuthURL),
		zap.String("token_endpoint", provider.Endpoint().TokenURL),
	)

	return &Issuer{
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth2: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}

// AuthCodeURL builds the provider authorization URL for a login attempt.
// prompt=login forces a fresh login screen instead of silently reusing an
// existing provider-side session.
func (i *Issuer) AuthCodeURL(state, nonce string) string {
	return i.oauth2.AuthCodeURL(
		state,
		oidc.Nonce(nonce),
		oauth2.SetAuthURLParam("prompt", "login"),
	)
}

// Exchange redeems an authorization code at the provider's token endpoint
func (i *Issuer) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return i.oauth2.Exchange(ctx, code)
}

// VerifyIDToken validates the raw ID token's signature, issuer, audience
// and expiry against the discovered provider metadata
func (i *Issuer) VerifyIDToken(ctx context.Context, rawIDToken string) (*oidc.IDToken, error) {
	return i.verifier.Verify(ctx, rawIDToken)
}

// Endpoint returns the discovered OAuth2 endpoints
func (i *Issuer) Endpoint() oauth2.Endpoint {
	return i.provider.Endpoint()
}
