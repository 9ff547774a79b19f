package provider

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/idbridge/pkg/config"
)

// OIDCExchanger drives the authorization-code exchange against the
// provider's OIDC endpoints
type OIDCExchanger struct {
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
	timeout      timeoutConfig
}

// NewOIDCExchanger discovers the provider and prepares the verifier and
// OAuth2 client configuration
func NewOIDCExchanger(ctx context.Context, cfg config.ProviderConfig) (*OIDCExchanger, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: cfg.ClientID,
	})

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
	}

	return &OIDCExchanger{
		provider:     provider,
		verifier:     verifier,
		oauth2Config: oauth2Config,
		timeout:      timeoutConfig{cfg.RequestTimeout},
	}, nil
}

// AuthCodeURL returns the provider's authorization URL for the given state
func (e *OIDCExchanger) AuthCodeURL(state string) string {
	return e.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a verified identity. Every
// failure is wrapped in ErrExchange: from the caller's point of view a bad
// code, an expired state, and an unverifiable token are the same terminal
// outcome.
func (e *OIDCExchanger) Exchange(ctx context.Context, code string) (*ExchangeResult, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", ErrExchange)
	}

	ctx, cancel := e.timeout.bound(ctx)
	defer cancel()

	oauth2Token, err := e.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing id_token in response", ErrExchange)
	}

	idToken, err := e.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	if idToken.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject in ID token", ErrExchange)
	}

	return &ExchangeResult{
		SubjectID: idToken.Subject,
		Claims:    claims,
	}, nil
}
