// Package auth implements providers for identity backends that verify
// bearer tokens against an OIDC-style userinfo endpoint.
package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"verity-hq/callisto/pkg/providers"
)

// UserInfo is the identity returned by a successful token verification.
type UserInfo struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Provider is an auth backend adapter.
type Provider struct {
	*providers.BaseProvider
}

// NewProvider creates an auth provider from config.
func NewProvider(config providers.ProviderConfig, opts ...providers.BaseOption) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "auth",
			Field:    "name",
			Message:  "provider name is required",
		}
	}
	if config.BaseURL == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "base_url",
			Message:  "base URL is required",
		}
	}
	config.Capability = providers.CapabilityAuth

	p := &Provider{
		BaseProvider: providers.NewBaseProvider(config, opts...),
	}
	p.Logger().Info("auth provider initialized", "base_url", config.BaseURL)
	return p, nil
}

// VerifyToken checks a user's bearer token against the backend's
// userinfo endpoint and returns the associated identity.
func (p *Provider) VerifyToken(ctx context.Context, token string) (*UserInfo, error) {
	var info UserInfo
	err := p.ExecuteWithRetry(ctx, "verify_token", func(ctx context.Context) error {
		headers := map[string]string{"Authorization": "Bearer " + token}
		resp, err := p.DoRequest(ctx, http.MethodGet, p.GetConfig().BaseURL+"/userinfo", nil, headers)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return json.NewDecoder(resp.Body).Decode(&info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// PerformHealthCheck probes the OIDC discovery document.
func (p *Provider) PerformHealthCheck(ctx context.Context) error {
	return p.Probe(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		resp, err := p.DoRequest(ctx, http.MethodGet, p.GetConfig().BaseURL+"/.well-known/openid-configuration", nil, nil)
		if err != nil {
			return err
		}
		io.Copy(io.Discard, resp.Body)
		return resp.Body.Close()
	})
}

// ValidateCredentials checks the configured client credential by
// fetching the discovery document with it.
func (p *Provider) ValidateCredentials(ctx context.Context) error {
	resp, err := p.DoRequest(ctx, http.MethodGet, p.GetConfig().BaseURL+"/.well-known/openid-configuration", nil, nil)
	if err != nil {
		if providers.IsCredentialError(err) {
			return err
		}
		return &providers.CredentialError{
			Provider: p.GetName(),
			Message:  "credential validation request failed",
			Err:      err,
		}
	}
	io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}
