// Package knowledge implements providers for knowledge-lookup backends
// exposing a query/search API.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"verity-hq/callisto/pkg/providers"
)

// SearchResult is a single knowledge-base hit.
type SearchResult struct {
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
}

// Provider is a knowledge backend adapter.
type Provider struct {
	*providers.BaseProvider
}

// NewProvider creates a knowledge provider from config.
func NewProvider(config providers.ProviderConfig, opts ...providers.BaseOption) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "knowledge",
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
	config.Capability = providers.CapabilityKnowledge

	p := &Provider{
		BaseProvider: providers.NewBaseProvider(config, opts...),
	}
	p.Logger().Info("knowledge provider initialized", "base_url", config.BaseURL)
	return p, nil
}

// Search queries the knowledge base and returns up to limit results.
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	payload, err := json.Marshal(map[string]any{
		"query": query,
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	var results []SearchResult
	err = p.ExecuteWithRetry(ctx, "search", func(ctx context.Context) error {
		resp, err := p.DoRequest(ctx, http.MethodPost, p.GetConfig().BaseURL+"/search", payload, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return json.NewDecoder(resp.Body).Decode(&results)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// PerformHealthCheck probes the backend status endpoint.
func (p *Provider) PerformHealthCheck(ctx context.Context) error {
	return p.Probe(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		resp, err := p.DoRequest(ctx, http.MethodGet, p.GetConfig().BaseURL+"/status", nil, nil)
		if err != nil {
			return err
		}
		io.Copy(io.Discard, resp.Body)
		return resp.Body.Close()
	})
}

// ValidateCredentials verifies the API key against the status endpoint.
func (p *Provider) ValidateCredentials(ctx context.Context) error {
	resp, err := p.DoRequest(ctx, http.MethodGet, p.GetConfig().BaseURL+"/status", nil, nil)
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
