// Package inference implements providers for model inference backends
// speaking the OpenAI-compatible chat completion API. Local runtimes
// (Ollama, vLLM, LM Studio) and hosted backends both fit; the API key
// is optional for local ones.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"verity-hq/callisto/pkg/providers"
)

// CompletionRequest is a chat completion request in the
// OpenAI-compatible format.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse is the parsed completion result.
type CompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Provider is an inference backend adapter.
type Provider struct {
	*providers.BaseProvider
}

// NewProvider creates an inference provider from config.
func NewProvider(config providers.ProviderConfig, opts ...providers.BaseOption) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "inference",
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
	config.Capability = providers.CapabilityInference

	p := &Provider{
		BaseProvider: providers.NewBaseProvider(config, opts...),
	}
	p.Logger().Info("inference provider initialized", "base_url", config.BaseURL)
	return p, nil
}

// Complete sends a chat completion request under retry and circuit
// breaker protection.
func (p *Provider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	var result CompletionResponse
	err = p.ExecuteWithRetry(ctx, "complete", func(ctx context.Context) error {
		resp, err := p.DoRequest(ctx, http.MethodPost, p.GetConfig().BaseURL+"/v1/chat/completions", payload, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return json.NewDecoder(resp.Body).Decode(&result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// PerformHealthCheck probes the models listing endpoint.
func (p *Provider) PerformHealthCheck(ctx context.Context) error {
	return p.Probe(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		resp, err := p.DoRequest(ctx, http.MethodGet, p.GetConfig().BaseURL+"/v1/models", nil, nil)
		if err != nil {
			return err
		}
		io.Copy(io.Discard, resp.Body)
		return resp.Body.Close()
	})
}

// ValidateCredentials verifies the API key by listing models. A key is
// optional for local runtimes, so an empty key skips validation.
func (p *Provider) ValidateCredentials(ctx context.Context) error {
	if p.GetConfig().APIKey == "" {
		return nil
	}
	resp, err := p.DoRequest(ctx, http.MethodGet, p.GetConfig().BaseURL+"/v1/models", nil, nil)
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
