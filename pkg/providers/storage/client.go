// Package storage implements providers for file storage backends with
// a drive-style list/fetch API.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"verity-hq/callisto/pkg/providers"
)

// FileInfo describes a stored file.
type FileInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	MimeType string    `json:"mime_type"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Provider is a storage backend adapter.
type Provider struct {
	*providers.BaseProvider
}

// NewProvider creates a storage provider from config.
func NewProvider(config providers.ProviderConfig, opts ...providers.BaseOption) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "storage",
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
	config.Capability = providers.CapabilityStorage

	p := &Provider{
		BaseProvider: providers.NewBaseProvider(config, opts...),
	}
	p.Logger().Info("storage provider initialized", "base_url", config.BaseURL)
	return p, nil
}

// ListFiles returns files in the given folder, newest first.
func (p *Provider) ListFiles(ctx context.Context, folder string) ([]FileInfo, error) {
	var files []FileInfo
	err := p.ExecuteWithRetry(ctx, "list_files", func(ctx context.Context) error {
		u := p.GetConfig().BaseURL + "/files?folder=" + url.QueryEscape(folder)
		resp, err := p.DoRequest(ctx, http.MethodGet, u, nil, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return json.NewDecoder(resp.Body).Decode(&files)
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// FetchFile downloads a file's contents by ID.
func (p *Provider) FetchFile(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := p.ExecuteWithRetry(ctx, "fetch_file", func(ctx context.Context) error {
		u := p.GetConfig().BaseURL + "/files/" + url.PathEscape(id)
		resp, err := p.DoRequest(ctx, http.MethodGet, u, nil, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read file %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// PerformHealthCheck probes the storage quota endpoint.
func (p *Provider) PerformHealthCheck(ctx context.Context) error {
	return p.Probe(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		resp, err := p.DoRequest(ctx, http.MethodGet, p.GetConfig().BaseURL+"/about", nil, nil)
		if err != nil {
			return err
		}
		io.Copy(io.Discard, resp.Body)
		return resp.Body.Close()
	})
}

// ValidateCredentials verifies the API key against the quota endpoint.
func (p *Provider) ValidateCredentials(ctx context.Context) error {
	resp, err := p.DoRequest(ctx, http.MethodGet, p.GetConfig().BaseURL+"/about", nil, nil)
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
