package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"verity-hq/callisto/pkg/config"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "loud", Format: "json"}, nil); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(config.LoggingConfig{Level: "info", Format: "xml"}, nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "visible") {
		t.Error("warn message missing from output")
	}
}

func TestCredentialRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("provider configured",
		"api_key", "sk-supersecret123",
		"error", "request failed: api_key=abc123 rejected",
		"provider", "gemini")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["api_key"] != "***" {
		t.Errorf("api_key not masked: %v", entry["api_key"])
	}
	if strings.Contains(entry["error"].(string), "abc123") {
		t.Errorf("inline key not masked: %v", entry["error"])
	}
	if entry["provider"] != "gemini" {
		t.Errorf("non-sensitive attr mangled: %v", entry["provider"])
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	id := RequestID(ctx)
	if id == "" {
		t.Fatal("expected generated request ID")
	}

	ctx = WithRequestID(context.Background(), "req-42")
	if got := RequestID(ctx); got != "req-42" {
		t.Errorf("expected req-42, got %q", got)
	}

	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	FromContext(ctx, logger).Info("handling request")
	if !strings.Contains(buf.String(), "req-42") {
		t.Error("request ID missing from annotated logger output")
	}
}
