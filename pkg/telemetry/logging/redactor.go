package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Attribute keys whose values are always masked in log output.
var sensitiveKeys = map[string]bool{
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
	"token":         true,
	"password":      true,
	"secret":        true,
}

// apiKeyPattern matches bare API keys that leak into free-form values
// (sk- prefixed keys and api_key=... fragments).
var apiKeyPattern = regexp.MustCompile(`(sk-[a-zA-Z0-9]+|api[-_]?key[=:]\s*[a-zA-Z0-9-]+)`)

const redacted = "***"

// redactAttr is a slog ReplaceAttr hook masking credential material.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	if a.Value.Kind() == slog.KindString {
		if s := a.Value.String(); apiKeyPattern.MatchString(s) {
			return slog.String(a.Key, apiKeyPattern.ReplaceAllString(s, redacted))
		}
	}
	return a
}

// RedactString masks credential fragments in an arbitrary string, for
// callers that build messages outside the slog pipeline.
func RedactString(s string) string {
	return apiKeyPattern.ReplaceAllString(s, redacted)
}
