// Package llm provides the reasoning-service collaborator: a small Client
// interface and a Gemini API implementation over plain HTTP.
package llm

import (
	"context"
	"errors"
	"strings"
)

// Client is the minimal surface the agent needs from a language model.
// The purpose string identifies the call site for logging; it never
// reaches the model.
type Client interface {
	Generate(ctx context.Context, prompt, purpose string) (string, error)
}

// Sentinel errors for caller-side classification.
var (
	// ErrEmptyResponse means the model returned no usable text.
	ErrEmptyResponse = errors.New("model returned empty response")

	// ErrRateLimited means the API rejected the call with HTTP 429 on
	// every retry.
	ErrRateLimited = errors.New("rate limit exceeded (429)")

	// ErrNotConfigured means no API key is available.
	ErrNotConfigured = errors.New("API key not configured")
)

// StripFences removes a surrounding markdown code fence from model output.
// Models routinely wrap code and JSON in ```lang ... ``` even when told
// not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}

	// Drop the opening fence (with optional language tag).
	lines = lines[1:]

	// Drop the closing fence if present.
	last := len(lines) - 1
	if strings.TrimSpace(lines[last]) == "```" {
		lines = lines[:last]
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
