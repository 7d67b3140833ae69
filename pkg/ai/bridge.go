// Package ai bridges to a local or hosted LLM provider. The bridge is
// advisory only: probes are short and failures never block validation or
// device work.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/netval-app/netval/pkg/settings"
	"github.com/netval-app/netval/pkg/util"
)

const (
	// ProbeTimeout bounds the availability probe against ollama.
	ProbeTimeout = 3 * time.Second
	// RequestTimeout bounds any other provider call.
	RequestTimeout = 30 * time.Second
)

// Known providers. Only ollama is probed live; hosted providers expose a
// static model catalog and are validated by key presence.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderMistral   = "mistral"
	ProviderAnthropic = "anthropic"
)

var hostedModels = map[string][]string{
	ProviderOpenAI:    {"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini"},
	ProviderGemini:    {"gemini-1.5-pro", "gemini-1.5-flash", "gemini-2.0-flash"},
	ProviderMistral:   {"mistral-large-latest", "mistral-small-latest", "codestral-latest"},
	ProviderAnthropic: {"claude-sonnet-4-20250514", "claude-haiku-3-5-20241022"},
}

// Bridge talks to the configured provider.
type Bridge struct {
	cfg    settings.AI
	client *http.Client
}

// New creates a Bridge for the given AI settings.
func New(cfg settings.AI) *Bridge {
	return &Bridge{cfg: cfg, client: &http.Client{Timeout: RequestTimeout}}
}

// ValidProvider reports whether name is a recognized provider.
func ValidProvider(name string) bool {
	switch name {
	case ProviderOllama, ProviderOpenAI, ProviderGemini, ProviderMistral, ProviderAnthropic:
		return true
	}
	return false
}

// OllamaAvailable probes the local ollama daemon. Any failure within the
// probe window reads as unavailable.
func (b *Bridge) OllamaAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.tagsURL(), nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the model names the configured provider offers.
// Ollama is asked live; hosted providers return their static catalog.
func (b *Bridge) ListModels(ctx context.Context, provider string) ([]string, error) {
	if provider == "" {
		provider = b.cfg.Provider
	}
	if provider != ProviderOllama {
		models, ok := hostedModels[provider]
		if !ok {
			return nil, util.NewValidationError("unknown AI provider '" + provider + "'")
		}
		out := make([]string, len(models))
		copy(out, models)
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.tagsURL(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrAIUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ollama returned %s", util.ErrAIUnavailable, resp.Status)
	}

	var body struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding tags: %v", util.ErrAIUnavailable, err)
	}
	names := make([]string, 0, len(body.Models))
	for _, m := range body.Models {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names, nil
}

// TestConnection verifies the configured provider is usable: a live probe
// for ollama, key presence for hosted providers.
func (b *Bridge) TestConnection(ctx context.Context) error {
	switch b.cfg.Provider {
	case ProviderOllama:
		if !b.OllamaAvailable(ctx) {
			return fmt.Errorf("%w: ollama not responding at %s", util.ErrAIUnavailable, b.cfg.BaseURL)
		}
		return nil
	case ProviderOpenAI, ProviderGemini, ProviderMistral, ProviderAnthropic:
		if b.cfg.APIKey == "" {
			return util.NewValidationError("provider " + b.cfg.Provider + " requires an API key")
		}
		return nil
	default:
		return util.NewValidationError("unknown AI provider '" + b.cfg.Provider + "'")
	}
}

func (b *Bridge) tagsURL() string {
	return strings.TrimRight(b.cfg.BaseURL, "/") + "/api/tags"
}
