package provider

import (
	"context"
	"fmt"

	"github.com/recollect-labs/recollect/config"
	openai_provider "github.com/recollect-labs/recollect/provider/openai"
)

// Provider is the combined text-completion and embedding port the
// clustering pipeline consumes.
type Provider interface {
	// Complete turns a prompt into free-form text. The output carries no
	// structural guarantee.
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
	// Embed turns texts into vectors, one per input in order. An entry may
	// be empty when the provider failed for that text's batch.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates an LLM provider from configuration. The default
// provider name from cfg.Default is used when set, otherwise the first
// configured entry wins.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}

	pc, ok := cfg.Providers[cfg.Default]
	if !ok {
		for _, candidate := range cfg.Providers {
			pc = candidate
			break
		}
	}

	switch pc.Type {
	case "openai", "":
		return openai_provider.NewClient(pc), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider type: %s", pc.Type)
	}
}
