// Package factory selects and wraps the analysis engine providers.
package factory

import (
	"fmt"

	"github.com/marketops/rankpulse/internal/config"
	"github.com/marketops/rankpulse/internal/engine/anthropic"
	"github.com/marketops/rankpulse/internal/engine/mock"
	"github.com/marketops/rankpulse/internal/engine/openai"
	"github.com/marketops/rankpulse/pkg/models"
)

// NewEngine constructs the configured analysis engine provider.
// Called once at server startup.
func NewEngine(cfg config.EngineConfig) (models.Engine, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	case "mock":
		return mock.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown engine provider %q: must be one of openai, anthropic, mock", cfg.Provider)
	}
}
