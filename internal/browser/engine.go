package browser

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gherkit/gherkit/internal/config"
)

// NewEngine builds the engine named by the configuration.
func NewEngine(cfg config.BrowserConfig, logger *zap.Logger) (Engine, error) {
	switch cfg.Engine {
	case "playwright":
		return NewPlaywrightEngine(cfg, logger), nil
	case "chromedp":
		return NewChromedpEngine(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", cfg.Engine)
	}
}
