package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/stockgrader/internal/common"
	"github.com/ternarybob/stockgrader/internal/interfaces"
)

// NewProvider returns the AnalysisProvider selected by llm.default_provider
func NewProvider(cfg *common.Config, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (interfaces.AnalysisProvider, error) {
	switch cfg.LLM.DefaultProvider {
	case common.LLMProviderGemini, "":
		logger.Info().Str("model", cfg.Gemini.Model).Msg("Using Gemini analysis provider")
		return NewGeminiProvider(&cfg.Gemini, &cfg.LLM, cfg.Chat.IncludeAnalysisContext, kvStorage, logger), nil
	case common.LLMProviderClaude:
		logger.Info().Str("model", cfg.Claude.Model).Msg("Using Claude analysis provider")
		return NewClaudeProvider(&cfg.Claude, &cfg.LLM, cfg.Chat.IncludeAnalysisContext, kvStorage, logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.DefaultProvider)
	}
}
