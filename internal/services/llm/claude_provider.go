package llm

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/stockgrader/internal/common"
	"github.com/ternarybob/stockgrader/internal/interfaces"
	"github.com/ternarybob/stockgrader/internal/models"
)

// ClaudeProvider runs analyses and chats against Anthropic Claude.
// Claude has no search grounding here, so analyses carry no sources.
type ClaudeProvider struct {
	config         *common.ClaudeConfig
	retry          *RetryConfig
	kvStorage      interfaces.KeyValueStorage
	limiter        *rate.Limiter
	includeContext bool
	logger         arbor.ILogger

	mu     sync.Mutex
	client *anthropic.Client
}

// NewClaudeProvider creates a Claude-backed AnalysisProvider
func NewClaudeProvider(
	config *common.ClaudeConfig,
	llmConfig *common.LLMConfig,
	includeContext bool,
	kvStorage interfaces.KeyValueStorage,
	logger arbor.ILogger,
) *ClaudeProvider {
	return &ClaudeProvider{
		config:         config,
		retry:          NewRetryConfig(llmConfig),
		kvStorage:      kvStorage,
		limiter:        newRequestLimiter(config.RateLimit, time.Second),
		includeContext: includeContext,
		logger:         logger,
	}
}

// Name returns the provider identifier
func (p *ClaudeProvider) Name() string {
	return string(common.LLMProviderClaude)
}

// Model returns the configured model
func (p *ClaudeProvider) Model() string {
	return p.config.Model
}

func (p *ClaudeProvider) getClient(ctx context.Context) (*anthropic.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	apiKey, err := common.ResolveAPIKey(ctx, p.kvStorage, "anthropic_api_key", p.config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Anthropic API key: %w", err)
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	p.client = &client
	return p.client, nil
}

func (p *ClaudeProvider) baseParams(system string) anthropic.MessageNewParams {
	maxTokens := p.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: int64(maxTokens),
		System:    []anthropic.TextBlockParam{{Text: system}},
	}
	if p.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(p.config.Temperature))
	}
	return params
}

// RequestAnalysis asks Claude for a rubric-scored analysis
func (p *ClaudeProvider) RequestAnalysis(ctx context.Context, companyName string) (*interfaces.AnalysisResult, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, common.ParseDuration(p.config.Timeout, 3*time.Minute))
	defer cancel()

	params := p.baseParams(AnalysisSystemInstruction)
	params.Messages = []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(AnalysisUserPrompt(companyName))),
	}

	p.logger.Debug().
		Str("company", companyName).
		Str("model", p.config.Model).
		Msg("Requesting Claude analysis")

	start := time.Now()
	var resp *anthropic.Message
	err = p.retry.Do(ctx, p.logger, "Claude", func(ctx context.Context) error {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		r, err := client.Messages.New(ctx, params)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	partial, err := ParseAnalysisText(text.String())
	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("company", companyName).
			Int("response_length", text.Len()).
			Msg("Claude response did not contain usable analysis JSON")
		return nil, err
	}
	partial.Sources = []models.Source{}

	p.logger.Info().
		Str("company", companyName).
		Dur("duration", time.Since(start)).
		Msg("Claude analysis received")

	return &interfaces.AnalysisResult{
		Partial:  partial,
		RawText:  text.String(),
		Provider: p.Name(),
		Model:    p.config.Model,
	}, nil
}

// OpenChat starts a Claude conversation, optionally seeded with the analysis
func (p *ClaudeProvider) OpenChat(ctx context.Context, seed *models.StockAnalysis) (interfaces.ChatHandle, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	chat := &claudeChat{
		client:  client,
		params:  p.baseParams(ChatSystemInstruction),
		limiter: p.limiter,
		logger:  p.logger,
	}

	if p.includeContext && seed != nil {
		prompt, err := chatSeedPrompt(seed)
		if err != nil {
			return nil, err
		}
		chat.history = []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock(chatSeedAcknowledgement)),
		}
	}

	return chat, nil
}

// claudeChat keeps the conversation client-side; the Messages API is stateless.
type claudeChat struct {
	client  *anthropic.Client
	params  anthropic.MessageNewParams
	limiter *rate.Limiter
	logger  arbor.ILogger

	mu      sync.Mutex
	history []anthropic.MessageParam
}

func (c *claudeChat) SendMessageStream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		c.mu.Lock()
		defer c.mu.Unlock()

		if err := c.limiter.Wait(ctx); err != nil {
			yield("", err)
			return
		}

		messages := append(slices.Clone(c.history), anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
		params := c.params
		params.Messages = messages

		stream := c.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		var reply strings.Builder
		for stream.Next() {
			event, ok := stream.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			delta, ok := event.Delta.AsAny().(anthropic.TextDelta)
			if !ok || delta.Text == "" {
				continue
			}
			reply.WriteString(delta.Text)
			if !yield(delta.Text, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield("", err)
			return
		}

		// Only completed exchanges join the history
		c.history = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(reply.String())))
	}
}
