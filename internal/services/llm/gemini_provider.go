package llm

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ternarybob/stockgrader/internal/common"
	"github.com/ternarybob/stockgrader/internal/interfaces"
	"github.com/ternarybob/stockgrader/internal/models"
)

// GeminiProvider runs analyses with Google Search grounding and hosts follow-up chats.
//
// The client is created lazily on first use so the service can start without an API key;
// the key is resolved through common.ResolveAPIKey (environment, KV store, then config).
type GeminiProvider struct {
	config         *common.GeminiConfig
	retry          *RetryConfig
	kvStorage      interfaces.KeyValueStorage
	limiter        *rate.Limiter
	includeContext bool
	logger         arbor.ILogger

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiProvider creates a Gemini-backed AnalysisProvider
func NewGeminiProvider(
	config *common.GeminiConfig,
	llmConfig *common.LLMConfig,
	includeContext bool,
	kvStorage interfaces.KeyValueStorage,
	logger arbor.ILogger,
) *GeminiProvider {
	return &GeminiProvider{
		config:         config,
		retry:          NewRetryConfig(llmConfig),
		kvStorage:      kvStorage,
		limiter:        newRequestLimiter(config.RateLimit, 4*time.Second),
		includeContext: includeContext,
		logger:         logger,
	}
}

// Name returns the provider identifier
func (p *GeminiProvider) Name() string {
	return string(common.LLMProviderGemini)
}

// Model returns the configured model
func (p *GeminiProvider) Model() string {
	return p.config.Model
}

func (p *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	apiKey, err := common.ResolveAPIKey(ctx, p.kvStorage, "gemini_api_key", p.config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Gemini API key: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	p.client = client
	return client, nil
}

// safetySettings blocks medium and above for the four standard harm categories
func safetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
		})
	}
	return settings
}

// RequestAnalysis asks Gemini for a grounded, rubric-scored analysis.
// Sources come from the grounding metadata, never from the model's JSON.
func (p *GeminiProvider) RequestAnalysis(ctx context.Context, companyName string) (*interfaces.AnalysisResult, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, common.ParseDuration(p.config.Timeout, 3*time.Minute))
	defer cancel()

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(AnalysisSystemInstruction, genai.RoleUser),
		Tools:             []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		SafetySettings:    safetySettings(),
	}
	contents := []*genai.Content{
		genai.NewContentFromText(AnalysisUserPrompt(companyName), genai.RoleUser),
	}

	p.logger.Debug().
		Str("company", companyName).
		Str("model", p.config.Model).
		Msg("Requesting Gemini analysis")

	start := time.Now()
	var resp *genai.GenerateContentResponse
	err = p.retry.Do(ctx, p.logger, "Gemini", func(ctx context.Context) error {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		r, err := client.Models.GenerateContent(ctx, p.config.Model, contents, config)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ErrNoAnalysisData
	}

	text := resp.Text()
	partial, err := ParseAnalysisText(text)
	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("company", companyName).
			Int("response_length", len(text)).
			Msg("Gemini response did not contain usable analysis JSON")
		return nil, err
	}
	partial.Sources = groundingSources(resp)

	p.logger.Info().
		Str("company", companyName).
		Int("sources", len(partial.Sources)).
		Dur("duration", time.Since(start)).
		Msg("Gemini analysis received")

	return &interfaces.AnalysisResult{
		Partial:  partial,
		RawText:  text,
		Provider: p.Name(),
		Model:    p.config.Model,
	}, nil
}

// OpenChat creates a Gemini chat session, optionally seeded with the analysis
func (p *GeminiProvider) OpenChat(ctx context.Context, seed *models.StockAnalysis) (interfaces.ChatHandle, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(ChatSystemInstruction, genai.RoleUser),
		SafetySettings:    safetySettings(),
	}
	if p.config.Temperature > 0 {
		config.Temperature = genai.Ptr(p.config.Temperature)
	}

	var history []*genai.Content
	if p.includeContext && seed != nil {
		prompt, err := chatSeedPrompt(seed)
		if err != nil {
			return nil, err
		}
		history = []*genai.Content{
			genai.NewContentFromText(prompt, genai.RoleUser),
			genai.NewContentFromText(chatSeedAcknowledgement, genai.RoleModel),
		}
	}

	chat, err := client.Chats.Create(ctx, p.config.Model, config, history)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini chat: %w", err)
	}

	return &geminiChat{chat: chat, limiter: p.limiter, logger: p.logger}, nil
}

// geminiChat adapts a genai chat to ChatHandle. Streams are not retried,
// since a retry after partial output would repeat fragments.
type geminiChat struct {
	chat    *genai.Chat
	limiter *rate.Limiter
	logger  arbor.ILogger
}

func (c *geminiChat) SendMessageStream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := c.limiter.Wait(ctx); err != nil {
			yield("", err)
			return
		}

		for resp, err := range c.chat.SendMessageStream(ctx, genai.Part{Text: text}) {
			if err != nil {
				yield("", err)
				return
			}
			fragment := resp.Text()
			if fragment == "" {
				continue
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}
