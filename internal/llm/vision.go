package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/designscan/internal/config"
)

// DefaultAnalysisTimeout bounds one analysis call including the image download.
const DefaultAnalysisTimeout = 90 * time.Second

const maxResponseTokens = 4096

// Analyzer turns one rendered frame into free-form model output.
type Analyzer interface {
	Analyze(ctx context.Context, imageURL, contextHint string) (string, error)
}

// VisionAnalyzer sends frame renders to a langchaingo vision model.
type VisionAnalyzer struct {
	llm        llms.Model
	modelName  string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// Compile-time check that VisionAnalyzer implements Analyzer.
var _ Analyzer = (*VisionAnalyzer)(nil)

// NewAnalyzer creates the analyzer selected by cfg.LLMProvider.
// It returns a nil Analyzer when analysis is disabled.
func NewAnalyzer(ctx context.Context, cfg config.Config, logger *slog.Logger) (Analyzer, error) {
	if !cfg.AnalysisEnabled() {
		return nil, nil
	}
	if cfg.LLMProvider == config.ProviderBedrock {
		a, err := NewBedrockAnalyzer(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	a, err := NewVisionAnalyzer(cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// NewVisionAnalyzer creates a langchaingo-backed analyzer for ollama, openai or anthropic.
func NewVisionAnalyzer(cfg config.Config, logger *slog.Logger) (*VisionAnalyzer, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return newVisionAnalyzer(model, cfg.LLMModel, cfg.AnalysisTimeout, logger), nil
}

func newVisionAnalyzer(model llms.Model, name string, timeout time.Duration, logger *slog.Logger) *VisionAnalyzer {
	if timeout <= 0 {
		timeout = DefaultAnalysisTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VisionAnalyzer{
		llm:        model,
		modelName:  name,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Analyze downloads the image and asks the model for a JSON UI specification.
func (a *VisionAnalyzer) Analyze(ctx context.Context, imageURL, contextHint string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	data, mime, err := fetchImage(ctx, a.httpClient, imageURL)
	if err != nil {
		return "", err
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(mime, data),
				llms.TextPart(userPrompt(contextHint)),
			},
		},
	}

	response, err := a.llm.GenerateContent(ctx, messages, llms.WithMaxTokens(maxResponseTokens))
	duration := time.Since(start)
	if err != nil {
		a.logger.Debug("vision call failed", "model", a.modelName, "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("analyze: %w", wrapFatalError(err))
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("analyze: no response choices")
	}

	a.logger.Debug("vision call complete", "model", a.modelName, "image_bytes", len(data), "duration_ms", duration.Milliseconds())
	return response.Choices[0].Content, nil
}

// Model returns the vision model name.
func (a *VisionAnalyzer) Model() string {
	return a.modelName
}
