package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/raphaelgruber/designscan/internal/config"
)

// ConverseAPI is the subset of the Bedrock runtime client used for analysis.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockAnalyzer sends frame renders to a Bedrock model through the Converse API.
type BedrockAnalyzer struct {
	client     ConverseAPI
	modelID    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// Compile-time check that BedrockAnalyzer implements Analyzer.
var _ Analyzer = (*BedrockAnalyzer)(nil)

// NewBedrockAnalyzer loads AWS credentials from the default chain for cfg.AWSRegion.
func NewBedrockAnalyzer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*BedrockAnalyzer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newBedrockAnalyzer(bedrockruntime.NewFromConfig(awsCfg), cfg.LLMModel, cfg.AnalysisTimeout, logger), nil
}

func newBedrockAnalyzer(client ConverseAPI, modelID string, timeout time.Duration, logger *slog.Logger) *BedrockAnalyzer {
	if timeout <= 0 {
		timeout = DefaultAnalysisTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BedrockAnalyzer{
		client:     client,
		modelID:    modelID,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Analyze downloads the image and sends it as an image block with the prompt.
func (a *BedrockAnalyzer) Analyze(ctx context.Context, imageURL, contextHint string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	data, mime, err := fetchImage(ctx, a.httpClient, imageURL)
	if err != nil {
		return "", err
	}
	format, err := bedrockImageFormat(mime)
	if err != nil {
		return "", err
	}

	out, err := a.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(a.modelID),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: systemPrompt},
		},
		Messages: []types.Message{{
			Role: types.ConversationRoleUser,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberImage{Value: types.ImageBlock{
					Format: format,
					Source: &types.ImageSourceMemberBytes{Value: data},
				}},
				&types.ContentBlockMemberText{Value: userPrompt(contextHint)},
			},
		}},
		InferenceConfig: &types.InferenceConfiguration{MaxTokens: aws.Int32(maxResponseTokens)},
	})
	duration := time.Since(start)
	if err != nil {
		a.logger.Debug("bedrock call failed", "model", a.modelID, "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("analyze: %w", wrapFatalError(err))
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("analyze: unexpected bedrock output %T", out.Output)
	}

	var b strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			b.WriteString(text.Value)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("analyze: empty bedrock response")
	}

	a.logger.Debug("bedrock call complete", "model", a.modelID, "image_bytes", len(data), "duration_ms", duration.Milliseconds())
	return b.String(), nil
}

func bedrockImageFormat(mime string) (types.ImageFormat, error) {
	switch mime {
	case "image/png":
		return types.ImageFormatPng, nil
	case "image/jpeg", "image/jpg":
		return types.ImageFormatJpeg, nil
	case "image/gif":
		return types.ImageFormatGif, nil
	case "image/webp":
		return types.ImageFormatWebp, nil
	}
	return "", fmt.Errorf("unsupported image type %q", mime)
}
