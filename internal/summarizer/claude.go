package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"indexreport/pkg/model"
)

const (
	// DefaultClaudeModel is used when no model is configured
	DefaultClaudeModel = "claude-sonnet-4-5"
	defaultMaxTokens   = 2048
)

// ClaudeConfig configures the Claude summarizer
type ClaudeConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	BaseURL     string // optional endpoint override
	Prompt      PromptOptions
}

// ClaudeSummarizer asks an Anthropic model for the narrative
type ClaudeSummarizer struct {
	config   ClaudeConfig
	logger   zerolog.Logger
	generate generateFunc
}

// NewClaudeSummarizer creates the Anthropic client
func NewClaudeSummarizer(cfg ClaudeConfig, logger zerolog.Logger) (*ClaudeSummarizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("claude: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultClaudeModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// the pipeline degrades instead of retrying
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	s := &ClaudeSummarizer{
		config: cfg,
		logger: logger.With().Str("summarizer", "claude").Logger(),
	}
	s.generate = func(ctx context.Context, prompt string) (string, error) {
		return s.generateWith(ctx, &client, prompt)
	}

	s.logger.Debug().
		Str("model", cfg.Model).
		Int("max_tokens", cfg.MaxTokens).
		Msg("Claude summarizer initialized")
	return s, nil
}

// Name returns the summarizer name
func (s *ClaudeSummarizer) Name() string {
	return "claude"
}

// Summarize sends the mode prompt and returns the model's answer
func (s *ClaudeSummarizer) Summarize(ctx context.Context, report *model.Report) (string, error) {
	return summarize(ctx, s.Name(), s.generate, report, s.config.Prompt)
}

func (s *ClaudeSummarizer) generateWith(ctx context.Context, client *anthropic.Client, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}
	return response.String(), nil
}
