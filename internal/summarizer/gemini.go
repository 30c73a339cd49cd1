package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"indexreport/pkg/model"
)

// DefaultGeminiModel is used when no model is configured
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig configures the Gemini summarizer
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	BaseURL     string // optional endpoint override
	Prompt      PromptOptions
}

// GeminiSummarizer asks a Gemini model for the narrative
type GeminiSummarizer struct {
	config   GeminiConfig
	logger   zerolog.Logger
	generate generateFunc
}

// NewGeminiSummarizer creates the genai client
func NewGeminiSummarizer(ctx context.Context, cfg GeminiConfig, logger zerolog.Logger) (*GeminiSummarizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	s := &GeminiSummarizer{
		config: cfg,
		logger: logger.With().Str("summarizer", "gemini").Logger(),
	}
	s.generate = func(ctx context.Context, prompt string) (string, error) {
		return s.generateWith(ctx, client, prompt)
	}

	s.logger.Debug().
		Str("model", cfg.Model).
		Float32("temperature", cfg.Temperature).
		Msg("Gemini summarizer initialized")
	return s, nil
}

// Name returns the summarizer name
func (s *GeminiSummarizer) Name() string {
	return "gemini"
}

// Summarize sends the mode prompt and returns the model's answer
func (s *GeminiSummarizer) Summarize(ctx context.Context, report *model.Report) (string, error) {
	return summarize(ctx, s.Name(), s.generate, report, s.config.Prompt)
}

func (s *GeminiSummarizer) generateWith(ctx context.Context, client *genai.Client, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{}
	if s.config.Temperature > 0 {
		config.Temperature = genai.Ptr(s.config.Temperature)
	}

	resp, err := client.Models.GenerateContent(ctx, s.config.Model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	// use the first candidate that carries text
	var response strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}
	return response.String(), nil
}
