package provider

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/agri-assist/backend/internal/config"
)

// NewOpenAIProvider talks to an OpenAI-compatible chat completion API
// (Groq by default).
func NewOpenAIProvider(cfg config.LLMConfig, logger *logrus.Entry) (*ChatProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is not set (GROQ_API_KEY or LLM_API_KEY)")
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(httpClient(cfg.Timeout)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return &ChatProvider{
		name:   "openai",
		model:  llm,
		logger: logger.WithField("provider", "openai"),
	}, nil
}
