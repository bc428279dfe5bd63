package provider

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/agri-assist/backend/internal/config"
)

// NewOllamaProvider talks to a local ollama server. Images are sent as
// binary parts.
func NewOllamaProvider(cfg config.LLMConfig, logger *logrus.Entry) (*ChatProvider, error) {
	opts := []ollama.Option{
		ollama.WithModel(cfg.Model),
		ollama.WithHTTPClient(httpClient(cfg.Timeout)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &ChatProvider{
		name:         "ollama",
		model:        llm,
		logger:       logger.WithField("provider", "ollama"),
		binaryImages: true,
	}, nil
}
