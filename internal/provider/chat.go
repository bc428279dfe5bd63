package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	lcschema "github.com/tmc/langchaingo/schema"

	"github.com/agri-assist/backend/internal/config"
)

// ChatProvider adapts a langchaingo chat model to LLMProvider.
type ChatProvider struct {
	name   string
	model  llms.Model
	logger *logrus.Entry
	// binaryImages sends images as raw binary parts instead of data URLs.
	binaryImages bool
}

// New builds the provider selected by cfg.Provider.
func New(cfg config.LLMConfig, logger *logrus.Entry) (*ChatProvider, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIProvider(cfg, logger)
	case "ollama":
		return NewOllamaProvider(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

func (p *ChatProvider) Name() string {
	return p.name
}

func (p *ChatProvider) Complete(ctx context.Context, req Request) (string, error) {
	parts := []llms.ContentPart{llms.TextContent{Text: req.User}}
	if req.Image != nil {
		if p.binaryImages {
			parts = append(parts, llms.BinaryPart(req.Image.MIMEType, req.Image.Data))
		} else {
			parts = append(parts, llms.ImageURLPart(req.Image.DataURL()))
		}
	}

	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.TextParts(lcschema.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.MessageContent{Role: lcschema.ChatMessageTypeHuman, Parts: parts})

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}

	start := time.Now()
	resp, err := p.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", &CompletionError{Provider: p.name, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &CompletionError{Provider: p.name, Err: errors.New("no choices returned")}
	}

	p.logger.WithFields(logrus.Fields{
		"model":    req.Model,
		"image":    req.Image != nil,
		"duration": time.Since(start).String(),
	}).Debug("Completion received")
	return resp.Choices[0].Content, nil
}

func httpClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
