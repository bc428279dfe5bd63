package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agri-assist/backend/internal/config"
	"github.com/agri-assist/backend/internal/enrich"
	"github.com/agri-assist/backend/internal/index"
	"github.com/agri-assist/backend/internal/provider"
)

// WeatherSource supplies weather samples. Current and Forecast never fail.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) enrich.Weather
	CurrentStrict(ctx context.Context, lat, lon float64) (enrich.Weather, error)
	Forecast(ctx context.Context, lat, lon float64, opts enrich.ForecastOptions) enrich.Forecast
}

// SoilSource supplies soil samples. Fetch never fails.
type SoilSource interface {
	Fetch(ctx context.Context, lat, lon float64) enrich.Soil
}

// Engine runs the advisory domains. It holds no per-request state; every
// dependency is shared read-only.
type Engine struct {
	Config   *config.Config
	Logger   *logrus.Entry
	Index    index.Searcher
	LLM      provider.LLMProvider
	Weather  WeatherSource
	Soil     SoilSource
	Advisors *Advisors
	// Now is the clock used for seasons and timestamps.
	Now func() time.Time
}

func NewEngine(cfg *config.Config, logger *logrus.Entry, idx index.Searcher, llm provider.LLMProvider, weather WeatherSource, soil SoilSource) (*Engine, error) {
	advisors, err := LoadAdvisors()
	if err != nil {
		return nil, fmt.Errorf("failed to load advisors: %w", err)
	}
	return &Engine{
		Config:   cfg,
		Logger:   logger,
		Index:    idx,
		LLM:      llm,
		Weather:  weather,
		Soil:     soil,
		Advisors: advisors,
		Now:      time.Now,
	}, nil
}

type loggerKey struct{}

// WithLogger attaches a request-scoped logger to ctx.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the logger attached to ctx, or fallback.
func LoggerFrom(ctx context.Context, fallback *logrus.Entry) *logrus.Entry {
	if l, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok && l != nil {
		return l
	}
	return fallback
}

func (e *Engine) logger(ctx context.Context) *logrus.Entry {
	return LoggerFrom(ctx, e.Logger)
}

func (e *Engine) topK() int {
	if e.Config.Index.TopK > 0 {
		return e.Config.Index.TopK
	}
	return 3
}
