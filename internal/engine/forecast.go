package engine

import (
	"context"
	"fmt"

	"github.com/agri-assist/backend/internal/enrich"
)

type ForecastRequest struct {
	Latitude  *Number `json:"latitude"`
	Longitude *Number `json:"longitude"`
}

type ForecastResponse struct {
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	CurrentWeather enrich.Weather `json:"current_weather"`
	Alerts         []string       `json:"alerts"`
}

// WeatherAlerts reports current conditions with heat, cold and wind alerts.
// Unlike the other domains a weather failure is surfaced.
func (e *Engine) WeatherAlerts(ctx context.Context, req ForecastRequest) (*ForecastResponse, error) {
	r := e.begin(ctx, "forecast")
	if req.Latitude == nil || req.Longitude == nil {
		return nil, r.fail(invalid("Latitude and longitude are required"))
	}
	r.enter(StageValidated)

	lat, lon := req.Latitude.Float(), req.Longitude.Float()
	weather, err := e.Weather.CurrentStrict(ctx, lat, lon)
	if err != nil {
		return nil, r.fail(fmt.Errorf("weather lookup failed: %w", err))
	}
	r.enter(StageEnriched)

	r.done()
	return &ForecastResponse{
		Latitude:       lat,
		Longitude:      lon,
		CurrentWeather: weather,
		Alerts:         enrich.Alerts(weather),
	}, nil
}
