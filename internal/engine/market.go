package engine

import (
	"context"
	"strings"

	"github.com/agri-assist/backend/internal/prompt"
	"github.com/agri-assist/backend/internal/schema"
)

// Defaults for the weather-market query parameters.
const (
	DefaultMarketCities = "New Delhi"
	DefaultMarketCrops  = "rice,wheat"
)

type MarketRequest struct {
	Cities []string
	Crops  []string
}

type CityWeather struct {
	City        string `json:"city"`
	Temperature string `json:"temperature"`
	Condition   string `json:"condition"`
	Humidity    string `json:"humidity"`
}

type MarketPrice struct {
	Crop            string `json:"crop"`
	PricePerQuintal string `json:"price_per_quintal"`
	Market          string `json:"market"`
}

type MarketData struct {
	Weather      []CityWeather `json:"weather"`
	MarketPrices []MarketPrice `json:"market_prices"`
}

type MarketResponse struct {
	Success bool        `json:"success"`
	Data    *MarketData `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

var marketSchema = schema.Schema[MarketData]{
	Name: "AgricultureData",
	Fields: []schema.Field{
		schema.Optional(schema.Objects("weather", "Weather report per city",
			schema.Str("city", "City name"),
			schema.Str("temperature", "Current temperature"),
			schema.Str("condition", "Sky condition"),
			schema.Str("humidity", "Relative humidity"),
		)),
		schema.Optional(schema.Objects("market_prices", "Market price per crop",
			schema.Str("crop", "Crop name"),
			schema.Str("price_per_quintal", "Price per quintal in INR"),
			schema.Str("market", "Market or mandi name"),
		)),
	},
	Decode: func(o *schema.Object) MarketData {
		out := MarketData{Weather: []CityWeather{}, MarketPrices: []MarketPrice{}}
		for _, w := range o.Objects("weather") {
			out.Weather = append(out.Weather, CityWeather{
				City:        w.String("city"),
				Temperature: w.String("temperature"),
				Condition:   w.String("condition"),
				Humidity:    w.String("humidity"),
			})
		}
		for _, p := range o.Objects("market_prices") {
			out.MarketPrices = append(out.MarketPrices, MarketPrice{
				Crop:            p.String("crop"),
				PricePerQuintal: p.String("price_per_quintal"),
				Market:          p.String("market"),
			})
		}
		return out
	},
}

var marketPrompt = prompt.Template{
	System: "You are an assistant that gives Indian farmers real-time weather info and market prices.",
	User:   "Give structured weather reports for {{.cities}} and market prices for {{.crops}} in India. Format output as per schema: {{.format_instructions}}",
}

// SplitList splits a comma-separated parameter, dropping blank items.
func SplitList(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// WeatherMarket asks the search-enabled model for city weather and crop
// prices. It has no required input.
func (e *Engine) WeatherMarket(ctx context.Context, req MarketRequest) (*MarketData, error) {
	r := e.begin(ctx, "weather_market")
	cities, crops := req.Cities, req.Crops
	if len(cities) == 0 {
		cities = SplitList(DefaultMarketCities)
	}
	if len(crops) == 0 {
		crops = SplitList(DefaultMarketCrops)
	}
	r.enter(StageValidated)
	r.enter(StageEnriched)

	out, err := generate(ctx, e, r, completion{
		Template: marketPrompt,
		Vars: map[string]any{
			"cities": strings.Join(cities, ", "),
			"crops":  strings.Join(crops, ", "),
		},
		Model:       e.Config.LLM.MarketModel,
		Temperature: 0,
	}, marketSchema)
	if err != nil {
		return nil, err
	}

	r.done()
	return &out, nil
}
