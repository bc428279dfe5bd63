package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/agri-assist/backend/internal/enrich"
	"github.com/agri-assist/backend/internal/prompt"
	"github.com/agri-assist/backend/internal/schema"
)

// Season returns the Indian cropping season for t.
func Season(t time.Time) string {
	switch m := t.Month(); {
	case m >= time.June && m <= time.September:
		return "Kharif"
	case m >= time.October || m <= time.February:
		return "Rabi"
	default:
		return "Zaid"
	}
}

type CropSuggestionRequest struct {
	Latitude  *Number `json:"latitude"`
	Longitude *Number `json:"longitude"`
	Lang      string  `json:"lang"`
	Region    string  `json:"region"`
	LandAcres *Number `json:"land_acres"`
}

type CropDetail struct {
	Crop                  string `json:"crop"`
	ExpectedYieldPerAcre  int    `json:"expected_yield_per_acre_kg"`
	RiskPercent           int    `json:"risk_percent"`
	EstimatedTotalYieldKg int    `json:"estimated_total_yield_kg"`
}

type CropRecommendation struct {
	Season          string       `json:"season"`
	Region          string       `json:"region"`
	Recommendations []CropDetail `json:"recommendations"`
	Reason          string       `json:"reason"`
}

var cropRecommendationSchema = schema.Schema[CropRecommendation]{
	Name: "CropRecommendation",
	Fields: []schema.Field{
		schema.Str("season", "Cropping season"),
		schema.Str("region", "Region the advice applies to"),
		schema.Objects("recommendations", "Suitable crops",
			schema.Str("crop", "Crop name"),
			schema.Int("expected_yield_per_acre_kg", "Expected yield per acre in kg"),
			schema.Int("risk_percent", "Risk from 0 to 100"),
			schema.Int("estimated_total_yield_kg", "Yield per acre multiplied by land acres"),
		),
		schema.Str("reason", "Why these crops suit the conditions"),
	},
	Decode: func(o *schema.Object) CropRecommendation {
		out := CropRecommendation{
			Season:          o.String("season"),
			Region:          o.String("region"),
			Reason:          o.String("reason"),
			Recommendations: []CropDetail{},
		}
		for _, c := range o.Objects("recommendations") {
			out.Recommendations = append(out.Recommendations, CropDetail{
				Crop:                  c.String("crop"),
				ExpectedYieldPerAcre:  c.Int("expected_yield_per_acre_kg"),
				RiskPercent:           c.Int("risk_percent"),
				EstimatedTotalYieldKg: c.Int("estimated_total_yield_kg"),
			})
		}
		return out
	},
}

var cropSuggestionPrompt = prompt.Template{
	System: "Please reply in {{.lang}} language only. \n" +
		" You are an agricultural expert. Given the region, season, weather, and land size, suggest suitable crops.\n" +
		"For each crop, include:\n" +
		"- expected_yield_per_acre_kg (int)\n" +
		"- risk_percent (0-100, int)\n" +
		"- estimated_total_yield_kg = yield_per_acre × land_acres\n" +
		"Respond only in JSON format according to the schema: {{.format_instructions}}",
	User: "Region: {{.region}}\n" +
		"Season: {{.season}}\n" +
		"Weather: {{.weather}}\n" +
		"Land Area: {{.land_acres}} acres\n" +
		"Suggest 2-4 suitable crops with expected yields and risk factors.",
}

// SuggestCrops recommends crops for the current season and the plot size.
func (e *Engine) SuggestCrops(ctx context.Context, req CropSuggestionRequest) (*CropRecommendation, error) {
	r := e.begin(ctx, "crop_suggestion")
	if req.Latitude == nil || req.Longitude == nil || req.LandAcres == nil {
		return nil, r.fail(invalid("Missing latitude, longitude or land_acres."))
	}
	r.enter(StageValidated)

	forecast := e.Weather.Forecast(ctx, req.Latitude.Float(), req.Longitude.Float(), enrich.ForecastOptions{})
	r.enter(StageEnriched)

	out, err := generate(ctx, e, r, completion{
		Template: cropSuggestionPrompt,
		Vars: map[string]any{
			"lang":       orDefault(req.Lang, "English"),
			"region":     orDefault(req.Region, "India"),
			"season":     Season(e.Now()),
			"weather":    jsonText(forecast),
			"land_acres": strconv.FormatFloat(req.LandAcres.Float(), 'f', -1, 64),
		},
		Temperature: 0.5,
	}, cropRecommendationSchema)
	if err != nil {
		return nil, err
	}

	r.done()
	return &out, nil
}
