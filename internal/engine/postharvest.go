package engine

import (
	"context"
	"strings"

	"github.com/agri-assist/backend/internal/enrich"
	"github.com/agri-assist/backend/internal/prompt"
	"github.com/agri-assist/backend/internal/schema"
)

type PostHarvestRequest struct {
	Crop        string  `json:"crop"`
	HarvestDate string  `json:"harvest_date"`
	Region      string  `json:"region"`
	Latitude    *Number `json:"latitude"`
	Longitude   *Number `json:"longitude"`
	Lang        string  `json:"lang"`
}

type PlanItem struct {
	Action   string `json:"action"`
	Date     string `json:"date"`
	Duration string `json:"duration"`
}

type PostHarvestWeather struct {
	Dates         []string  `json:"dates"`
	TempMax       []float64 `json:"temp_max"`
	TempMin       []float64 `json:"temp_min"`
	HumidityMax   []float64 `json:"humidity_max"`
	HumidityMin   []float64 `json:"humidity_min"`
	Precipitation []float64 `json:"precipitation"`
	WindSpeedMax  []float64 `json:"wind_speed_max"`
}

type PostHarvestPlan struct {
	BeginningText  string             `json:"beginning_text"`
	Weather        PostHarvestWeather `json:"weather"`
	Plan           []PlanItem         `json:"plan"`
	ConclusionText string             `json:"conclusion_text"`
}

var postHarvestSchema = schema.Schema[PostHarvestPlan]{
	Name: "PostHarvestResponse",
	Fields: []schema.Field{
		schema.Str("beginning_text", "Introduction to the plan"),
		schema.Obj("weather", "The 7-day forecast the plan is based on",
			schema.Strs("dates", "Forecast dates"),
			schema.Floats("temp_max", "Daily maximum temperature"),
			schema.Floats("temp_min", "Daily minimum temperature"),
			schema.Floats("humidity_max", "Daily maximum humidity"),
			schema.Floats("humidity_min", "Daily minimum humidity"),
			schema.Floats("precipitation", "Daily precipitation"),
			schema.Floats("wind_speed_max", "Daily maximum wind speed"),
		),
		schema.Objects("plan", "Post-harvest activities",
			schema.Str("action", "The post-harvest activity to perform"),
			schema.Str("date", "The scheduled date for the activity (YYYY-MM-DD)"),
			schema.Str("duration", "Estimated duration, e.g., '2 days', '3 hours'"),
		),
		schema.Str("conclusion_text", "Closing remarks"),
	},
	Decode: func(o *schema.Object) PostHarvestPlan {
		w := o.Object("weather")
		out := PostHarvestPlan{
			BeginningText: o.String("beginning_text"),
			Weather: PostHarvestWeather{
				Dates:         w.Strings("dates"),
				TempMax:       w.Floats("temp_max"),
				TempMin:       w.Floats("temp_min"),
				HumidityMax:   w.Floats("humidity_max"),
				HumidityMin:   w.Floats("humidity_min"),
				Precipitation: w.Floats("precipitation"),
				WindSpeedMax:  w.Floats("wind_speed_max"),
			},
			Plan:           []PlanItem{},
			ConclusionText: o.String("conclusion_text"),
		}
		for _, p := range o.Objects("plan") {
			out.Plan = append(out.Plan, PlanItem{
				Action:   p.String("action"),
				Date:     p.String("date"),
				Duration: p.String("duration"),
			})
		}
		return out
	},
}

var postHarvestPrompt = prompt.Template{
	System: "You are an agricultural expert specializing in post-harvest handling. " +
		"Respond in {{.lang}} language for all textual content (beginning_text, plan actions, duration, and conclusion_text). " +
		"Given the crop, harvest date, region, and 7-day weather forecast, provide practical and region-specific post-harvest instructions. " +
		"Consider how temperature, humidity, precipitation, and windspeed affect drying, grading, storage, packaging, and transport decisions. " +
		"Respond strictly in JSON format following the schema: {{.format_instructions}}",
	User: "Crop: {{.crop}}\n" +
		"Harvest Date: {{.harvest_date}}\n" +
		"Region: {{.region}}\n" +
		"Weather Forecast: {{.weather}}\n" +
		"Provide beginning_text, weather, a list of plan items (action, date, duration), and conclusion_text.",
}

// PlanPostHarvest schedules drying, storage and transport after harvest
// against the coming week's weather.
func (e *Engine) PlanPostHarvest(ctx context.Context, req PostHarvestRequest) (*PostHarvestPlan, error) {
	r := e.begin(ctx, "postharvest")
	if strings.TrimSpace(req.Crop) == "" || strings.TrimSpace(req.HarvestDate) == "" {
		return nil, r.fail(invalid("Missing 'crop' or 'harvest_date' in request."))
	}
	if req.Latitude == nil || req.Longitude == nil {
		return nil, r.fail(invalid("Missing 'latitude' or 'longitude' in request for weather data."))
	}
	r.enter(StageValidated)

	forecast := e.Weather.Forecast(ctx, req.Latitude.Float(), req.Longitude.Float(), enrich.ForecastOptions{})
	r.enter(StageEnriched)

	out, err := generate(ctx, e, r, completion{
		Template: postHarvestPrompt,
		Vars: map[string]any{
			"lang":         orDefault(req.Lang, "English"),
			"crop":         req.Crop,
			"harvest_date": req.HarvestDate,
			"region":       orDefault(req.Region, "India"),
			"weather":      jsonText(forecast),
		},
		Temperature: 0.5,
	}, postHarvestSchema)
	if err != nil {
		return nil, err
	}

	r.done()
	return &out, nil
}
