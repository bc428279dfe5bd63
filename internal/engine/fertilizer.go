package engine

import (
	"context"
	"strings"
	"time"

	"github.com/agri-assist/backend/internal/enrich"
	"github.com/agri-assist/backend/internal/prompt"
)

const fertilizerSystemPrompt = `You are a world-class agronomist and fertilizer specialist advising farmers on optimal nutrient management.
Given the user's location (city, region, country, latitude/longitude), soil test data, and current weather conditions, produce a tailored fertilizer recommendation plan.

In your response:
1. *Soil Analysis Interpretation*
   - Briefly interpret pH, organic carbon, nitrogen, clay content, and any nutrient imbalances.
2. *Recommended Fertilizer Types & Ratios*
   - Specify the ideal N-P-K ratio(s).
   - Include any secondary (e.g., S, Mg) or micronutrients if warranted.
3. *Application Rates & Units*
   - Give precise application rates (e.g., kg/ha or lbs/acre).
   - Break down per application event if split-dosing is recommended.
4. *Timing & Method*
   - Recommend best timing (pre-plant, basal, top-dress) aligned with local climate and crop phenology.
   - Suggest application methods (broadcast, banding, foliar spray, fertigation).
5. *Local Context & Cost Considerations*
   - Highlight locally available fertilizer brands or formulations.
   - Provide ballpark cost estimates and cost-benefit comparison.
6. *Environmental & Safety Precautions*
   - Warn about leaching/runoff risks in given soil texture and weather.
   - Recommend best management practices to minimize environmental impact.
7. *Additional Soil Amendments*
   - If pH is suboptimal, include liming or acidifying steps.
   - Suggest organic options (compost, green manures) where beneficial.
8. *Expected Outcomes*
   - Estimate yield improvement or crop quality benefits.
9. *Summary Table*
   At the end, include a Markdown table with columns:
   | Component | Recommendation | Rate | Timing/Method | Notes |

Use clear, jargon-free language, and localize units & terminology for Indian farmers.`

var fertilizerPrompt = prompt.Template{
	System: fertilizerSystemPrompt,
	User: `Please answer in {{.lang}} language only.
Provide a fertilizer recommendation for the crop: *{{.crop}}* using the following data:

Location:
Region: {{.region}}, Country: {{.country}}

Soil Data:
- pH: {{.soil_ph}}
- Organic Carbon: {{.soil_organic_carbon}}%
- Nitrogen: {{.soil_nitrogen}}%
- Clay content: {{.soil_clay}}%
- Organic Carbon Stock: {{.soil_organic_carbon_stock}} Mg/ha

Weather Data:
- Temperature: {{.temperature}}°C
- Humidity: {{.humidity}}%
- Precipitation: {{.precipitation}} mm
- Windspeed: {{.windspeed}} km/h

Timestamp: {{.timestamp}}`,
}

// fertilizerCountry is fixed; the service only covers India.
const fertilizerCountry = "India"

type FertilizerRequest struct {
	Crop   string  `json:"crop"`
	Lat    *Number `json:"lat"`
	Lon    *Number `json:"lon"`
	Lang   string  `json:"lang"`
	Region string  `json:"region"`
}

type Location struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Region  string  `json:"region"`
	Country string  `json:"country"`
}

type FertilizerResponse struct {
	Status         string         `json:"status"`
	Crop           string         `json:"crop"`
	Location       Location       `json:"location"`
	SoilData       enrich.Soil    `json:"soil_data"`
	WeatherData    enrich.Weather `json:"weather_data"`
	Recommendation string         `json:"recommendation"`
}

// RecommendFertilizer writes a free-text nutrient plan from soil and weather
// samples for the coordinates.
func (e *Engine) RecommendFertilizer(ctx context.Context, req FertilizerRequest) (*FertilizerResponse, error) {
	r := e.begin(ctx, "fertilizer")
	if strings.TrimSpace(req.Crop) == "" || req.Lat == nil || req.Lon == nil {
		return nil, r.fail(invalid("Missing required fields: crop, lat, lon"))
	}
	r.enter(StageValidated)

	lat, lon := req.Lat.Float(), req.Lon.Float()
	soilF := Async(ctx, infallible(func(ctx context.Context) enrich.Soil {
		return e.Soil.Fetch(ctx, lat, lon)
	}))
	weatherF := Async(ctx, infallible(func(ctx context.Context) enrich.Weather {
		return e.Weather.Current(ctx, lat, lon)
	}))
	soil, err := soilF.Await(ctx)
	if err != nil {
		return nil, r.fail(err)
	}
	weather, err := weatherF.Await(ctx)
	if err != nil {
		return nil, r.fail(err)
	}
	r.enter(StageEnriched)

	location := Location{
		Lat:     lat,
		Lon:     lon,
		Region:  orDefault(req.Region, "Unknown"),
		Country: fertilizerCountry,
	}
	raw, err := e.complete(ctx, r, completion{
		Template: fertilizerPrompt,
		Vars: map[string]any{
			"lang":                      orDefault(req.Lang, "English"),
			"crop":                      req.Crop,
			"region":                    location.Region,
			"country":                   location.Country,
			"soil_ph":                   soil.PH,
			"soil_organic_carbon":       soil.OrganicCarbon,
			"soil_nitrogen":             soil.Nitrogen,
			"soil_clay":                 soil.Clay,
			"soil_organic_carbon_stock": soil.OrganicCarbonStock,
			"temperature":               weather.Temperature,
			"humidity":                  weather.Humidity,
			"precipitation":             weather.Precipitation,
			"windspeed":                 weather.Windspeed,
			"timestamp":                 e.Now().Format(time.RFC3339),
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, err
	}

	r.done()
	return &FertilizerResponse{
		Status:         "success",
		Crop:           req.Crop,
		Location:       location,
		SoilData:       soil,
		WeatherData:    weather,
		Recommendation: strings.TrimSpace(raw),
	}, nil
}
