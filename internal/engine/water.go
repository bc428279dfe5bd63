package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/agri-assist/backend/internal/enrich"
	"github.com/agri-assist/backend/internal/prompt"
	"github.com/agri-assist/backend/internal/schema"
)

type WaterRequest struct {
	Latitude         *Number `json:"latitude"`
	Longitude        *Number `json:"longitude"`
	Crop             string  `json:"crop"`
	SoilType         string  `json:"soil_type"`
	FieldSizeAcres   *Number `json:"field_size_acres"`
	IrrigationMethod string  `json:"irrigation_method"`
	Lang             string  `json:"lang"`
}

type IrrigationEvent struct {
	Date            string `json:"date"`
	WaterMM         int    `json:"water_mm"`
	Method          string `json:"method"`
	DurationMinutes int    `json:"duration_minutes"`
}

type WaterSavingTip struct {
	Tip     string `json:"tip"`
	Benefit string `json:"benefit"`
}

type WaterPlan struct {
	Crop               string            `json:"crop"`
	SoilType           string            `json:"soil_type"`
	FieldSizeAcres     float64           `json:"field_size_acres"`
	IrrigationSchedule []IrrigationEvent `json:"irrigation_schedule"`
	TotalWaterMM       int               `json:"total_water_mm"`
	TotalWaterLiters   int               `json:"total_water_liters"`
	WaterSavingTips    []WaterSavingTip  `json:"water_saving_tips"`
	Explanation        string            `json:"explanation"`
}

var waterPlanSchema = schema.Schema[WaterPlan]{
	Name: "WaterManagementPlan",
	Fields: []schema.Field{
		schema.Str("crop", "Crop type (e.g., wheat)"),
		schema.Str("soil_type", "Soil type (e.g., loamy)"),
		schema.Float("field_size_acres", "Field size in acres"),
		schema.Objects("irrigation_schedule", "List of irrigation events for the next 7 days",
			schema.Str("date", "Date of irrigation (YYYY-MM-DD)"),
			schema.Int("water_mm", "Water to apply in millimeters"),
			schema.Str("method", "Recommended irrigation method (e.g., drip, flood)"),
			schema.Int("duration_minutes", "Duration of irrigation in minutes"),
		),
		schema.Int("total_water_mm", "Total water needed for the week in millimeters"),
		schema.Int("total_water_liters", "Total water needed in liters for the field"),
		schema.Objects("water_saving_tips", "List of water-saving techniques",
			schema.Str("tip", "Water-saving technique (e.g., mulching)"),
			schema.Str("benefit", "Benefit of the tip (e.g., Saves 20% water)"),
		),
		schema.Str("explanation", "Farmer-friendly explanation of the plan"),
	},
	Decode: func(o *schema.Object) WaterPlan {
		out := WaterPlan{
			Crop:               o.String("crop"),
			SoilType:           o.String("soil_type"),
			FieldSizeAcres:     o.Float("field_size_acres"),
			IrrigationSchedule: []IrrigationEvent{},
			TotalWaterMM:       o.Int("total_water_mm"),
			TotalWaterLiters:   o.Int("total_water_liters"),
			WaterSavingTips:    []WaterSavingTip{},
			Explanation:        o.String("explanation"),
		}
		for _, ev := range o.Objects("irrigation_schedule") {
			out.IrrigationSchedule = append(out.IrrigationSchedule, IrrigationEvent{
				Date:            ev.String("date"),
				WaterMM:         ev.Int("water_mm"),
				Method:          ev.String("method"),
				DurationMinutes: ev.Int("duration_minutes"),
			})
		}
		for _, t := range o.Objects("water_saving_tips") {
			out.WaterSavingTips = append(out.WaterSavingTips, WaterSavingTip{
				Tip:     t.String("tip"),
				Benefit: t.String("benefit"),
			})
		}
		return out
	},
}

var waterPrompt = prompt.Template{
	System: "Please reply in {{.lang}} language only. \n" +
		"You are an agricultural water management expert. Given the crop, soil type, field size, irrigation method, " +
		"weather, and location, provide a 7-day irrigation schedule and water-saving tips.\n" +
		"For each irrigation event, include:\n" +
		"- date (YYYY-MM-DD)\n" +
		"- water_mm (int, millimeters to apply)\n" +
		"- method (e.g., drip, flood)\n" +
		"- duration_minutes (int, irrigation time)\n" +
		"Also include:\n" +
		"- total_water_mm (int, total for the week)\n" +
		"- total_water_liters (int, total for the field, 1 mm = 10,000 liters/acre)\n" +
		"- water_saving_tips (list of tips with benefits)\n" +
		"- explanation (farmer-friendly summary)\n" +
		"Use crop water needs (e.g., wheat: 450 mm/season, rice: 1200 mm/season) and soil properties " +
		"(e.g., loamy: 100 mm/m water-holding capacity) to estimate needs. Adjust for weather (precipitation, evapotranspiration).\n" +
		"Respond only in JSON format according to the schema: {{.format_instructions}}",
	User: "Crop: {{.crop}}\n" +
		"Soil Type: {{.soil_type}}\n" +
		"Field Size: {{.field_size_acres}} acres\n" +
		"Irrigation Method: {{.irrigation_method}}\n" +
		"Weather: {{.weather}}\n" +
		"Suggest a 7-day irrigation schedule, total water needs, and 2-3 water-saving tips.",
}

// PlanIrrigation builds a 7-day irrigation schedule from the
// evapotranspiration forecast.
func (e *Engine) PlanIrrigation(ctx context.Context, req WaterRequest) (*WaterPlan, error) {
	r := e.begin(ctx, "water_management")
	if req.Latitude == nil || req.Longitude == nil || strings.TrimSpace(req.Crop) == "" || req.FieldSizeAcres == nil {
		return nil, r.fail(invalid("Missing latitude, longitude, crop, or field_size_acres."))
	}
	r.enter(StageValidated)

	forecast := e.Weather.Forecast(ctx, req.Latitude.Float(), req.Longitude.Float(), enrich.ForecastOptions{Irrigation: true})
	r.enter(StageEnriched)

	out, err := generate(ctx, e, r, completion{
		Template: waterPrompt,
		Vars: map[string]any{
			"lang":              orDefault(req.Lang, "English"),
			"crop":              req.Crop,
			"soil_type":         orDefault(req.SoilType, "unknown"),
			"field_size_acres":  strconv.FormatFloat(req.FieldSizeAcres.Float(), 'f', -1, 64),
			"irrigation_method": orDefault(req.IrrigationMethod, "flood"),
			"weather":           jsonText(forecast),
		},
		Temperature: 0.5,
	}, waterPlanSchema)
	if err != nil {
		return nil, err
	}

	r.done()
	return &out, nil
}
