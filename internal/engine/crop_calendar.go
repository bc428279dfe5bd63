package engine

import (
	"context"
	"strings"

	"github.com/agri-assist/backend/internal/enrich"
	"github.com/agri-assist/backend/internal/prompt"
	"github.com/agri-assist/backend/internal/schema"
)

type CropCalendarRequest struct {
	Crop      string  `json:"crop"`
	Region    string  `json:"region"`
	Latitude  *Number `json:"latitude"`
	Longitude *Number `json:"longitude"`
	Lang      string  `json:"lang"`
}

type CalendarTask struct {
	TaskTitle   string `json:"task_title"`
	Duration    string `json:"duration"`
	Description string `json:"description"`
}

type WeekPlan struct {
	Week  int            `json:"week"`
	Tasks []CalendarTask `json:"tasks"`
}

type CropCalendar struct {
	DurationWeeks  int        `json:"duration_weeks"`
	WeatherSummary string     `json:"weather_summary"`
	Calendar       []WeekPlan `json:"calendar"`
}

var cropCalendarSchema = schema.Schema[CropCalendar]{
	Name: "CropCalendar",
	Fields: []schema.Field{
		schema.Int("duration_weeks", "Total weeks of cultivation"),
		schema.Str("weather_summary", "Brief weather summary"),
		schema.Objects("calendar", "Weekly farming plan",
			schema.Int("week", "Week number"),
			schema.Objects("tasks", "List of tasks for the week",
				schema.Str("task_title", "Title of the farming task"),
				schema.Str("duration", "Time duration (e.g. '3 days')"),
				schema.Str("description", "Detailed description of the task"),
			),
		),
	},
	Decode: func(o *schema.Object) CropCalendar {
		out := CropCalendar{
			DurationWeeks:  o.Int("duration_weeks"),
			WeatherSummary: o.String("weather_summary"),
			Calendar:       []WeekPlan{},
		}
		for _, w := range o.Objects("calendar") {
			plan := WeekPlan{Week: w.Int("week"), Tasks: []CalendarTask{}}
			for _, t := range w.Objects("tasks") {
				plan.Tasks = append(plan.Tasks, CalendarTask{
					TaskTitle:   t.String("task_title"),
					Duration:    t.String("duration"),
					Description: t.String("description"),
				})
			}
			out.Calendar = append(out.Calendar, plan)
		}
		return out
	},
}

var cropCalendarPrompt = prompt.Template{
	System: "You are an expert agricultural officer. Based on the crop, region, and weather data, generate a detailed " +
		"cultivation calendar for the crop over 8-10 weeks. Each week should contain tasks with title, duration, and description. " +
		"Include operations like land preparation, sowing, irrigation, fertilization, pest control, weeding, and harvesting.\n" +
		"Use the following format strictly:\n{{.format_instructions}}",
	User: "Crop: {{.crop}}\n" +
		"Region: {{.region}}\n" +
		"Weather Forecast: {{.weather}}\n" +
		"Please reply in {{.lang}} language only\n" +
		"Now generate the farming calendar.",
}

// CropCalendar plans a crop's cultivation week by week using the 7-day forecast.
func (e *Engine) CropCalendar(ctx context.Context, req CropCalendarRequest) (*CropCalendar, error) {
	r := e.begin(ctx, "crop_calendar")
	if strings.TrimSpace(req.Crop) == "" || strings.TrimSpace(req.Region) == "" || req.Latitude == nil || req.Longitude == nil {
		return nil, r.fail(invalid("Missing crop, region or coordinates"))
	}
	r.enter(StageValidated)

	forecast := e.Weather.Forecast(ctx, req.Latitude.Float(), req.Longitude.Float(), enrich.ForecastOptions{})
	r.enter(StageEnriched)

	out, err := generate(ctx, e, r, completion{
		Template: cropCalendarPrompt,
		Vars: map[string]any{
			"crop":    req.Crop,
			"region":  req.Region,
			"weather": jsonText(forecast),
			"lang":    orDefault(req.Lang, "English"),
		},
		Temperature: 0.4,
	}, cropCalendarSchema)
	if err != nil {
		return nil, err
	}

	r.done()
	return &out, nil
}
