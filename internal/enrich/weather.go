package enrich

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Default current-weather values used when open-meteo omits a field or fails.
const (
	DefaultTemperature   = 30.0
	DefaultHumidity      = 50.0
	DefaultPrecipitation = 0.0
	DefaultWindspeed     = 10.0
)

// Weather is a current-conditions sample.
type Weather struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	Precipitation float64 `json:"precipitation"`
	Windspeed     float64 `json:"windspeed"`
}

// DefaultWeather returns the sample used when the weather API is unavailable.
func DefaultWeather() Weather {
	return Weather{
		Temperature:   DefaultTemperature,
		Humidity:      DefaultHumidity,
		Precipitation: DefaultPrecipitation,
		Windspeed:     DefaultWindspeed,
	}
}

// Forecast is a 7-day daily forecast. A failed fetch yields the zero value,
// which serializes as an empty object.
type Forecast struct {
	Dates              []string  `json:"dates,omitempty"`
	TempMax            []float64 `json:"temp_max,omitempty"`
	TempMin            []float64 `json:"temp_min,omitempty"`
	HumidityMax        []float64 `json:"humidity_max,omitempty"`
	HumidityMin        []float64 `json:"humidity_min,omitempty"`
	Precipitation      []float64 `json:"precipitation,omitempty"`
	WindSpeedMax       []float64 `json:"wind_speed_max,omitempty"`
	Evapotranspiration []float64 `json:"evapotranspiration,omitempty"`
}

// Empty reports whether the forecast carries no data.
func (f Forecast) Empty() bool {
	return len(f.Dates) == 0
}

// ForecastOptions selects the daily series requested.
type ForecastOptions struct {
	// Irrigation requests evapotranspiration instead of humidity and wind.
	Irrigation bool
	Days       int
}

// WeatherClient reads open-meteo.
type WeatherClient struct {
	baseURL string
	http    *getter
	logger  *logrus.Entry
}

// NewWeatherClient creates a client for the open-meteo API at baseURL.
func NewWeatherClient(baseURL string, timeout time.Duration, userAgent string, logger *logrus.Entry) *WeatherClient {
	g := newGetter(timeout, userAgent, logger)
	return &WeatherClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    g,
		logger:  g.logger.WithField("source", "open-meteo"),
	}
}

// Current returns current conditions, substituting defaults on failure.
func (c *WeatherClient) Current(ctx context.Context, lat, lon float64) Weather {
	w, err := c.CurrentStrict(ctx, lat, lon)
	if err != nil {
		c.logger.WithError(err).Warn("Weather data fetch failed, using defaults")
		return DefaultWeather()
	}
	return w
}

// CurrentStrict is Current without the default substitution on transport
// or decoding errors. Missing fields still take their defaults.
func (c *WeatherClient) CurrentStrict(ctx context.Context, lat, lon float64) (Weather, error) {
	q := url.Values{}
	q.Set("latitude", formatCoord(lat))
	q.Set("longitude", formatCoord(lon))
	q.Set("current_weather", "true")
	q.Set("hourly", "relativehumidity_2m,precipitation")

	body, err := c.http.get(ctx, c.baseURL+"/v1/forecast?"+q.Encode())
	if err != nil {
		return Weather{}, err
	}
	if !gjson.ValidBytes(body) {
		return Weather{}, fmt.Errorf("weather response is not valid JSON")
	}

	data := gjson.ParseBytes(body)
	return Weather{
		Temperature:   floatOr(data.Get("current_weather.temperature"), DefaultTemperature),
		Humidity:      floatOr(data.Get("hourly.relativehumidity_2m.0"), DefaultHumidity),
		Precipitation: floatOr(data.Get("hourly.precipitation.0"), DefaultPrecipitation),
		Windspeed:     floatOr(data.Get("current_weather.windspeed"), DefaultWindspeed),
	}, nil
}

// Forecast returns the daily forecast, or an empty forecast on failure.
func (c *WeatherClient) Forecast(ctx context.Context, lat, lon float64, opts ForecastOptions) Forecast {
	days := opts.Days
	if days <= 0 {
		days = 7
	}
	daily := "temperature_2m_max,temperature_2m_min,precipitation_sum,wind_speed_10m_max," +
		"relative_humidity_2m_max,relative_humidity_2m_min"
	if opts.Irrigation {
		daily = "temperature_2m_max,temperature_2m_min,precipitation_sum,evapotranspiration"
	}

	q := url.Values{}
	q.Set("latitude", formatCoord(lat))
	q.Set("longitude", formatCoord(lon))
	q.Set("daily", daily)
	q.Set("forecast_days", strconv.Itoa(days))
	q.Set("timezone", "auto")

	body, err := c.http.get(ctx, c.baseURL+"/v1/forecast?"+q.Encode())
	if err != nil {
		c.logger.WithError(err).Warn("Weather forecast fetch failed")
		return Forecast{}
	}
	if !gjson.ValidBytes(body) {
		c.logger.Warn("Weather forecast response is not valid JSON")
		return Forecast{}
	}

	d := gjson.GetBytes(body, "daily")
	f := Forecast{
		Dates:         stringSeries(d.Get("time")),
		TempMax:       floatSeries(d.Get("temperature_2m_max")),
		TempMin:       floatSeries(d.Get("temperature_2m_min")),
		Precipitation: floatSeries(d.Get("precipitation_sum")),
	}
	if opts.Irrigation {
		f.Evapotranspiration = floatSeries(d.Get("evapotranspiration"))
	} else {
		f.HumidityMax = floatSeries(d.Get("relative_humidity_2m_max"))
		f.HumidityMin = floatSeries(d.Get("relative_humidity_2m_min"))
		f.WindSpeedMax = floatSeries(d.Get("wind_speed_10m_max"))
	}
	return f
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func floatOr(r gjson.Result, def float64) float64 {
	if r.Type != gjson.Number {
		return def
	}
	return r.Float()
}

func floatSeries(r gjson.Result) []float64 {
	if !r.IsArray() {
		return nil
	}
	items := r.Array()
	out := make([]float64, len(items))
	for i, item := range items {
		out[i] = item.Float()
	}
	return out
}

func stringSeries(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	items := r.Array()
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.String()
	}
	return out
}
