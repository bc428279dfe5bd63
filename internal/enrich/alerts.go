package enrich

// Alert thresholds for current conditions.
const (
	HeatAlertCelsius = 40.0
	ColdAlertCelsius = 5.0
	WindAlertKmh     = 50.0
)

// Alerts classifies current conditions. Exactly one alert is returned;
// heat takes precedence over cold, cold over wind.
func Alerts(w Weather) []string {
	switch {
	case w.Temperature >= HeatAlertCelsius:
		return []string{"Heatwave Alert: High temperature"}
	case w.Temperature <= ColdAlertCelsius:
		return []string{"Cold Alert: Low temperature"}
	case w.Windspeed >= WindAlertKmh:
		return []string{"Wind Alert: High wind speed"}
	default:
		return []string{"Normal Weather: Conditions are normal"}
	}
}
