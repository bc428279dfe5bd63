package enrich

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Soil is a topsoil sample. Units follow the openepi soil property API.
type Soil struct {
	PH                 float64 `json:"soil_ph"`
	OrganicCarbon      float64 `json:"soil_organic_carbon"`
	Nitrogen           float64 `json:"soil_nitrogen"`
	Clay               float64 `json:"soil_clay"`
	OrganicCarbonStock float64 `json:"soil_organic_carbon_stock"`
}

// DefaultSoil returns the sample used when the soil API is unavailable.
func DefaultSoil() Soil {
	return Soil{
		PH:                 6.5,
		OrganicCarbon:      1.2,
		Nitrogen:           0.1,
		Clay:               20.0,
		OrganicCarbonStock: 50.0,
	}
}

// SoilClient reads the openepi soil property API.
type SoilClient struct {
	baseURL string
	http    *getter
	logger  *logrus.Entry
}

// NewSoilClient creates a client for the openepi API at baseURL.
func NewSoilClient(baseURL string, timeout time.Duration, userAgent string, logger *logrus.Entry) *SoilClient {
	g := newGetter(timeout, userAgent, logger)
	return &SoilClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    g,
		logger:  g.logger.WithField("source", "openepi"),
	}
}

// Fetch returns the soil sample at the coordinates. Each property missing
// from the response takes its default; a failed first request yields
// DefaultSoil. The organic carbon stock comes from a second request and
// falls back to its default on its own.
func (c *SoilClient) Fetch(ctx context.Context, lat, lon float64) Soil {
	soil := DefaultSoil()

	q := url.Values{}
	q.Set("lat", formatCoord(lat))
	q.Set("lon", formatCoord(lon))
	q["depths"] = []string{"0-5cm", "0-30cm"}
	q["properties"] = []string{"phh2o", "nitrogen", "soc", "clay"}
	q.Set("values", "mean")

	props, err := c.properties(ctx, q)
	if err != nil {
		c.logger.WithError(err).Warn("Soil data fetch failed, using defaults")
		return DefaultSoil()
	}
	for _, prop := range props {
		mean := prop.Get("depth_0_5.mean")
		switch prop.Get("property").String() {
		case "phh2o":
			soil.PH = floatOr(mean, soil.PH)
		case "nitrogen":
			soil.Nitrogen = floatOr(mean, soil.Nitrogen)
		case "soc":
			soil.OrganicCarbon = floatOr(mean, soil.OrganicCarbon)
		case "clay":
			soil.Clay = floatOr(mean, soil.Clay)
		}
	}

	ocs := url.Values{}
	ocs.Set("lat", formatCoord(lat))
	ocs.Set("lon", formatCoord(lon))
	ocs.Set("depths", "0-30cm")
	ocs.Set("properties", "ocs")
	ocs.Set("values", "mean")

	props, err = c.properties(ctx, ocs)
	if err != nil {
		c.logger.WithError(err).Debug("Organic carbon stock fetch failed")
		return soil
	}
	for _, prop := range props {
		if prop.Get("property").String() == "ocs" {
			soil.OrganicCarbonStock = floatOr(prop.Get("depth_0_30.mean"), soil.OrganicCarbonStock)
		}
	}
	return soil
}

func (c *SoilClient) properties(ctx context.Context, q url.Values) ([]gjson.Result, error) {
	body, err := c.http.get(ctx, c.baseURL+"/soil/property?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("soil response is not valid JSON")
	}
	return gjson.GetBytes(body, "properties").Array(), nil
}
