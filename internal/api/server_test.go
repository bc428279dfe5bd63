package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/agri-assist/backend/internal/api"
	"github.com/agri-assist/backend/internal/config"
	"github.com/agri-assist/backend/internal/engine"
	"github.com/agri-assist/backend/internal/enrich"
	"github.com/agri-assist/backend/internal/index"
	"github.com/agri-assist/backend/internal/provider"
)

// MockLLMProvider is a mock implementation of provider.LLMProvider
type MockLLMProvider struct {
	mock.Mock
}

func (m *MockLLMProvider) Complete(ctx context.Context, req provider.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMProvider) Name() string {
	return "mock"
}

type stubWeather struct {
	current enrich.Weather
	err     error
}

func (s *stubWeather) Current(context.Context, float64, float64) enrich.Weather {
	return s.current
}

func (s *stubWeather) CurrentStrict(context.Context, float64, float64) (enrich.Weather, error) {
	return s.current, s.err
}

func (s *stubWeather) Forecast(context.Context, float64, float64, enrich.ForecastOptions) enrich.Forecast {
	return enrich.Forecast{Dates: []string{"2025-07-15"}, TempMax: []float64{34}, TempMin: []float64{26}}
}

type stubSoil struct{}

func (stubSoil) Fetch(context.Context, float64, float64) enrich.Soil {
	return enrich.DefaultSoil()
}

type testServer struct {
	handler http.Handler
	llm     *MockLLMProvider
	weather *stubWeather
}

func setupServer(t *testing.T, verbose bool) *testServer {
	t.Helper()
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	logger := logrus.NewEntry(l)

	store, err := index.NewChromemStore("", "agri_collection", index.NewHashEmbedder(64), logger)
	require.NoError(t, err)
	require.NoError(t, store.AddChunks(context.Background(), []index.Chunk{
		{Text: "Neem oil deters aphids on cotton.", Source: "pests.pdf"},
		{Text: "PM-KISAN pays eligible farmers six thousand rupees a year.", Source: "schemes.pdf"},
	}))

	cfg := &config.Config{
		Server: config.ServerConfig{MaxUploadBytes: 1 << 20, VerboseErrors: verbose},
		LLM:    config.LLMConfig{Model: "text-model", VisionModel: "vision-model", MarketModel: "market-model"},
		Index:  config.IndexConfig{TopK: 2},
	}
	ts := &testServer{
		llm:     &MockLLMProvider{},
		weather: &stubWeather{current: enrich.Weather{Temperature: 31, Humidity: 60, Windspeed: 12}},
	}
	eng, err := engine.NewEngine(cfg, logger, store, ts.llm, ts.weather, stubSoil{})
	require.NoError(t, err)
	eng.Now = func() time.Time { return time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC) }

	ts.handler = api.NewServer(eng, cfg.Server, logger).Handler()
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) post(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return ts.do(req)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		part, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestHealthz(t *testing.T) {
	ts := setupServer(t, false)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	ts := setupServer(t, false)
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/advisory/ask"},
		{http.MethodGet, "/crop_calendar"},
		{http.MethodGet, "/crop_suggestion"},
		{http.MethodGet, "/api/fertilizer_recommendation"},
		{http.MethodGet, "/govscheme"},
		{http.MethodPost, "/api/weather-market"},
		{http.MethodGet, "/plant-disease"},
		{http.MethodGet, "/postharvest"},
		{http.MethodGet, "/translate"},
		{http.MethodGet, "/water_management"},
		{http.MethodPost, "/forecast"},
		{http.MethodDelete, "/healthz"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := ts.do(httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
			assert.Equal(t, "Method not allowed", decode(t, w)["error"])
		})
	}
	ts.llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestCORSAndPreflight(t *testing.T) {
	ts := setupServer(t, false)

	w := ts.do(httptest.NewRequest(http.MethodOptions, "/advisory/ask", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type,Authorization", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "GET,PUT,POST,DELETE,OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))

	w = ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	assert.Equal(t, "abc-123", ts.do(req).Header().Get("X-Request-ID"))
}

func TestValidationErrorsAreBadRequest(t *testing.T) {
	ts := setupServer(t, false)
	tests := []struct {
		path string
		body string
		want string
	}{
		{"/advisory/ask", `{}`, "Missing 'topic' in request body"},
		{"/crop_calendar", `{"crop":"wheat"}`, "Missing crop, region or coordinates"},
		{"/crop_suggestion", `{"latitude":28.6,"longitude":77.2}`, "Missing latitude, longitude or land_acres."},
		{"/api/fertilizer_recommendation", `{"crop":"rice"}`, "Missing required fields: crop, lat, lon"},
		{"/govscheme", `{"query":""}`, "Query not provided"},
		{"/postharvest", `{"crop":"onion"}`, "Missing 'crop' or 'harvest_date' in request."},
		{"/water_management", `{"latitude":1,"longitude":2}`, "Missing latitude, longitude, crop, or field_size_acres."},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := ts.post(tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decode(t, w)["error"])
		})
	}
	ts.llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestInvalidJSONBody(t *testing.T) {
	ts := setupServer(t, false)

	for _, body := range []string{``, `{not json`, `{"latitude":true,"longitude":1,"land_acres":2}`} {
		w := ts.post("/crop_suggestion", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "Invalid JSON body", decode(t, w)["error"])
	}
	ts.llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestBodyTooLarge(t *testing.T) {
	ts := setupServer(t, false)

	big := `{"topic":"` + strings.Repeat("a", 2<<20) + `"}`
	w := ts.post("/advisory/ask", big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCropSuggestionCoercesNumbers(t *testing.T) {
	ts := setupServer(t, false)
	ts.llm.On("Complete", mock.Anything, mock.Anything).Return(
		"```json\n{\"season\":\"Kharif\",\"region\":\"India\",\"recommendations\":[{\"crop\":\"Rice\",\"expected_yield_per_acre_kg\":\"1800\",\"risk_percent\":20,\"estimated_total_yield_kg\":3600}],\"reason\":\"Monsoon rains\"}\n```", nil)

	w := ts.post("/crop_suggestion", `{"latitude":"28.6","longitude":77.2,"land_acres":"2"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"season":"Kharif",
		"region":"India",
		"recommendations":[{"crop":"Rice","expected_yield_per_acre_kg":1800,"risk_percent":20,"estimated_total_yield_kg":3600}],
		"reason":"Monsoon rains"
	}`, w.Body.String())
}

func TestMalformedModelOutput(t *testing.T) {
	body := `{"latitude":28.6,"longitude":77.2,"land_acres":2}`

	t.Run("redacted", func(t *testing.T) {
		ts := setupServer(t, false)
		ts.llm.On("Complete", mock.Anything, mock.Anything).Return("Sure! Here are some crops.", nil)

		w := ts.post("/crop_suggestion", body)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "The language model returned an unexpected response. Please try again.", decode(t, w)["error"])
	})

	t.Run("verbose", func(t *testing.T) {
		ts := setupServer(t, true)
		ts.llm.On("Complete", mock.Anything, mock.Anything).Return(`{"season":"Kharif"}`, nil)

		w := ts.post("/crop_suggestion", body)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, decode(t, w)["error"], "CropRecommendation")
	})
}

func TestCompletionFailure(t *testing.T) {
	ts := setupServer(t, false)
	ts.llm.On("Complete", mock.Anything, mock.Anything).
		Return("", &provider.CompletionError{Provider: "mock", Err: errors.New("connection refused")})

	w := ts.post("/advisory/ask", `{"topic":"pest attack on cotton"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	msg := decode(t, w)["error"].(string)
	assert.Equal(t, "Error communicating with the language model. Please try again later.", msg)
	assert.NotContains(t, msg, "connection refused")
}

func TestAdvisoryIsIdempotent(t *testing.T) {
	ts := setupServer(t, false)
	ts.llm.On("Complete", mock.Anything, mock.Anything).Return("  Spray neem oil weekly.  ", nil)

	first := ts.post("/advisory/ask", `{"topic":"pest attack on cotton"}`)
	second := ts.post("/advisory/ask", `{"topic":"pest attack on cotton"}`)

	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Equal(t, "Spray neem oil weekly.", decode(t, first)["result"])
	assert.NotEmpty(t, decode(t, first)["selected_category"])
}

func TestPlantDisease(t *testing.T) {
	t.Run("missing image", func(t *testing.T) {
		ts := setupServer(t, false)
		body, ctype := multipartBody(t, map[string]string{"lang": "Hindi"}, "", "", nil)
		req := httptest.NewRequest(http.MethodPost, "/plant-disease", body)
		req.Header.Set("Content-Type", ctype)

		w := ts.do(req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "No image file provided.", decode(t, w)["error"])
	})

	t.Run("not multipart", func(t *testing.T) {
		ts := setupServer(t, false)

		w := ts.post("/plant-disease", `{}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "No image file provided.", decode(t, w)["error"])
	})

	t.Run("healthy plant", func(t *testing.T) {
		ts := setupServer(t, false)
		ts.llm.On("Complete", mock.Anything, mock.Anything).Return(`{
			"plant":"Tomato","leaf_health":"healthy","plant_health":"healthy",
			"disease":"None","type_of_disease":"none","disease_symptoms":[],
			"treatment_required":false}`, nil)
		body, ctype := multipartBody(t, map[string]string{"lang": "English"}, "image", "leaf.png", pngHeader)
		req := httptest.NewRequest(http.MethodPost, "/plant-disease", body)
		req.Header.Set("Content-Type", ctype)

		w := ts.do(req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		out := decode(t, w)
		assert.Equal(t, "Tomato", out["plant"])
		assert.Equal(t, false, out["treatment_required"])
		assert.NotContains(t, out, "treatment_procedure")

		ts.llm.AssertNumberOfCalls(t, "Complete", 1)
		sent := ts.llm.Calls[0].Arguments.Get(1).(provider.Request)
		require.NotNil(t, sent.Image)
		assert.Equal(t, "image/png", sent.Image.MIMEType)
		assert.Equal(t, pngHeader, sent.Image.Data)
		assert.Equal(t, "vision-model", sent.Model)
	})
}

func TestTranslate(t *testing.T) {
	ts := setupServer(t, false)

	body, ctype := multipartBody(t, map[string]string{"target_language": "Tamil"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/translate", body)
	req.Header.Set("Content-Type", ctype)
	w := ts.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No PDF file provided.", decode(t, w)["error"])

	body, ctype = multipartBody(t, map[string]string{"target_language": "Tamil"}, "file", "doc.pdf", []byte("not really a pdf"))
	req = httptest.NewRequest(http.MethodPost, "/translate", body)
	req.Header.Set("Content-Type", ctype)
	w = ts.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "PDF appears empty or unreadable.", decode(t, w)["error"])

	ts.llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestWeatherMarket(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ts := setupServer(t, false)
		ts.llm.On("Complete", mock.Anything, mock.Anything).Return(`{
			"weather":[{"city":"Pune","temperature":"29°C","condition":"Cloudy","humidity":"70%"}],
			"market_prices":[{"crop":"onion","price_per_quintal":"₹1800","market":"Lasalgaon"}]}`, nil)

		w := ts.do(httptest.NewRequest(http.MethodGet, "/api/weather-market?cities=Pune&crops=onion", nil))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		out := decode(t, w)
		assert.Equal(t, true, out["success"])
		assert.NotContains(t, out, "error")
		data := out["data"].(map[string]any)
		assert.Len(t, data["weather"], 1)
		assert.Len(t, data["market_prices"], 1)

		sent := ts.llm.Calls[0].Arguments.Get(1).(provider.Request)
		assert.Equal(t, "market-model", sent.Model)
		assert.Contains(t, sent.User+sent.System, "Pune")
	})

	t.Run("failure", func(t *testing.T) {
		ts := setupServer(t, false)
		ts.llm.On("Complete", mock.Anything, mock.Anything).Return("no json here", nil)

		w := ts.do(httptest.NewRequest(http.MethodGet, "/api/weather-market", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		out := decode(t, w)
		assert.Equal(t, false, out["success"])
		assert.NotEmpty(t, out["error"])
		assert.NotContains(t, out, "data")
	})
}

func TestForecast(t *testing.T) {
	ts := setupServer(t, false)
	ts.weather.current = enrich.Weather{Temperature: 42, Humidity: 20, Windspeed: 5}

	w := ts.do(httptest.NewRequest(http.MethodGet, "/forecast?latitude=26.9&longitude=75.8", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"latitude":26.9,"longitude":75.8,
		"current_weather":{"temperature":42,"humidity":20,"precipitation":0,"windspeed":5},
		"alerts":["Heatwave Alert: High temperature"]
	}`, w.Body.String())

	w = ts.do(httptest.NewRequest(http.MethodGet, "/forecast?latitude=abc&longitude=75.8", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid latitude or longitude", decode(t, w)["error"])

	w = ts.do(httptest.NewRequest(http.MethodGet, "/forecast?latitude=26.9", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Latitude and longitude are required", decode(t, w)["error"])

	ts.weather.err = errors.New("upstream down")
	w = ts.do(httptest.NewRequest(http.MethodGet, "/forecast?latitude=0&longitude=0", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "An unexpected error occurred. Please try again.", decode(t, w)["error"])
}

func TestNonFiniteNumbersAreRejected(t *testing.T) {
	ts := setupServer(t, false)

	w := ts.post("/api/fertilizer_recommendation", `{"crop":"rice","lat":"NaN","lon":77.2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON body", decode(t, w)["error"])

	w = ts.post("/water_management", `{"latitude":1,"longitude":2,"crop":"wheat","field_size_acres":"+Inf"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/forecast?latitude=NaN&longitude=75.8", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid latitude or longitude", decode(t, w)["error"])

	ts.llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestNonFiniteModelOutputIsServerError(t *testing.T) {
	ts := setupServer(t, false)
	ts.llm.On("Complete", mock.Anything, mock.Anything).Return(`{
		"crop":"wheat","soil_type":"loamy","field_size_acres":"NaN",
		"irrigation_schedule":[],"total_water_mm":0,"total_water_liters":0,
		"water_saving_tips":[],"explanation":"none"}`, nil)

	w := ts.post("/water_management", `{"latitude":1,"longitude":2,"crop":"wheat","field_size_acres":2}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "The language model returned an unexpected response. Please try again.", decode(t, w)["error"])
}

func TestTrailingDataAfterBody(t *testing.T) {
	ts := setupServer(t, false)

	for _, body := range []string{
		`{"topic":"x"} trailing-garbage`,
		`{"topic":"x"}{"topic":"y"}`,
	} {
		w := ts.post("/advisory/ask", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "Invalid JSON body", decode(t, w)["error"])
	}
	ts.llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)

	ts.llm.On("Complete", mock.Anything, mock.Anything).Return("Use neem oil.", nil)
	w := ts.post("/advisory/ask", "{\"topic\":\"pest attack on cotton\"}\n  \n")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestJSONResponseEncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()

	api.JSONResponse(w, http.StatusOK, map[string]float64{"acres": math.NaN()})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Failed to encode response"}`, w.Body.String())
}
