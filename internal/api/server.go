package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/agri-assist/backend/internal/config"
	"github.com/agri-assist/backend/internal/engine"
	"github.com/agri-assist/backend/internal/provider"
	"github.com/agri-assist/backend/internal/schema"
)

type Server struct {
	Engine *engine.Engine
	Logger *logrus.Entry
	Config config.ServerConfig
	Router *http.ServeMux

	httpServer *http.Server
}

func NewServer(eng *engine.Engine, cfg config.ServerConfig, logger *logrus.Entry) *Server {
	s := &Server{
		Engine: eng,
		Logger: logger,
		Config: cfg,
		Router: http.NewServeMux(),
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes() {
	s.Router.HandleFunc("/advisory/ask", handleJSON(s, s.Engine.Advise))
	s.Router.HandleFunc("/crop_calendar", handleJSON(s, s.Engine.CropCalendar))
	s.Router.HandleFunc("/crop_suggestion", handleJSON(s, s.Engine.SuggestCrops))
	s.Router.HandleFunc("/api/fertilizer_recommendation", handleJSON(s, s.Engine.RecommendFertilizer))
	s.Router.HandleFunc("/govscheme", handleJSON(s, s.Engine.ExplainSchemes))
	s.Router.HandleFunc("/postharvest", handleJSON(s, s.Engine.PlanPostHarvest))
	s.Router.HandleFunc("/water_management", handleJSON(s, s.Engine.PlanIrrigation))
	s.Router.HandleFunc("/api/weather-market", s.handleWeatherMarket)
	s.Router.HandleFunc("/plant-disease", s.handlePlantDisease)
	s.Router.HandleFunc("/translate", s.handleTranslate)
	s.Router.HandleFunc("/forecast", s.handleForecast)
	s.Router.HandleFunc("/healthz", s.handleHealth)
}

// Handler returns the router wrapped in the CORS and request logging
// middleware.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(withCORS(s.Router))
}

func (s *Server) Start() error {
	s.Logger.Infof("Starting API Server on %s", s.Config.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Responses
type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// Handlers

// handleJSON serves a POST endpoint whose body decodes into Req.
func handleJSON[Req any, Resp any](s *Server, fn func(context.Context, Req) (*Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}

		var req Req
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.Config.MaxUploadBytes))
		if err := dec.Decode(&req); err != nil {
			s.decodeError(w, err)
			return
		}
		if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
			if err == nil {
				err = errors.New("unexpected data after JSON body")
			}
			s.decodeError(w, err)
			return
		}

		resp, err := fn(r.Context(), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		jsonResponse(w, http.StatusOK, resp)
	}
}

func (s *Server) handleWeatherMarket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	req := engine.MarketRequest{
		Cities: engine.SplitList(q.Get("cities")),
		Crops:  engine.SplitList(q.Get("crops")),
	}
	data, err := s.Engine.WeatherMarket(r.Context(), req)
	if err != nil {
		s.requestLogger(r).WithError(err).Error("Weather market lookup failed")
		jsonResponse(w, http.StatusInternalServerError, engine.MarketResponse{
			Success: false,
			Error:   s.publicMessage(err),
		})
		return
	}
	jsonResponse(w, http.StatusOK, engine.MarketResponse{Success: true, Data: data})
}

func (s *Server) handlePlantDisease(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.parseMultipart(w, r) {
		return
	}

	req := engine.DiseaseRequest{Lang: r.FormValue("lang")}
	data, err := formFile(r, "image")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(data) > 0 {
		req.Image = &provider.Image{MIMEType: http.DetectContentType(data), Data: data}
	}

	resp, err := s.Engine.DiagnosePlant(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.parseMultipart(w, r) {
		return
	}

	data, err := formFile(r, "file")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.Engine.TranslateDocument(r.Context(), engine.TranslateRequest{
		PDF:            data,
		TargetLanguage: r.FormValue("target_language"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	lat, okLat := queryNumber(q.Get("latitude"))
	lon, okLon := queryNumber(q.Get("longitude"))
	if !okLat || !okLon {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid latitude or longitude"})
		return
	}

	resp, err := s.Engine.WeatherAlerts(r.Context(), engine.ForecastRequest{Latitude: lat, Longitude: lon})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	jsonResponse(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// parseMultipart parses an upload form. A body that is not multipart is
// left unparsed so the missing file is reported by the engine.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxUploadBytes)
	err := r.ParseMultipartForm(s.Config.MaxUploadBytes)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil, errors.Is(err, http.ErrNotMultipart):
		return true
	case errors.As(err, &tooLarge):
		jsonResponse(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Request body too large"})
	default:
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid multipart form"})
	}
	return false
}

// formFile reads an uploaded file; a missing field yields nil data.
func formFile(r *http.Request, field string) ([]byte, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func(f multipart.File) { _ = f.Close() }(file)
	return io.ReadAll(file)
}

func queryNumber(raw string) (*engine.Number, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return engine.Num(f), true
}

func (s *Server) decodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		jsonResponse(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Request body too large"})
		return
	}
	msg := "Invalid JSON body"
	if s.Config.VerboseErrors {
		msg += ": " + err.Error()
	}
	jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}

// writeError maps engine errors to responses. Validation errors are 400
// with their message; everything else is 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if engine.IsValidation(err) {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	s.requestLogger(r).WithError(err).Error("Request failed")
	jsonResponse(w, http.StatusInternalServerError, ErrorResponse{Error: s.publicMessage(err)})
}

// publicMessage redacts upstream detail unless verbose errors are enabled.
func (s *Server) publicMessage(err error) string {
	if s.Config.VerboseErrors {
		return err.Error()
	}
	var cerr *provider.CompletionError
	var serr *schema.ValidationError
	switch {
	case errors.As(err, &cerr):
		return "Error communicating with the language model. Please try again later."
	case errors.As(err, &serr):
		return "The language model returned an unexpected response. Please try again."
	default:
		return "An unexpected error occurred. Please try again."
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	jsonResponse(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
}

// encodeFailure is written when a payload cannot be marshaled.
var encodeFailure = []byte(`{"error":"Failed to encode response"}`)

func jsonResponse(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("Failed to encode response")
		code, response = http.StatusInternalServerError, encodeFailure
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
