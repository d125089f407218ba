package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/mwesner/msn-weather-service/internal/client"
	"github.com/mwesner/msn-weather-service/internal/lifecycle"
	"github.com/mwesner/msn-weather-service/internal/models"
	"github.com/mwesner/msn-weather-service/internal/observability"
	"github.com/mwesner/msn-weather-service/internal/search"
	"github.com/mwesner/msn-weather-service/internal/service"
	"github.com/mwesner/msn-weather-service/internal/traffic"
	"github.com/mwesner/msn-weather-service/internal/validation"
)

const serviceName = "msn-weather-service"

// HealthConfig holds the thresholds the health handler evaluates.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	ReadinessTimeout time.Duration
	// CachePing, when set, checks cache backend reachability. Left nil for
	// the in-memory backend.
	CachePing func(ctx context.Context) error
}

// Handler holds dependencies for the HTTP handlers.
type Handler struct {
	weatherService *service.WeatherService
	client         client.Client
	searches       *search.Store
	sessions       sessions.Store
	cookieName     string
	healthConfig   *HealthConfig
	logger         *zap.Logger
	version        string

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	weatherService *service.WeatherService,
	weatherClient client.Client,
	searches *search.Store,
	sessionStore sessions.Store,
	cookieName string,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	version string,
) *Handler {
	if cookieName == "" {
		cookieName = "weather_session"
	}
	return &Handler{
		weatherService: weatherService,
		client:         weatherClient,
		searches:       searches,
		sessions:       sessionStore,
		cookieName:     cookieName,
		healthConfig:   healthConfig,
		logger:         logger,
		version:        version,
	}
}

// Register attaches all routes to the router. weatherMiddleware (rate limit,
// request timeout) applies only to the weather routes; health and history
// endpoints stay unthrottled.
func (h *Handler) Register(r *mux.Router, weatherMiddleware ...mux.MiddlewareFunc) {
	r.HandleFunc("/api/health", h.GetHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/health", h.GetHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/health/live", h.GetLiveness).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/health/ready", h.GetReadiness).Methods(http.MethodGet)

	weather := r.PathPrefix("/api/weather").Subrouter()
	weather.Use(weatherMiddleware...)
	weather.HandleFunc("", h.GetWeather).Methods(http.MethodGet)
	weather.HandleFunc("", h.PostWeather).Methods(http.MethodPost)

	weatherV1 := r.PathPrefix("/api/v1/weather").Subrouter()
	weatherV1.Use(weatherMiddleware...)
	weatherV1.HandleFunc("", h.GetWeather).Methods(http.MethodGet)
	weatherV1.HandleFunc("", h.PostWeather).Methods(http.MethodPost)
	weatherV1.HandleFunc("/coordinates", h.GetWeatherByCoordinates).Methods(http.MethodGet)

	r.HandleFunc("/api/v1/recent-searches", h.GetRecentSearches).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/recent-searches", h.DeleteRecentSearches).Methods(http.MethodDelete)
}

// GetWeather handles GET /api/weather and /api/v1/weather.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	country := r.URL.Query().Get("country")
	h.serveWeather(w, r, city, country)
}

// PostWeather handles POST /api/weather and /api/v1/weather with a JSON body.
func (h *Handler) PostWeather(w http.ResponseWriter, r *http.Request) {
	var body struct {
		City    string `json:"city"`
		Country string `json:"country"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON with 'city' and 'country'")
		return
	}
	h.serveWeather(w, r, body.City, body.Country)
}

func (h *Handler) serveWeather(w http.ResponseWriter, r *http.Request, city, country string) {
	if city == "" || country == "" {
		writeError(w, r, http.StatusBadRequest, "MISSING_PARAMETERS", "both 'city' and 'country' are required")
		return
	}

	city, err := validation.ValidateName("city", city)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}
	country, err = validation.ValidateName("country", country)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COUNTRY", err.Error())
		return
	}

	location, err := models.NewLocation(city, country)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}

	reading, err := h.weatherService.GetWeather(r.Context(), location)
	if err != nil {
		traffic.RecordError()
		writeServiceError(w, r, err)
		return
	}
	traffic.RecordSuccess()

	h.recordSearch(w, r, reading.Location)
	writeJSON(w, http.StatusOK, reading)
}

// GetWeatherByCoordinates handles GET /api/v1/weather/coordinates.
func (h *Handler) GetWeatherByCoordinates(w http.ResponseWriter, r *http.Request) {
	latStr := r.URL.Query().Get("lat")
	lonStr := r.URL.Query().Get("lon")
	if latStr == "" || lonStr == "" {
		writeError(w, r, http.StatusBadRequest, "MISSING_PARAMETERS", "both 'lat' and 'lon' are required")
		return
	}

	lat, latErr := strconv.ParseFloat(latStr, 64)
	lon, lonErr := strconv.ParseFloat(lonStr, 64)
	if latErr != nil || lonErr != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "'lat' and 'lon' must be numeric")
		return
	}
	if err := validation.ValidateCoordinates(lat, lon); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return
	}

	reading, err := h.weatherService.GetWeatherByCoordinates(r.Context(), lat, lon)
	if err != nil {
		traffic.RecordError()
		writeServiceError(w, r, err)
		return
	}
	traffic.RecordSuccess()

	writeJSON(w, http.StatusOK, reading)
}

// GetRecentSearches handles GET /api/v1/recent-searches.
func (h *Handler) GetRecentSearches(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionID(w, r, false)

	entries := []map[string]string{}
	if sessionID != "" {
		for _, s := range h.searches.List(sessionID) {
			entries = append(entries, map[string]string{
				"city":    s.Location.City,
				"country": s.Location.Country,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"recent_searches": entries})
}

// DeleteRecentSearches handles DELETE /api/v1/recent-searches.
func (h *Handler) DeleteRecentSearches(w http.ResponseWriter, r *http.Request) {
	if sessionID := h.sessionID(w, r, false); sessionID != "" {
		h.searches.Clear(sessionID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Recent searches cleared"})
}

// recordSearch adds the resolved location to the session's history. Session
// faults are logged and dropped; history is best-effort.
func (h *Handler) recordSearch(w http.ResponseWriter, r *http.Request, location models.Location) {
	if h.searches == nil || h.sessions == nil {
		return
	}
	sessionID := h.sessionID(w, r, true)
	if sessionID == "" {
		return
	}
	h.searches.Add(sessionID, location)
}

// sessionID returns the session's ID, minting and saving one when create is
// true. Must run before the response body is written so the cookie header can
// still go out.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request, create bool) string {
	if h.sessions == nil {
		return ""
	}
	session, err := h.sessions.Get(r, h.cookieName)
	if err != nil {
		// Undecodable cookie; Get still returns a fresh session.
		observability.LoggerFromContext(r.Context()).Debug("session decode failed", zap.Error(err))
	}
	if id, ok := session.Values["id"].(string); ok && id != "" {
		return id
	}
	if !create {
		return ""
	}

	id := uuid.New().String()
	session.Values["id"] = id
	if err := session.Save(r, w); err != nil {
		observability.LoggerFromContext(r.Context()).Warn("session save failed", zap.Error(err))
		return ""
	}
	return id
}

// healthResult is the computed health status plus metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /api/health and /api/v1/health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result, checks := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	if prev := h.healthStatusPrev; prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   serviceName,
		"version":   h.version,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > degraded (upstream error rate or cache unreachable) > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) (healthResult, map[string]string) {
	checks := map[string]string{"upstream": "healthy"}

	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}, checks
	}

	result := healthResult{"healthy", http.StatusOK, ""}

	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errCount, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 && errCount*100/total >= h.healthConfig.DegradedErrorPct {
			checks["upstream"] = "unhealthy"
			result = healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}

	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if err := h.healthConfig.CachePing(ctx); err != nil {
			checks["cache"] = "unhealthy"
			if result.status == "healthy" {
				result = healthResult{"degraded", http.StatusServiceUnavailable, "cache_unreachable"}
			}
		} else {
			checks["cache"] = "healthy"
		}
	}

	return result, checks
}

// GetLiveness handles GET /api/v1/health/live. Always 200 while the process
// can serve requests at all.
func (h *Handler) GetLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "alive",
		"service": serviceName,
	})
}

// GetReadiness handles GET /api/v1/health/ready: probes the upstream origin
// and the cache backend with a short timeout.
func (h *Handler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	timeout := 2 * time.Second
	if h.healthConfig != nil && h.healthConfig.ReadinessTimeout > 0 {
		timeout = h.healthConfig.ReadinessTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	checks := map[string]bool{}
	ready := true

	if err := h.client.Ping(ctx); err != nil {
		checks["upstream"] = false
		ready = false
	} else {
		checks["upstream"] = true
	}

	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if err := h.healthConfig.CachePing(ctx); err != nil {
			checks["cache"] = false
			ready = false
		} else {
			checks["cache"] = true
		}
	}

	status, statusCode := "ready", http.StatusOK
	if !ready {
		status, statusCode = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]interface{}{
		"status":  status,
		"service": serviceName,
		"checks":  checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope with the request's
// correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": RequestIDFromContext(r.Context()),
		},
	})
}

// writeServiceError maps a pipeline error to its HTTP status. The mapping
// lives here so the core packages stay free of status knowledge.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context())

	switch {
	case errors.Is(err, models.ErrLocationNotFound):
		writeError(w, r, http.StatusNotFound, "LOCATION_NOT_FOUND", "no location found for the given coordinates")
	case errors.Is(err, models.ErrParsing):
		writeError(w, r, http.StatusBadGateway, "PARSE_FAILED", "weather data could not be parsed from the upstream page")
	case errors.Is(err, models.ErrResolution):
		writeError(w, r, http.StatusBadGateway, "GEOCODE_FAILED", "coordinates could not be resolved to a location")
	case errors.Is(err, models.ErrUpstream):
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "unable to fetch weather data")
	case errors.Is(err, models.ErrInvalidLocation):
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "request timed out")
	default:
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
	}

	logger.Debug("weather request failed", zap.Error(err))
}
