package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/flightboard/internal/board"
	"github.com/yegors/flightboard/internal/phase"
	"github.com/yegors/flightboard/internal/routes"
	"github.com/yegors/flightboard/pkg/logger"
)

// BoardSource is the tracker state the API reads from
type BoardSource interface {
	Board() *board.Board
	Station() routes.Station
	GetStatus() (time.Time, bool)
}

// Handler contains the API handlers
type Handler struct {
	source BoardSource
	logger *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(source BoardSource, log *logger.Logger) *Handler {
	return &Handler{
		source: source,
		logger: log.Named("api-handler"),
	}
}

// FlightsResponse is the body of GET /api/v1/flights
type FlightsResponse struct {
	Timestamp time.Time      `json:"timestamp"`
	Count     int            `json:"count"`
	Summary   map[string]int `json:"summary"`
	Flights   []board.Entry  `json:"flights"`
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	lastFetch, ok := h.source.GetStatus()

	response := map[string]any{
		"status":       "ok",
		"fetch_ok":     ok,
		"last_fetch":   lastFetch,
		"flight_count": h.source.Board().Len(),
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetStation returns the reference station
func (h *Handler) GetStation(w http.ResponseWriter, r *http.Request) {
	station := h.source.Station()

	WriteJSON(w, http.StatusOK, map[string]any{
		"airport_code": station.Code,
		"name":         station.DisplayName(),
		"latitude":     station.Position.Lat,
		"longitude":    station.Position.Lon,
	})
}

// GetFlights returns the current board, optionally filtered by phase and direction
func (h *Handler) GetFlights(w http.ResponseWriter, r *http.Request) {
	var (
		label     *phase.Label
		direction *phase.Direction
	)

	query := r.URL.Query()
	if v := strings.TrimSpace(query.Get("phase")); v != "" {
		parsed, err := phase.ParseLabel(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		label = &parsed
	}
	if v := strings.TrimSpace(query.Get("direction")); v != "" {
		parsed, err := phase.ParseDirection(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		direction = &parsed
	}

	view := h.source.Board().View(label, direction)

	h.logger.Debug("Serving flights",
		logger.Int("count", len(view.Entries)),
		logger.Bool("filtered", label != nil || direction != nil))

	WriteJSON(w, http.StatusOK, FlightsResponse{
		Timestamp: view.UpdatedAt,
		Count:     len(view.Entries),
		Summary:   view.Summary,
		Flights:   view.Entries,
	})
}

// GetFlight returns one flight by callsign
func (h *Handler) GetFlight(w http.ResponseWriter, r *http.Request) {
	callsign := chi.URLParam(r, "callsign")
	if callsign == "" {
		http.Error(w, "Missing callsign", http.StatusBadRequest)
		return
	}

	entry, found := h.source.Board().Get(callsign)
	if !found {
		http.Error(w, "Flight not found", http.StatusNotFound)
		return
	}

	WriteJSON(w, http.StatusOK, entry)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
