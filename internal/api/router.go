package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yegors/flightboard/pkg/logger"
)

// Router builds the HTTP routes of the service
type Router struct {
	handler   *Handler
	metrics   http.Handler
	websocket http.HandlerFunc
	logger    *logger.Logger
}

// NewRouter creates a router. metricsHandler and wsHandler may be nil to disable /metrics and /ws.
func NewRouter(source BoardSource, metricsHandler http.Handler, wsHandler http.HandlerFunc, log *logger.Logger) *Router {
	return &Router{
		handler:   NewHandler(source, log),
		metrics:   metricsHandler,
		websocket: wsHandler,
		logger:    log.Named("api-router"),
	}
}

// Routes returns the HTTP handler with every route mounted
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", rt.handler.GetHealth)
		r.Get("/station", rt.handler.GetStation)
		r.Get("/flights", rt.handler.GetFlights)
		r.Get("/flights/{callsign}", rt.handler.GetFlight)
	})

	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics)
	}
	if rt.websocket != nil {
		r.Get("/ws", rt.websocket)
	}

	return r
}

// requestLogger logs each request at debug level
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}
