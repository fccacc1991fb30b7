// Package api exposes the dispatch manager over a REST interface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilianp07/fleetdispatch/core/dispatch"
	"github.com/kilianp07/fleetdispatch/core/journal"
	"github.com/kilianp07/fleetdispatch/core/logger"
)

// Server holds the collaborators of the HTTP handlers.
type Server struct {
	mgr     *dispatch.Manager
	journal journal.Store
	routes  RouteCatalog
	bus     DropCounter
	feed    http.Handler
	log     logger.Logger
	now     func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithJournal serves GET /api/assignments from j.
func WithJournal(j journal.Store) Option { return func(s *Server) { s.journal = j } }

// WithRoutes serves GET /api/routes from c.
func WithRoutes(c RouteCatalog) Option { return func(s *Server) { s.routes = c } }

// DropCounter reports event deliveries skipped on full subscribers.
type DropCounter interface {
	Dropped() uint64
}

// WithBus reports the drops of b in GET /api/fleet/stats.
func WithBus(b DropCounter) Option { return func(s *Server) { s.bus = b } }

// WithFeed mounts h on GET /api/feed.
func WithFeed(h http.Handler) Option { return func(s *Server) { s.feed = h } }

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option { return func(s *Server) { s.log = l } }

// WithClock sets the clock used for default query windows.
func WithClock(fn func() time.Time) Option { return func(s *Server) { s.now = fn } }

// NewServer creates a Server for m.
func NewServer(m *dispatch.Manager, opts ...Option) *Server {
	s := &Server{mgr: m, log: logger.Nop{}, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router returns the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Route("/api", func(r chi.Router) {
		r.Post("/dispatch", s.handleDispatch)

		r.Route("/vehicles", func(r chi.Router) {
			r.Get("/", s.handleListVehicles)
			r.Post("/", s.handleRegisterVehicle)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", s.handleRemoveVehicle)
				r.Get("/status", s.handleVehicleStatus)
				r.Get("/availability", s.handleAvailability)
				r.Get("/trips", s.handleTrips)
				r.Delete("/trips/{tripID}", s.handleCancelTrip)
				r.Put("/trips/{tripID}", s.handleRescheduleTrip)
				r.Post("/maintenance", s.handleMaintenance)
				r.Post("/status", s.handleSetStatus)
				r.Post("/driver", s.handleAssignDriver)
				r.Post("/location", s.handleLocation)
				r.Post("/tracking", s.handleTracking)
			})
		})

		if s.routes != nil {
			r.Get("/routes", s.handleListRoutes)
			r.Get("/routes/{id}", s.handleRoute)
		}
		r.Get("/assignments", s.handleAssignments)
		r.Get("/fleet/stats", s.handleStats)
		if s.feed != nil {
			r.Method(http.MethodGet, "/feed", s.feed)
		}
	})
	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.log.Debugw("request completed", map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  middleware.GetReqID(r.Context()),
			})
		}()
		next.ServeHTTP(ww, r)
	})
}
