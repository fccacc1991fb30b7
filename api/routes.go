package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// RouteCatalog lists the routes known to the dispatcher.
type RouteCatalog interface {
	Routes() []model.Route
	GetRoute(id string) (model.Route, error)
}

// RouteView is the JSON form of a route.
type RouteView struct {
	ID                string   `json:"id"`
	Name              string   `json:"name,omitempty"`
	Type              string   `json:"type,omitempty"`
	Start             string   `json:"start"`
	End               string   `json:"end"`
	Stops             []string `json:"stops"`
	DistanceKm        float64  `json:"distance_km"`
	TravelTimeMinutes float64  `json:"travel_time_minutes"`
	Active            bool     `json:"active"`
	MinCapacity       int      `json:"min_capacity"`
	CapacityCeiling   int      `json:"capacity_ceiling"`
	Assigned          []string `json:"assigned_vehicles"`
	// CanAccommodate answers the passengers query parameter.
	CanAccommodate *bool `json:"can_accommodate,omitempty"`
}

func newRouteView(r model.Route) RouteView {
	v := RouteView{
		ID:                r.ID,
		Name:              r.Name,
		Type:              r.Type,
		Start:             r.Start(),
		End:               r.End(),
		Stops:             r.Stops,
		DistanceKm:        r.DistanceKm,
		TravelTimeMinutes: r.TravelTime.Minutes(),
		Active:            r.Active,
		MinCapacity:       r.MinCapacity,
		CapacityCeiling:   r.CapacityCeiling,
		Assigned:          r.Assigned,
	}
	if v.Stops == nil {
		v.Stops = []string{}
	}
	if v.Assigned == nil {
		v.Assigned = []string{}
	}
	return v
}

func (s *Server) handleListRoutes(w http.ResponseWriter, _ *http.Request) {
	routes := s.routes.Routes()
	out := make([]RouteView, 0, len(routes))
	for _, r := range routes {
		out = append(out, newRouteView(r))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	route, err := s.routes.GetRoute(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	v := newRouteView(route)
	if q := r.URL.Query().Get("passengers"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			s.writeError(w, fmt.Errorf("passengers %q is not a count: %w", q, model.ErrInvalidRequest))
			return
		}
		ok := route.CanAccommodate(n)
		v.CanAccommodate = &ok
	}
	writeJSON(w, http.StatusOK, v)
}
