package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jonwraymond/phoenix/health"
	"github.com/jonwraymond/phoenix/incident"
	"github.com/jonwraymond/phoenix/observe"
	"github.com/jonwraymond/phoenix/recovery"
)

// StrategyView is one catalog entry as served by /v1/catalog.
type StrategyView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Action      string `json:"action"`
	Priority    int    `json:"priority"`
}

func (s *Server) listServices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.config.Monitor.AllHealth())
}

func (s *Server) getSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.config.Monitor.Summary())
}

// defaultTrendWindow applies when the window query parameter is absent.
const defaultTrendWindow = 24 * time.Hour

func (s *Server) getTrends(w http.ResponseWriter, r *http.Request) {
	window := defaultTrendWindow
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: window %q", errBadRequest, v))
			return
		}
		window = d
	}
	trends, err := s.config.Monitor.Trends(chi.URLParam(r, "name"), window)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func (s *Server) listUnhealthy(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.config.Monitor.UnhealthyServices())
}

// getService answers 503 for a down service so load balancers and scripts
// can use the status code alone.
func (s *Server) getService(w http.ResponseWriter, r *http.Request) {
	h, err := s.config.Monitor.ServiceHealth(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, health.HTTPStatus(h.Status), h)
}

func (s *Server) registerService(w http.ResponseWriter, r *http.Request) {
	var reg health.Registration
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&reg); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := s.config.Monitor.Register(reg); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	h, err := s.config.Monitor.ServiceHealth(reg.Name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Location", "/v1/services/"+url.PathEscape(reg.Name))
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) checkService(w http.ResponseWriter, r *http.Request) {
	res, err := s.config.Monitor.CheckService(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// recoverService runs one recovery attempt on the current snapshot. A
// healthy service is refused with 409 unless force=true. The strategy
// parameter names a catalog strategy or action to run instead of the one
// the catalog would select.
func (s *Server) recoverService(w http.ResponseWriter, r *http.Request) {
	h, err := s.config.Monitor.ServiceHealth(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	q := r.URL.Query()
	if h.Healthy() && q.Get("force") != "true" {
		writeError(w, http.StatusConflict, fmt.Errorf("service %q is healthy; pass force=true to recover anyway", h.Name))
		return
	}

	var inc incident.Incident
	if strategy := q.Get("strategy"); strategy != "" {
		inc, err = s.config.Engine.AttemptStrategy(r.Context(), h, strategy)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
	} else {
		inc = s.config.Engine.AttemptRecovery(r.Context(), h)
	}
	s.invalidate(r.Context())
	s.config.Logger.Info(r.Context(), "manual recovery",
		observe.Field{Key: "service", Value: h.Name},
		observe.Field{Key: "action", Value: inc.Action},
		observe.Field{Key: "strategy", Value: q.Get("strategy")},
		observe.Field{Key: "success", Value: inc.Success},
	)
	writeJSON(w, http.StatusOK, inc)
}

// invalidate drops the snapshots taken before a recovery. Bumping the
// generation orphans every filtered incident view; the orphans age out with
// their TTL.
func (s *Server) invalidate(ctx context.Context) {
	gen := s.generation.Add(1) - 1
	for _, name := range []string{"stats", "incidents"} {
		route := snapshotRoute(name, gen)
		if err := s.snapshots.Invalidate(ctx, route, url.Values{}); err != nil {
			s.config.Logger.Warn(ctx, "snapshot invalidation failed", observe.Field{Key: "route", Value: name}, observe.Err(err))
		}
	}
}

// listIncidents returns incidents in completion order, optionally filtered
// by service and cut to the most recent limit.
func (s *Server) listIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: limit %q", errBadRequest, v))
			return
		}
		limit = n
	}
	service := q.Get("service")

	body, err := s.snapshots.Execute(r.Context(), s.route("incidents"), q, func(ctx context.Context) ([]byte, error) {
		all, err := s.config.Engine.Incidents(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]incident.Incident, 0, len(all))
		for _, inc := range all {
			if service == "" || inc.Service == service {
				out = append(out, inc)
			}
		}
		if limit > 0 && len(out) > limit {
			out = out[len(out)-limit:]
		}
		return json.Marshal(out)
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeRaw(w, http.StatusOK, body)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	body, err := s.snapshots.Execute(r.Context(), s.route("stats"), url.Values{}, func(ctx context.Context) ([]byte, error) {
		st, err := s.config.Engine.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(st)
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeRaw(w, http.StatusOK, body)
}

func (s *Server) route(name string) string {
	return snapshotRoute(name, s.generation.Load())
}

func snapshotRoute(name string, gen uint64) string {
	return name + "/" + strconv.FormatUint(gen, 10)
}

func (s *Server) getCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CatalogView(s.config.Engine.Catalog()))
}

// BreakerView is the state of one actuator circuit breaker, keyed
// action:service.
type BreakerView struct {
	Name        string    `json:"name"`
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"lastFailure,omitzero"`
}

func (s *Server) listBreakers(w http.ResponseWriter, _ *http.Request) {
	out := []BreakerView{}
	if s.config.Breakers != nil {
		for _, m := range s.config.Breakers.Snapshot() {
			out = append(out, BreakerView{
				Name:        m.Name,
				State:       m.State.String(),
				Failures:    m.Failures,
				LastFailure: m.LastFailure,
			})
		}
	}
	slices.SortFunc(out, func(a, b BreakerView) int { return strings.Compare(a.Name, b.Name) })
	writeJSON(w, http.StatusOK, out)
}

// CatalogView lists the catalog in priority order.
func CatalogView(c *recovery.Catalog) []StrategyView {
	strategies := c.Strategies()
	out := make([]StrategyView, len(strategies))
	for i, st := range strategies {
		out[i] = StrategyView{
			Name:        st.Name,
			Description: st.Description,
			Action:      st.Action.String(),
			Priority:    st.Priority,
		}
	}
	return out
}
