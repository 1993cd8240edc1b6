// Package server exposes the site planner over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ChicagoDave/siteplanner/pkg/assemblage"
	"github.com/ChicagoDave/siteplanner/pkg/export"
	"github.com/ChicagoDave/siteplanner/pkg/geo"
	"github.com/ChicagoDave/siteplanner/pkg/optimizer"
	"github.com/ChicagoDave/siteplanner/pkg/siteplan"
	"github.com/ChicagoDave/siteplanner/pkg/spec"
	"github.com/ChicagoDave/siteplanner/pkg/store"
	"github.com/ChicagoDave/siteplanner/pkg/zoning"
)

// maxBodyBytes bounds request bodies; parcel geometry is the bulk.
const maxBodyBytes = 8 << 20

// Options configure a Server. Every field is optional.
type Options struct {
	// Project answers requests that name no parcels of their own.
	Project *spec.Project
	// Store resolves parcel ids against the catalog.
	Store *store.Store
	// Env prices and judges plans. Zero fields take the defaults.
	Env siteplan.Environment
	// Workers bounds concurrent optimizer evaluations per request.
	Workers int
	Logger  *slog.Logger
}

// Server is the site planner HTTP API.
type Server struct {
	project *spec.Project
	store   *store.Store
	env     siteplan.Environment
	workers int
	logger  *slog.Logger
}

// New creates a server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		project: opts.Project,
		store:   opts.Store,
		env:     opts.Env.WithDefaults(),
		workers: opts.Workers,
		logger:  opts.Logger,
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/project", s.handleProject)
		r.Get("/costs", s.handleCosts)
		r.Post("/assemble", s.handleAssemble)
		r.Post("/plan", s.handlePlan)
		r.Post("/plan/geojson", s.handlePlanGeoJSON)
		r.Post("/optimize", s.handleOptimize)
	})
	return r
}

// Start serves the API on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("siteplanner server starting", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("siteplanner server stopping")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"elapsed", time.Since(start))
	})
}

// siteRequest names the parcels to plan. Inline Parcels win over
// ParcelIDs; with neither, the loaded project's selection is used.
type siteRequest struct {
	CRS       string                       `json:"crs"`
	ParcelIDs []string                     `json:"parcel_ids"`
	Parcels   []spec.ParcelDef             `json:"parcels"`
	Zoning    map[string]spec.ZoningRecord `json:"zoning"`
}

type planRequest struct {
	siteRequest
	Configuration *spec.Configuration `json:"configuration"`
}

type optimizeRequest struct {
	siteRequest
	BuildingType     spec.BuildingType `json:"building_type"`
	AmenitySpaceSqFt float64           `json:"amenity_space_sqft"`
	TopN             int               `json:"top_n"`
}

// envelope wraps every computed response with an id for the run.
type envelope struct {
	ID         string               `json:"id"`
	Site       *siteplan.Site       `json:"site,omitempty"`
	Assemblage *assemblage.Site     `json:"assemblage,omitempty"`
	Plan       *siteplan.Result     `json:"plan,omitempty"`
	Scenarios  []optimizer.Scenario `json:"scenarios,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleProject(w http.ResponseWriter, _ *http.Request) {
	if s.project == nil {
		writeError(w, http.StatusNotFound, errors.New("no project loaded"))
		return
	}
	writeJSON(w, http.StatusOK, s.project)
}

func (s *Server) handleCosts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":  s.env.Costs.Name(),
		"items": s.env.Costs.Items(),
	})
}

func (s *Server) handleAssemble(w http.ResponseWriter, r *http.Request) {
	var req siteRequest
	if !decode(w, r, &req) {
		return
	}
	parcels, crs, err := s.parcels(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	a, site, err := siteplan.Assemble(parcels, crs)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{ID: uuid.NewString(), Site: &site, Assemblage: &a})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	site, res, ok := s.plan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, envelope{ID: uuid.NewString(), Site: &site, Plan: res})
}

func (s *Server) handlePlanGeoJSON(w http.ResponseWriter, r *http.Request) {
	site, res, ok := s.plan(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(export.PlanGeoJSON(site, res)); err != nil {
		s.logger.Error("encoding geojson", "error", err)
	}
}

func (s *Server) plan(w http.ResponseWriter, r *http.Request) (siteplan.Site, *siteplan.Result, bool) {
	var req planRequest
	if !decode(w, r, &req) {
		return siteplan.Site{}, nil, false
	}
	site, err := s.site(r.Context(), req.siteRequest)
	if err != nil {
		s.fail(w, err)
		return siteplan.Site{}, nil, false
	}
	cfg, err := s.configuration(req.Configuration)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return siteplan.Site{}, nil, false
	}
	res, err := siteplan.Generate(site, cfg, s.env)
	if err != nil {
		s.fail(w, err)
		return siteplan.Site{}, nil, false
	}
	s.logger.Debug("plan generated", "parcels", site.ParcelIDs, "feasible", res.IsFeasible, "classification", res.Classification)
	return site, res, true
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if !decode(w, r, &req) {
		return
	}
	site, err := s.site(r.Context(), req.siteRequest)
	if err != nil {
		s.fail(w, err)
		return
	}
	topN := req.TopN
	if topN == 0 && s.project != nil {
		topN = s.project.Optimizer.TopN
	}
	scenarios := optimizer.OptimizeSite(site, optimizer.Options{
		CRS:     site.CRS,
		Base:    spec.Configuration{BuildingType: req.BuildingType, AmenitySpaceSqFt: req.AmenitySpaceSqFt},
		Env:     s.env,
		TopN:    topN,
		Workers: s.workers,
		Logger:  s.logger,
	})
	writeJSON(w, http.StatusOK, envelope{ID: uuid.NewString(), Site: &site, Scenarios: scenarios})
}

func (s *Server) site(ctx context.Context, req siteRequest) (siteplan.Site, error) {
	parcels, crs, err := s.parcels(ctx, req)
	if err != nil {
		return siteplan.Site{}, err
	}
	return siteplan.Resolve(parcels, crs)
}

// parcels resolves a request to parcels with zoning attached.
func (s *Server) parcels(ctx context.Context, req siteRequest) ([]siteplan.Parcel, geo.CRS, error) {
	crsName := req.CRS
	if crsName == "" && s.project != nil {
		crsName = s.project.CRS
	}
	crs, err := geo.ParseCRS(crsName)
	if err != nil {
		return nil, "", badRequest{err}
	}

	switch {
	case len(req.Parcels) > 0:
		zones := req.Zoning
		if zones == nil && s.project != nil {
			zones = s.project.Zoning
		}
		parcels, err := siteplan.ParcelsFromProject(&spec.Project{Parcels: req.Parcels, Zoning: zones})
		if err != nil {
			return nil, "", badRequest{err}
		}
		return parcels, crs, nil

	case len(req.ParcelIDs) > 0 && s.store != nil:
		parcels, err := s.store.SelectedParcels(ctx, req.ParcelIDs...)
		return parcels, crs, err

	case s.project != nil:
		p := *s.project
		if len(req.ParcelIDs) > 0 {
			p.Parcels = nil
			for _, id := range req.ParcelIDs {
				def := s.project.ParcelByID(id)
				if def == nil {
					return nil, "", fmt.Errorf("parcel %s: %w", id, store.ErrNotFound)
				}
				d := *def
				d.Selected = true
				p.Parcels = append(p.Parcels, d)
			}
		}
		parcels, err := siteplan.ParcelsFromProject(&p)
		return parcels, crs, err
	}
	return nil, "", badRequest{errors.New("request names no parcels and no project is loaded")}
}

func (s *Server) configuration(cfg *spec.Configuration) (spec.Configuration, error) {
	if cfg != nil {
		return *cfg, nil
	}
	if s.project != nil {
		return s.project.Plan, nil
	}
	return spec.Configuration{}, errors.New("request has no configuration and no project is loaded")
}

type badRequest struct{ error }

func (e badRequest) Unwrap() error { return e.error }

func (s *Server) fail(w http.ResponseWriter, err error) {
	var br badRequest
	switch {
	case errors.As(err, &br):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, siteplan.ErrEngineUnavailable),
		errors.Is(err, zoning.ErrInvalidRecord),
		errors.Is(err, geo.ErrNoGeometry),
		errors.Is(err, assemblage.ErrNoMembers):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}
