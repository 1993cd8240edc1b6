package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ChicagoDave/siteplanner/internal/config"
	"github.com/ChicagoDave/siteplanner/internal/server"
	"github.com/ChicagoDave/siteplanner/pkg/cost"
	"github.com/ChicagoDave/siteplanner/pkg/export"
	"github.com/ChicagoDave/siteplanner/pkg/geo"
	"github.com/ChicagoDave/siteplanner/pkg/optimizer"
	"github.com/ChicagoDave/siteplanner/pkg/siteplan"
	"github.com/ChicagoDave/siteplanner/pkg/spec"
	"github.com/ChicagoDave/siteplanner/pkg/store"
	"github.com/ChicagoDave/siteplanner/pkg/validation"
	"github.com/ChicagoDave/siteplanner/pkg/zoning"
)

var errInvalidProject = errors.New("project has validation errors")

// loadAndValidate loads the project and checks its parcels, zoning and
// cost table. The configuration is left to the engine, which reports its
// problems as violations.
func loadAndValidate(projectPath string) (*spec.Project, *validation.Report, error) {
	project, err := spec.LoadProject(projectPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading project: %w", err)
	}
	return project, validateSite(project), nil
}

func validateSite(p *spec.Project) *validation.Report {
	r := validation.NewReport()

	if _, err := geo.ParseCRS(p.CRS); err != nil {
		r.AddError(validation.Result{
			Level: validation.LevelSite, Message: err.Error(), Field: "crs",
			ActualValue: p.CRS, Expected: "wgs84 or projected-feet",
		})
	}

	if len(p.Parcels) == 0 {
		r.AddError(validation.Result{
			Level: validation.LevelSite, Message: "project has no parcels", Field: "parcels",
		})
	}
	for i, pd := range p.Parcels {
		field := fmt.Sprintf("parcels[%d]", i)
		if p.ParcelByID(pd.ID) != &p.Parcels[i] {
			r.AddError(validation.Result{
				Level: validation.LevelSite, Message: fmt.Sprintf("duplicate parcel id %q", pd.ID), Field: field + ".id",
			})
		}
		g, err := geo.Decode(pd.Geometry)
		if err != nil {
			r.AddError(validation.Result{
				Level: validation.LevelSite, Message: fmt.Sprintf("parcel %s: %v", pd.ID, err), Field: field + ".geometry",
			})
		} else if _, ok := geo.Normalize(g); !ok {
			r.AddError(validation.Result{
				Level: validation.LevelSite, Message: fmt.Sprintf("parcel %s has no usable polygon", pd.ID),
				Field: field + ".geometry", Expected: "a Polygon or MultiPolygon with positive area",
			})
		}
		if _, ok := p.Zoning[pd.ZoneCode]; !ok {
			r.AddError(validation.Result{
				Level: validation.LevelZoning, Message: fmt.Sprintf("parcel %s: zone %q has no zoning record", pd.ID, pd.ZoneCode),
				Field: field + ".zone_code", ActualValue: pd.ZoneCode,
				Suggestions: []string{"add the district under zoning: or correct the zone code"},
			})
		}
	}

	for code, rec := range p.Zoning {
		if _, err := zoning.Normalize(rec); err != nil {
			r.AddError(validation.Result{
				Level: validation.LevelZoning, Message: fmt.Sprintf("zone %s: %v", code, err), Field: "zoning." + code,
			})
		}
	}

	if p.CostTable != "" {
		if _, err := cost.LoadTable(p.CostTable); err != nil {
			r.AddError(validation.Result{
				Level: validation.LevelCost, Message: err.Error(), Field: "cost_table", ActualValue: p.CostTable,
			})
		}
	} else {
		r.AddInfo(validation.Result{
			Level: validation.LevelCost, Message: "no cost_table set; using the default unit costs", Field: "cost_table",
		})
	}
	return r
}

// environment builds the pricing and policy inputs from the project.
func environment(p *spec.Project) (siteplan.Environment, error) {
	env := siteplan.DefaultEnvironment()
	if p.CostTable != "" {
		t, err := cost.LoadTable(p.CostTable)
		if err != nil {
			return env, err
		}
		env.Costs = t
	}
	env.Market = p.Market.WithDefaults()
	if p.Feasibility.NearLimitPct > 0 {
		env.Policy.NearLimitPct = p.Feasibility.NearLimitPct
	}
	return env, nil
}

// selectParcels returns the parcels to plan, from the catalog when a
// database is given and from the project file otherwise.
func selectParcels(ctx context.Context, p *spec.Project, src sourceFlags) ([]siteplan.Parcel, error) {
	ids := src.parcels
	if src.db != "" {
		st, err := store.Open(ctx, src.db, slog.Default())
		if err != nil {
			return nil, err
		}
		defer st.Close()
		if len(ids) == 0 {
			for _, pd := range p.SelectedParcels() {
				ids = append(ids, pd.ID)
			}
		}
		return st.SelectedParcels(ctx, ids...)
	}

	if len(ids) == 0 {
		return siteplan.ParcelsFromProject(p)
	}
	subset := *p
	subset.Parcels = nil
	for _, id := range ids {
		pd := p.ParcelByID(id)
		if pd == nil {
			return nil, fmt.Errorf("parcel %s: %w", id, store.ErrNotFound)
		}
		d := *pd
		d.Selected = true
		subset.Parcels = append(subset.Parcels, d)
	}
	return siteplan.ParcelsFromProject(&subset)
}

// prepare loads and validates the project, then resolves its site.
func prepare(ctx context.Context, projectPath string, src sourceFlags) (*spec.Project, siteplan.Site, siteplan.Environment, error) {
	project, report, err := loadAndValidate(projectPath)
	if err != nil {
		return nil, siteplan.Site{}, siteplan.Environment{}, err
	}
	if !report.Valid {
		printValidationReport(report)
		return nil, siteplan.Site{}, siteplan.Environment{}, errInvalidProject
	}
	env, err := environment(project)
	if err != nil {
		return nil, siteplan.Site{}, siteplan.Environment{}, err
	}
	crs, _ := geo.ParseCRS(project.CRS)
	parcels, err := selectParcels(ctx, project, src)
	if err != nil {
		return nil, siteplan.Site{}, siteplan.Environment{}, err
	}
	site, err := siteplan.Resolve(parcels, crs)
	if err != nil {
		return nil, siteplan.Site{}, siteplan.Environment{}, err
	}
	return project, site, env, nil
}

func runPlan(ctx context.Context, projectPath string, src sourceFlags, out outputFlags) error {
	project, site, env, err := prepare(ctx, projectPath, src)
	if err != nil {
		return err
	}
	res, err := siteplan.Generate(site, project.Plan, env)
	if err != nil {
		return err
	}
	slog.Debug("plan generated", "parcels", site.ParcelIDs, "classification", res.Classification)

	switch out.export {
	case "":
	case "geojson":
		return writeOutput(out.out, func(w io.Writer) error {
			return encodeJSON(w, export.PlanGeoJSON(site, res))
		})
	case "csv":
		return writeOutput(out.out, func(w io.Writer) error { return export.PlanCSV(w, res) })
	default:
		return fmt.Errorf("unknown export format %q for plan (want geojson or csv)", out.export)
	}

	if out.json {
		return encodeJSON(os.Stdout, map[string]any{
			"site": site,
			"plan": res,
		})
	}
	printPlan(site, res)
	return nil
}

func runOptimize(ctx context.Context, projectPath string, src sourceFlags, out outputFlags, top, workers int) error {
	project, site, env, err := prepare(ctx, projectPath, src)
	if err != nil {
		return err
	}
	if top == 0 {
		top = project.Optimizer.TopN
	}
	if workers == 0 {
		workers = project.Optimizer.Workers
	}
	scenarios := optimizer.OptimizeSite(site, optimizer.Options{
		CRS:     site.CRS,
		Base:    spec.Configuration{BuildingType: project.Plan.BuildingType, AmenitySpaceSqFt: project.Plan.AmenitySpaceSqFt},
		Env:     env,
		TopN:    top,
		Workers: workers,
	})

	switch out.export {
	case "":
	case "csv":
		return writeOutput(out.out, func(w io.Writer) error { return export.ScenariosCSV(w, scenarios) })
	default:
		return fmt.Errorf("unknown export format %q for optimize (want csv)", out.export)
	}

	if out.json {
		return encodeJSON(os.Stdout, map[string]any{
			"site":      site,
			"scenarios": scenarios,
		})
	}
	printScenarios(site, scenarios)
	return nil
}

func runAssemble(ctx context.Context, projectPath string, src sourceFlags, out outputFlags) error {
	project, report, err := loadAndValidate(projectPath)
	if err != nil {
		return err
	}
	if !report.Valid {
		printValidationReport(report)
		return errInvalidProject
	}
	crs, _ := geo.ParseCRS(project.CRS)
	parcels, err := selectParcels(ctx, project, src)
	if err != nil {
		return err
	}
	a, site, err := siteplan.Assemble(parcels, crs)
	if err != nil {
		return err
	}

	switch out.export {
	case "":
	case "geojson":
		return writeOutput(out.out, func(w io.Writer) error {
			return encodeJSON(w, export.PlanGeoJSON(site, nil))
		})
	default:
		return fmt.Errorf("unknown export format %q for assemble (want geojson)", out.export)
	}

	if out.json {
		return encodeJSON(os.Stdout, a)
	}
	printAssemblage(a)
	return nil
}

func runValidate(projectPath string) error {
	project, report, err := loadAndValidate(projectPath)
	if err != nil {
		return err
	}
	report.Merge(validation.ValidateConfiguration(project.Plan))

	printValidationReport(report)

	if !report.Valid {
		return errInvalidProject
	}
	return nil
}

func runCosts(projectPath string) error {
	table := cost.DefaultTable()
	if projectPath != "" {
		project, err := spec.LoadProject(projectPath)
		if err != nil {
			return fmt.Errorf("loading project: %w", err)
		}
		env, err := environment(project)
		if err != nil {
			return err
		}
		table = env.Costs
	}
	printCostTable(table)
	return nil
}

func runImport(ctx context.Context, projectPath, dbPath string) error {
	if dbPath == "" {
		return errors.New("no catalog given: pass --db or set SITEPLANNER_DB")
	}
	project, report, err := loadAndValidate(projectPath)
	if err != nil {
		return err
	}
	if !report.Valid {
		printValidationReport(report)
		return errInvalidProject
	}
	st, err := store.Open(ctx, dbPath, slog.Default())
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.ImportProject(ctx, project); err != nil {
		return err
	}
	fmt.Printf("Imported %d parcels and %d zoning districts into %s\n", len(project.Parcels), len(project.Zoning), dbPath)
	return nil
}

// serverOptions loads the project and catalog named by cfg. The cleanup
// function closes the catalog.
func serverOptions(ctx context.Context, cfg config.Config) (server.Options, func(), error) {
	opts := server.Options{
		Env:     siteplan.DefaultEnvironment(),
		Workers: cfg.Workers,
		Logger:  slog.Default(),
	}
	cleanup := func() {}

	if cfg.ProjectDir != "" {
		project, report, err := loadAndValidate(cfg.ProjectDir)
		if err != nil {
			return opts, cleanup, err
		}
		if !report.Valid {
			printValidationReport(report)
			return opts, cleanup, errInvalidProject
		}
		env, err := environment(project)
		if err != nil {
			return opts, cleanup, err
		}
		opts.Project = project
		opts.Env = env
	}

	if cfg.DBPath != "" {
		st, err := store.Open(ctx, cfg.DBPath, opts.Logger)
		if err != nil {
			return opts, cleanup, err
		}
		opts.Store = st
		cleanup = func() { st.Close() }
	}
	return opts, cleanup, nil
}

func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
