// Package optimizer searches a grid of configurations for the
// highest-yield feasible site plans.
package optimizer

import (
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/ChicagoDave/siteplanner/pkg/feasibility"
	"github.com/ChicagoDave/siteplanner/pkg/geo"
	"github.com/ChicagoDave/siteplanner/pkg/siteplan"
	"github.com/ChicagoDave/siteplanner/pkg/spec"
)

// DefaultTopN is how many scenarios Optimize returns by default.
const DefaultTopN = 3

// SelectedParcel is a parcel the user picked for optimization.
type SelectedParcel = siteplan.Parcel

// Options configure a search.
type Options struct {
	// CRS of the parcel geometry. Default: geo.Geographic.
	CRS geo.CRS
	// Base supplies the building type and amenity space of every
	// candidate. Default: residential with no amenity space.
	Base spec.Configuration
	// Env prices and judges each candidate.
	Env siteplan.Environment
	// TopN truncates the ranking. 0 means DefaultTopN; negative keeps all.
	TopN int
	// Workers bounds concurrent evaluations. Default: GOMAXPROCS.
	Workers int
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.CRS == "" {
		o.CRS = geo.Geographic
	}
	if o.TopN == 0 {
		o.TopN = DefaultTopN
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	o.Env = o.Env.WithDefaults()
}

// Scenario is one ranked feasible configuration.
type Scenario struct {
	ScenarioName        string                     `json:"scenario_name"`
	EstimatedIRR        float64                    `json:"estimated_irr"`
	EstimatedROI        float64                    `json:"estimated_roi"`
	FARUtilization      float64                    `json:"far_utilization"`
	HeightUtilization   float64                    `json:"height_utilization"`
	CoverageUtilization float64                    `json:"coverage_utilization"`
	EstimatedUnits      int                        `json:"estimated_units"`
	RequiredParking     int                        `json:"required_parking"`
	NetImpact           float64                    `json:"net_impact"`
	Classification      feasibility.Classification `json:"classification"`
	Configuration       spec.Configuration         `json:"configuration"`
}

// Optimize resolves the parcels into a site, single or assembled, and
// ranks the feasible candidates of its configuration grid.
func Optimize(parcels []SelectedParcel, opts Options) ([]Scenario, error) {
	opts.defaults()
	site, err := siteplan.Resolve(parcels, opts.CRS)
	if err != nil {
		return nil, err
	}
	return OptimizeSite(site, opts), nil
}

// OptimizeSite evaluates the grid for a resolved site. Candidates are
// evaluated concurrently; failed and infeasible candidates are dropped.
func OptimizeSite(site siteplan.Site, opts Options) []Scenario {
	opts.defaults()
	start := time.Now()
	candidates := Grid(site, opts.Base, opts.Env.Massing)

	results := make([]*Scenario, len(candidates))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(opts.Workers, max(len(candidates), 1)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = evaluate(site, candidates[i], opts)
			}
		}()
	}
	for i := range candidates {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	scenarios := make([]Scenario, 0, len(results))
	for _, s := range results {
		if s != nil {
			scenarios = append(scenarios, *s)
		}
	}
	feasible := len(scenarios)
	scenarios = Rank(scenarios, opts.TopN)

	opts.Logger.Info("optimizer run",
		"parcels", site.ParcelIDs,
		"candidates", len(candidates),
		"feasible", feasible,
		"returned", len(scenarios),
		"workers", opts.Workers,
		"elapsed", time.Since(start))
	return scenarios
}

func evaluate(site siteplan.Site, c Candidate, opts Options) *Scenario {
	res, err := siteplan.Generate(site, c.Config, opts.Env)
	if err != nil {
		opts.Logger.Debug("candidate failed", "scenario", c.Name, "error", err)
		return nil
	}
	if !res.IsFeasible {
		opts.Logger.Debug("candidate infeasible", "scenario", c.Name, "violations", res.Violations)
		return nil
	}
	ca := res.BuildingMassing.ConstraintAnalysis
	return &Scenario{
		ScenarioName:        c.Name,
		EstimatedIRR:        res.Returns.IRR,
		EstimatedROI:        res.Returns.ROI,
		FARUtilization:      ca.FARUtilization,
		HeightUtilization:   ca.HeightUtilization,
		CoverageUtilization: ca.CoverageUtilization,
		EstimatedUnits:      c.Config.TargetUnits,
		RequiredParking:     res.ParkingAnalysis.RequiredSpaces,
		NetImpact:           res.FinancialImpact.NetImpact,
		Classification:      res.Classification,
		Configuration:       res.Configuration,
	}
}

// Rank orders scenarios by IRR descending, then ROI descending, then
// required parking ascending, then name, and keeps the first topN. A
// negative topN keeps all.
func Rank(scenarios []Scenario, topN int) []Scenario {
	sort.SliceStable(scenarios, func(i, j int) bool {
		a, b := scenarios[i], scenarios[j]
		if a.EstimatedIRR != b.EstimatedIRR {
			return a.EstimatedIRR > b.EstimatedIRR
		}
		if a.EstimatedROI != b.EstimatedROI {
			return a.EstimatedROI > b.EstimatedROI
		}
		if a.RequiredParking != b.RequiredParking {
			return a.RequiredParking < b.RequiredParking
		}
		return a.ScenarioName < b.ScenarioName
	})
	if topN >= 0 && len(scenarios) > topN {
		scenarios = scenarios[:topN]
	}
	return scenarios
}
