// Package cost holds the injected unit-cost table the engine prices
// construction, parking and site work against.
package cost

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ChicagoDave/siteplanner/pkg/spec"
)

// ErrMissingItem is returned when the table has no entry for an item code.
var ErrMissingItem = errors.New("cost item not in table")

// Table is a read-only lookup from item code to unit cost. The zero value
// is an empty table.
type Table struct {
	name  string
	items map[string]float64
}

// Item is one table entry.
type Item struct {
	Code     string  `json:"code"`
	UnitCost float64 `json:"unit_cost"`
}

type tableFile struct {
	Name  string             `yaml:"name"`
	Items map[string]float64 `yaml:"items"`
}

// NewTable copies items into a table.
func NewTable(name string, items map[string]float64) Table {
	t := Table{name: name, items: make(map[string]float64, len(items))}
	for code, v := range items {
		t.items[code] = v
	}
	return t
}

// DefaultTable returns the baseline unit costs.
func DefaultTable() Table {
	return NewTable("default", map[string]float64{
		ItemConstructionResidential: ResidentialCostPerSqFt,
		ItemConstructionCommercial:  CommercialCostPerSqFt,
		ItemConstructionMixedUse:    MixedUseCostPerSqFt,
		ItemParkingSurface:          SurfaceCostPerSpace,
		ItemParkingGarage:           GarageCostPerSpace,
		ItemParkingUnderground:      UndergroundCostPerSpace,
		ItemSiteWork:                SiteWorkCostPerSqFt,
	})
}

// LoadTable reads a cost table from a YAML file with an items map.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("reading cost table: %w", err)
	}
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Table{}, fmt.Errorf("parsing cost table: %w", err)
	}
	for code, v := range f.Items {
		if math.IsNaN(v) || v < 0 {
			return Table{}, fmt.Errorf("cost item %s: unit cost must be non-negative (got %v)", code, v)
		}
	}
	name := f.Name
	if name == "" {
		name = path
	}
	return NewTable(name, f.Items), nil
}

// Name identifies where the table came from.
func (t Table) Name() string { return t.name }

// Lookup returns the unit cost for an item code.
func (t Table) Lookup(code string) (float64, error) {
	v, ok := t.items[code]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingItem, code)
	}
	return v, nil
}

// Items returns the entries sorted by code.
func (t Table) Items() []Item {
	out := make([]Item, 0, len(t.items))
	for code, v := range t.items {
		out = append(out, Item{Code: code, UnitCost: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ParkingItem returns the item code for a parking type's cost per space.
func ParkingItem(pt spec.ParkingType) string {
	return "parking." + string(pt)
}

// ConstructionItem returns the item code for a building type's cost per
// gross square foot.
func ConstructionItem(bt spec.BuildingType) string {
	return "construction." + strings.ReplaceAll(string(bt), "-", "_")
}

// SiteWorkModel prices grading and site preparation for a lot.
type SiteWorkModel interface {
	SiteWorkCost(lotAreaSqFt float64, t Table) (float64, error)
}

// PerSqFtSiteWork prices site work as a flat rate per square foot of lot,
// read from the ItemSiteWork entry.
type PerSqFtSiteWork struct{}

// SiteWorkCost implements SiteWorkModel.
func (PerSqFtSiteWork) SiteWorkCost(lotAreaSqFt float64, t Table) (float64, error) {
	rate, err := t.Lookup(ItemSiteWork)
	if err != nil {
		return 0, err
	}
	return rate * lotAreaSqFt, nil
}

// NoSiteWork prices site work at zero.
type NoSiteWork struct{}

// SiteWorkCost implements SiteWorkModel.
func (NoSiteWork) SiteWorkCost(float64, Table) (float64, error) { return 0, nil }

// AnnualDebtService uses the standard annuity formula.
// P * r(1+r)^n / ((1+r)^n - 1)
// At 0% interest, returns principal / term.
func AnnualDebtService(principal, rate float64, termYears int) float64 {
	if termYears <= 0 {
		return 0
	}
	if rate <= 0 {
		return principal / float64(termYears)
	}
	n := float64(termYears)
	factor := math.Pow(1+rate, n)
	return principal * rate * factor / (factor - 1)
}
