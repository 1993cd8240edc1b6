package finance

import (
	"math"

	"github.com/ChicagoDave/siteplanner/pkg/spec"
)

// IRR search bounds. Returns outside them are reported at the bound.
const (
	MinIRR = -0.99
	MaxIRR = 10.0
)

// Returns are the ranking metrics of a scenario.
type Returns struct {
	IRR float64 `json:"estimated_irr"`
	ROI float64 `json:"estimated_roi"`
}

// EstimateReturns derives ROI as net impact over cost and IRR from a
// build-then-stabilize cash flow: cost is spread evenly over the build
// years, then a sale realizes revenue at completion, or a rental earns
// NOI for the hold period and is sold at the cap-rate value.
func EstimateReturns(im Impact, market spec.MarketAssumptions) Returns {
	var r Returns
	if im.AdditionalCost > 0 {
		r.ROI = im.NetImpact / im.AdditionalCost
	}
	r.IRR = IRR(CashFlows(im, market))
	return r
}

// CashFlows lays out yearly flows starting at year 0.
func CashFlows(im Impact, market spec.MarketAssumptions) []float64 {
	market = market.WithDefaults()
	build := max(market.BuildYears, 1)
	hold := max(market.HoldYears, 1)

	var flows []float64
	for y := 0; y < build; y++ {
		flows = append(flows, -im.AdditionalCost/float64(build))
	}
	if im.Strategy == spec.StrategySale {
		return append(flows, im.AdditionalRevenue)
	}
	for y := 0; y < hold; y++ {
		flows = append(flows, im.AnnualNOI)
	}
	flows[len(flows)-1] += im.AdditionalRevenue
	return flows
}

// NPV discounts flows at rate r, flow i at year i.
func NPV(r float64, flows []float64) float64 {
	v := 0.0
	for i, cf := range flows {
		v += cf / math.Pow(1+r, float64(i))
	}
	return v
}

// IRR finds the rate where NPV is zero by bisection over [MinIRR, MaxIRR].
// Flows that never change sign report the bound they tend to.
func IRR(flows []float64) float64 {
	lo, hi := MinIRR, MaxIRR
	npvLo := NPV(lo, flows)
	npvHi := NPV(hi, flows)
	if npvLo <= 0 {
		return lo
	}
	if npvHi >= 0 {
		return hi
	}
	for i := 0; i < 200 && hi-lo > 1e-12; i++ {
		mid := (lo + hi) / 2
		if NPV(mid, flows) > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}
