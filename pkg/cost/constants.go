package cost

// Baseline unit costs for the default table. Construction is per gross
// square foot, parking per space, site work per square foot of lot.
const (
	ResidentialCostPerSqFt = 245.0
	CommercialCostPerSqFt  = 285.0
	MixedUseCostPerSqFt    = 265.0

	SurfaceCostPerSpace     = 5500.0
	GarageCostPerSpace      = 28000.0
	UndergroundCostPerSpace = 45000.0

	SiteWorkCostPerSqFt = 12.0
)

// Item codes understood by the engine.
const (
	ItemConstructionResidential = "construction.residential"
	ItemConstructionCommercial  = "construction.commercial"
	ItemConstructionMixedUse    = "construction.mixed_use"
	ItemParkingSurface          = "parking.surface"
	ItemParkingGarage           = "parking.garage"
	ItemParkingUnderground      = "parking.underground"
	ItemSiteWork                = "sitework.per_sqft"
)
