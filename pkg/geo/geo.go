// Package geo reduces parcel geometry to buildable polygons and measures
// them. Geometry is carried as github.com/paulmach/orb values.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrNoGeometry is returned when no valid polygon ring exists.
var ErrNoGeometry = errors.New("no valid parcel geometry")

// CRS identifies how parcel coordinates are expressed.
type CRS string

const (
	// Geographic coordinates are WGS84 longitude/latitude in degrees.
	Geographic CRS = "wgs84"
	// ProjectedFeet coordinates are planar and measured in feet.
	ProjectedFeet CRS = "projected-feet"
)

// ParseCRS maps a project CRS name to a CRS, defaulting to Geographic.
func ParseCRS(name string) (CRS, error) {
	switch name {
	case "", "wgs84", "WGS84", "EPSG:4326":
		return Geographic, nil
	case "projected-feet", "feet":
		return ProjectedFeet, nil
	}
	return "", fmt.Errorf("unknown crs %q", name)
}

const (
	SqFtPerM2   = 10.763910416709722
	FtPerM      = 3.280839895013123
	SqFtPerAcre = 43560.0
)

// Decode parses GeoJSON into an orb geometry. It accepts a bare geometry,
// a Feature, or a FeatureCollection holding exactly one feature.
func Decode(data []byte) (orb.Geometry, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decoding geojson: %w", err)
	}

	switch probe.Type {
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("decoding feature: %w", err)
		}
		return f.Geometry, nil
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("decoding feature collection: %w", err)
		}
		if len(fc.Features) != 1 {
			return nil, fmt.Errorf("feature collection has %d features, want 1", len(fc.Features))
		}
		return fc.Features[0].Geometry, nil
	case "":
		return nil, errors.New("geojson object has no type")
	}

	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("decoding geometry: %w", err)
	}
	return g.Geometry(), nil
}
