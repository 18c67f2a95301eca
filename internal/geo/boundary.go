// Package geo loads the district boundary dataset and answers
// point-in-polygon queries against it.
package geo

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/weather-anomaly-service/internal/domain"
)

// nameProperty is the GeoJSON feature property carrying the district's
// display name — the join key into the baseline store.
const nameProperty = "name"

// LoadUnits reads a GeoJSON FeatureCollection of district polygons.
// Features without a name or without polygonal geometry are rejected:
// the boundary dataset is reference data and must be well-formed.
func LoadUnits(path string) ([]domain.SpatialUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boundary file: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse boundary file %s: %w", path, err)
	}

	units := make([]domain.SpatialUnit, 0, len(fc.Features))
	for i, f := range fc.Features {
		name := f.Properties.MustString(nameProperty, "")
		if name == "" {
			return nil, fmt.Errorf("boundary feature %d: missing %q property", i, nameProperty)
		}

		boundary, err := toMultiPolygon(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("boundary feature %q: %w", name, err)
		}

		id := f.Properties.MustString("id", "")
		if id == "" {
			id = fmt.Sprintf("unit-%03d", i)
		}

		units = append(units, domain.SpatialUnit{
			ID:       id,
			Name:     name,
			Boundary: boundary,
		})
	}
	return units, nil
}

func toMultiPolygon(g orb.Geometry) (orb.MultiPolygon, error) {
	switch geom := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{geom}, nil
	case orb.MultiPolygon:
		return geom, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %T", g)
	}
}
