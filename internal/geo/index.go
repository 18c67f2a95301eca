package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/couchcryptid/weather-anomaly-service/internal/domain"
)

// Index answers point-in-polygon lookups against the loaded district
// boundaries. The boundary set is immutable after construction, so the
// index is safe for concurrent readers.
type Index struct {
	units []domain.SpatialUnit
}

// NewIndex builds an index over the given units.
func NewIndex(units []domain.SpatialUnit) *Index {
	return &Index{units: units}
}

// QueryResult is the outcome of a point lookup. Found reports whether any
// district contains the point; HasData whether that district has a valid
// anomaly result attached. A miss is an ordinary outcome, never an error.
type QueryResult struct {
	Found   bool                 `json:"found"`
	HasData bool                 `json:"has_data,omitempty"`
	Result  domain.AnomalyResult `json:"result,omitzero"`
}

// Locate returns the district containing the coordinate, if any.
// Districts are disjoint, so the first hit wins.
func (ix *Index) Locate(lat, lon float64) (domain.SpatialUnit, bool) {
	pt := orb.Point{lon, lat}
	for _, u := range ix.units {
		if planar.MultiPolygonContains(u.Boundary, pt) {
			return u, true
		}
	}
	return domain.SpatialUnit{}, false
}

// ResultLookup resolves a unit ID to its latest anomaly result.
type ResultLookup interface {
	ResultFor(unitID string) (domain.AnomalyResult, bool)
}

// Query combines a point lookup with the latest finalized results.
func (ix *Index) Query(lat, lon float64, results ResultLookup) QueryResult {
	unit, ok := ix.Locate(lat, lon)
	if !ok {
		return QueryResult{}
	}

	res, ok := results.ResultFor(unit.ID)
	if !ok {
		// Unit exists but was filtered out (no baseline) or no run has
		// finished yet.
		return QueryResult{
			Found:  true,
			Result: domain.AnomalyResult{UnitID: unit.ID, UnitName: unit.Name},
		}
	}
	return QueryResult{Found: true, HasData: true, Result: res}
}
