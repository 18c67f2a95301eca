package domain

import "time"

// ForecastHorizonDays is the fixed forward window length.
const ForecastHorizonDays = 16

// BaselineStore holds at most one baseline record per unit name.
// It is populated once at startup and read-only afterwards.
type BaselineStore struct {
	records map[string]HistoricalBaseline
}

// NewBaselineStore creates an empty store.
func NewBaselineStore() *BaselineStore {
	return &BaselineStore{records: make(map[string]HistoricalBaseline)}
}

// Put inserts or replaces the record for b.UnitName.
func (s *BaselineStore) Put(b HistoricalBaseline) {
	s.records[b.UnitName] = b
}

// Lookup returns the record for the given unit name. A missing record is
// an expected state, not an error: units outside the baseline dataset
// simply produce invalid anomaly results.
func (s *BaselineStore) Lookup(name string) (HistoricalBaseline, bool) {
	b, ok := s.records[name]
	return b, ok
}

// Len returns the number of stored records.
func (s *BaselineStore) Len() int {
	return len(s.records)
}

// InterpolateBaseline computes the baseline expectation for the 16-day
// window starting at start, from the unit's 12 monthly normals.
//
// Within a single month the monthly value is scaled by 16 over the month
// length — the calendar table for precipitation, a fixed 30 days for
// temperature. When the window crosses a month boundary, each month's
// value is weighted by its day share over that month's calendar length:
// d1 days remain in the start month (counting the start day itself) and
// d2 = 16 − d1 fall in the next.
func InterpolateBaseline(p Parameter, start time.Time, monthly [12]float64) float64 {
	m := int(start.Month()) - 1
	d1 := daysInMonth[m] - float64(start.Day()) + 1

	if d1 >= ForecastHorizonDays {
		if p == Temperature {
			return monthly[m] * ForecastHorizonDays / 30
		}
		return monthly[m] * ForecastHorizonDays / daysInMonth[m]
	}

	d2 := ForecastHorizonDays - d1
	next := (m + 1) % 12
	return monthly[m]/daysInMonth[m]*d1 + monthly[next]/daysInMonth[next]*d2
}
