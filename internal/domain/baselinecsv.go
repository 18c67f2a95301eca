package domain

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Baseline CSV layout: one row per (unit, parameter) with 12 monthly
// values, January first.
//
//	name,parameter,m01,m02,...,m12
//
// Rows for the same unit name merge into a single record. A header row
// starting with "name" is skipped.
const baselineFieldCount = 14

// LoadBaselines reads a baseline CSV file into a store.
func LoadBaselines(path string) (*BaselineStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open baseline file: %w", err)
	}
	defer f.Close()

	store, err := ReadBaselines(f)
	if err != nil {
		return nil, fmt.Errorf("read baseline file %s: %w", path, err)
	}
	return store, nil
}

// ReadBaselines parses baseline CSV rows from r into a store.
func ReadBaselines(r io.Reader) (*BaselineStore, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = baselineFieldCount

	store := NewBaselineStore()
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return store, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if line == 1 && strings.EqualFold(rec[0], "name") {
			continue
		}

		name := strings.TrimSpace(rec[0])
		param := Parameter(strings.ToLower(strings.TrimSpace(rec[1])))
		if name == "" || !param.Valid() {
			return nil, fmt.Errorf("row %d: invalid name %q or parameter %q", line, rec[0], rec[1])
		}

		var monthly [12]float64
		for i := 0; i < 12; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[2+i]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: month %d: %w", line, i+1, err)
			}
			monthly[i] = v
		}

		b, _ := store.Lookup(name)
		b.UnitName = name
		if param == Temperature {
			b.Temperature = monthly
		} else {
			b.Precipitation = monthly
		}
		store.Put(b)
	}
}
