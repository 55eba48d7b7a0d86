// Package harvest loads the annual hunting removal records and pivots them
// to the shared (area, year) layout.
package harvest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ninanor/villrein-go/internal/areas"
	"github.com/ninanor/villrein-go/internal/errors"
	"github.com/ninanor/villrein-go/internal/timeseries"
)

// Table holds total harvested animals per (area, year), aligned to the
// shared year axis. Years without a record count as zero removal.
type Table struct {
	Axis timeseries.Axis
	rows map[string][]float64 // area id -> per-year totals
}

// At returns the harvest for (area id, year), zero when no record exists.
func (t *Table) At(areaID string, year int) float64 {
	yi, ok := t.Axis.Index(year)
	if !ok {
		return 0
	}
	row, ok := t.rows[areaID]
	if !ok {
		return 0
	}
	return row[yi]
}

// Series returns the per-year harvest vector for one area, aligned to the
// axis. The returned slice is freshly allocated.
func (t *Table) Series(areaID string) []float64 {
	out := make([]float64, t.Axis.Len())
	if row, ok := t.rows[areaID]; ok {
		copy(out, row)
	}
	return out
}

// Load reads the flat harvest file (columns area, year, harvested) and
// pivots it into the wide table. Area names resolve through the registry;
// an unresolvable name or a negative total is fatal.
func Load(path string, reg *areas.Registry, axis timeseries.Axis) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("harvest").
			Category(errors.CategoryFileIO).
			FileContext(path).
			Build()
	}
	defer f.Close()
	return Read(f, path, reg, axis)
}

// Read parses harvest records from an open reader; path is only used in
// error context.
func Read(r io.Reader, path string, reg *areas.Registry, axis timeseries.Axis) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.New(err).
			Component("harvest").
			Category(errors.CategoryFileParsing).
			FileContext(path).
			Build()
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, need := range []string{"area", "year", "harvested"} {
		if _, ok := col[need]; !ok {
			return nil, errors.Newf("harvest file missing column %q", need).
				Component("harvest").
				Category(errors.CategoryFileParsing).
				FileContext(path).
				Build()
		}
	}

	table := &Table{Axis: axis, rows: make(map[string][]float64)}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.New(err).
				Component("harvest").
				Category(errors.CategoryFileParsing).
				FileContext(path).
				Context("line", line).
				Build()
		}

		area, err := reg.Resolve(rec[col["area"]])
		if err != nil {
			return nil, err
		}
		year, err := strconv.Atoi(strings.TrimSpace(rec[col["year"]]))
		if err != nil {
			return nil, errors.Newf("line %d: bad year %q", line, rec[col["year"]]).
				Component("harvest").
				Category(errors.CategoryFileParsing).
				FileContext(path).
				Build()
		}
		total, err := strconv.ParseFloat(strings.TrimSpace(rec[col["harvested"]]), 64)
		if err != nil {
			return nil, errors.Newf("line %d: bad harvest total %q", line, rec[col["harvested"]]).
				Component("harvest").
				Category(errors.CategoryFileParsing).
				FileContext(path).
				Build()
		}
		if total < 0 {
			return nil, errors.Newf("line %d: negative harvest total %g for %s %d",
				line, total, area.ID, year).
				Component("harvest").
				Category(errors.CategoryValidation).
				FileContext(path).
				Build()
		}

		yi, ok := axis.Index(year)
		if !ok {
			continue // records outside the model horizon are irrelevant
		}
		if table.rows[area.ID] == nil {
			table.rows[area.ID] = make([]float64, axis.Len())
		}
		table.rows[area.ID][yi] += total
	}
	return table, nil
}
