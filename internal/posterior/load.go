package posterior

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ninanor/villrein-go/internal/areas"
	"github.com/ninanor/villrein-go/internal/errors"
	"github.com/ninanor/villrein-go/internal/timeseries"
)

// parseCell converts one CSV cell into a float, mapping the upstream
// missing markers to the canonical missing value.
func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" || s == "NaN" {
		return timeseries.Missing(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// LoadEnsembles reads all draws_<id>.csv files from dir, one matrix per
// configured area. The first row is a header of calendar years; each
// following row is one posterior draw. An area without a file is skipped,
// its reference value will come from the habitat regression.
func LoadEnsembles(dir string, reg *areas.Registry, axis timeseries.Axis) (map[string]*RawEnsemble, error) {
	out := make(map[string]*RawEnsemble)
	for _, id := range reg.IDs() {
		path := filepath.Join(dir, "draws_"+id+".csv")
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.New(err).
				Component("posterior").
				Category(errors.CategoryFileIO).
				FileContext(path).
				Build()
		}
		ens, err := readEnsemble(f, id, axis)
		f.Close()
		if err != nil {
			return nil, errors.New(err).
				Component("posterior").
				Category(errors.CategoryFileParsing).
				FileContext(path).
				Build()
		}
		out[id] = ens
	}
	return out, nil
}

func readEnsemble(r io.Reader, areaID string, axis timeseries.Axis) (*RawEnsemble, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading year header: %w", err)
	}
	cols := make([]int, len(header)) // column -> axis index, -1 when off axis
	for i, h := range header {
		year, err := strconv.Atoi(strings.TrimSpace(h))
		if err != nil {
			return nil, fmt.Errorf("header column %d (%q) is not a year: %w", i, h, err)
		}
		if yi, ok := axis.Index(year); ok {
			cols[i] = yi
		} else {
			cols[i] = -1
		}
	}

	ens := &RawEnsemble{AreaID: areaID, Axis: axis}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]float64, axis.Len())
		for i := range row {
			row[i] = timeseries.Missing()
		}
		for i, cell := range rec {
			if i >= len(cols) || cols[i] < 0 {
				continue
			}
			v, err := parseCell(cell)
			if err != nil {
				return nil, fmt.Errorf("draw %d column %d: %w", len(ens.Draws), i, err)
			}
			row[cols[i]] = v
		}
		ens.Draws = append(ens.Draws, row)
	}
	if len(ens.Draws) == 0 {
		return nil, fmt.Errorf("ensemble for %q has no draws", areaID)
	}
	return ens, nil
}

// LoadIntervals reads the reported credible bands from a flat CSV with
// columns area, year, lower, upper. Area names resolve through the registry,
// an unresolvable name is fatal.
func LoadIntervals(path string, reg *areas.Registry) (IntervalTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("posterior").
			Category(errors.CategoryFileIO).
			FileContext(path).
			Build()
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.New(err).
			Component("posterior").
			Category(errors.CategoryFileParsing).
			FileContext(path).
			Build()
	}
	col, err := columnIndex(header, "area", "year", "lower", "upper")
	if err != nil {
		return nil, errors.New(err).
			Component("posterior").
			Category(errors.CategoryFileParsing).
			FileContext(path).
			Build()
	}

	table := make(IntervalTable)
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.New(err).
				Component("posterior").
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
				Component("posterior").
				Category(errors.CategoryFileParsing).
				FileContext(path).
				Build()
		}
		lo, err1 := parseCell(rec[col["lower"]])
		hi, err2 := parseCell(rec[col["upper"]])
		if err1 != nil || err2 != nil {
			return nil, errors.Newf("line %d: bad interval bounds", line).
				Component("posterior").
				Category(errors.CategoryFileParsing).
				FileContext(path).
				Build()
		}
		if timeseries.IsMissing(lo) || timeseries.IsMissing(hi) {
			continue
		}
		if table[area.ID] == nil {
			table[area.ID] = make(map[int]Interval)
		}
		table[area.ID][year] = Interval{Lower: lo, Upper: hi}
	}
	return table, nil
}

// columnIndex finds the named columns in a header, case insensitive.
func columnIndex(header []string, names ...string) (map[string]int, error) {
	col := make(map[string]int, len(names))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	out := make(map[string]int, len(names))
	for _, n := range names {
		i, ok := col[n]
		if !ok {
			return nil, fmt.Errorf("missing column %q in header %v", n, header)
		}
		out[n] = i
	}
	return out, nil
}
