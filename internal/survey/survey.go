// Package survey loads minimum count surveys and converts them to abundance
// estimates through the detectability scalar pair.
package survey

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ninanor/villrein-go/internal/areas"
	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/errors"
	"github.com/ninanor/villrein-go/internal/logging"
)

var logger *slog.Logger

func getLogger() *slog.Logger {
	if logger == nil {
		logger = logging.ForStage("survey")
	}
	return logger
}

// Count is one minimum count survey record.
type Count struct {
	AreaID string
	Year   int
	Count  float64
	Source string
}

// Detectability is the global scalar pair reducing a minimum count to an
// abundance estimate.
type Detectability struct {
	Mean float64
	SD   float64
}

// Estimate is a survey-based abundance estimate with uncertainty.
type Estimate struct {
	Mean float64
	SD   float64
	Q25  float64
	Q75  float64
}

// Abundance converts a minimum count to an abundance estimate. The count is
// divided by the detectability mean; the variance contribution of the
// uncertain detectability is propagated by the delta method, and quartile
// bounds follow from the normal approximation.
func (d Detectability) Abundance(count float64) Estimate {
	mean := count / d.Mean
	sd := count * d.SD / (d.Mean * d.Mean)
	if sd == 0 {
		return Estimate{Mean: mean, Q25: mean, Q75: mean}
	}
	n := distuv.Normal{Mu: mean, Sigma: sd}
	return Estimate{
		Mean: mean,
		SD:   sd,
		Q25:  n.Quantile(0.25),
		Q75:  n.Quantile(0.75),
	}
}

// EstimateDetectability derives the detectability pair from the ratio of
// minimum counts to model abundance where both exist for the same
// (area, year). With fewer than two overlapping cells the configured
// fallback pair is used.
func EstimateDetectability(counts []Count,
	modelMean func(areaID string, year int) (float64, bool),
	cfg conf.SurveySettings) Detectability {

	var ratios []float64
	for _, c := range counts {
		m, ok := modelMean(c.AreaID, c.Year)
		if !ok || m <= 0 {
			continue
		}
		ratio := c.Count / m
		if ratio > 0 && ratio <= 1 {
			ratios = append(ratios, ratio)
		}
	}
	if len(ratios) < 2 {
		getLogger().Warn("too few count/model overlaps, using configured detectability",
			"overlaps", len(ratios),
			"mean", cfg.DetectabilityMean, "sd", cfg.DetectabilitySD)
		return Detectability{Mean: cfg.DetectabilityMean, SD: cfg.DetectabilitySD}
	}
	d := Detectability{
		Mean: stat.Mean(ratios, nil),
		SD:   stat.StdDev(ratios, nil),
	}
	getLogger().Info("estimated detectability from surveys",
		"overlaps", len(ratios), "mean", d.Mean, "sd", d.SD)
	return d
}

// Load reads the minimum count file (columns area, year, count, source).
// Area names are transliterated and resolved through the registry; a name
// that fails to resolve is fatal.
func Load(path string, reg *areas.Registry) ([]Count, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("survey").
			Category(errors.CategoryFileIO).
			FileContext(path).
			Build()
	}
	defer f.Close()
	return read(f, path, reg)
}

func read(r io.Reader, path string, reg *areas.Registry) ([]Count, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.New(err).
			Component("survey").
			Category(errors.CategoryFileParsing).
			FileContext(path).
			Build()
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, need := range []string{"area", "year", "count"} {
		if _, ok := col[need]; !ok {
			return nil, errors.Newf("survey file missing column %q", need).
				Component("survey").
				Category(errors.CategoryFileParsing).
				FileContext(path).
				Build()
		}
	}
	srcCol, hasSrc := col["source"]

	var counts []Count
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.New(err).
				Component("survey").
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
				Component("survey").
				Category(errors.CategoryFileParsing).
				FileContext(path).
				Build()
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(rec[col["count"]]), 64)
		if err != nil || n < 0 {
			return nil, errors.Newf("line %d: bad minimum count %q", line, rec[col["count"]]).
				Component("survey").
				Category(errors.CategoryFileParsing).
				FileContext(path).
				Build()
		}

		c := Count{AreaID: area.ID, Year: year, Count: n}
		if hasSrc {
			c.Source = strings.TrimSpace(rec[srcCol])
		}
		counts = append(counts, c)
	}
	return counts, nil
}
