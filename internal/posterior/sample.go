// Package posterior holds the resampled posterior abundance ensemble and the
// coverage-consistent resampling that produces it.
package posterior

import (
	"github.com/ninanor/villrein-go/internal/timeseries"
)

// Sample is the unified posterior abundance ensemble, indexed by
// (draw, year, area). The area axis is alphabetical by canonical id and
// shared with every downstream table. Cells excluded by data quality rules
// are missing, never a numeric placeholder.
type Sample struct {
	AreaIDs []string        // alphabetical canonical ids
	Axis    timeseries.Axis // shared year axis
	Data    [][][]float64   // [draw][year][area]
}

// NumDraws returns the number of retained draws.
func (s *Sample) NumDraws() int {
	return len(s.Data)
}

// At returns the abundance at (draw, year index, area index).
func (s *Sample) At(draw, yearIdx, areaIdx int) float64 {
	return s.Data[draw][yearIdx][areaIdx]
}

// Trajectory returns one draw's abundance over the full year axis for one
// area. The returned slice is freshly allocated.
func (s *Sample) Trajectory(draw, areaIdx int) []float64 {
	out := make([]float64, s.Axis.Len())
	for y := range out {
		out[y] = s.Data[draw][y][areaIdx]
	}
	return out
}

// AreaIndex returns the position of a canonical area id on the area axis.
func (s *Sample) AreaIndex(id string) (int, bool) {
	for i, a := range s.AreaIDs {
		if a == id {
			return i, true
		}
	}
	return 0, false
}

// SummaryTable holds per (year, area) scalar summaries of the sample.
type SummaryTable struct {
	AreaIDs []string
	Axis    timeseries.Axis
	Cells   [][]timeseries.Summary // [year][area]
}

// Summarize computes the summary table from the sample itself, so summary
// moments and the draw array can never drift apart.
func (s *Sample) Summarize() *SummaryTable {
	st := &SummaryTable{
		AreaIDs: append([]string(nil), s.AreaIDs...),
		Axis:    s.Axis,
		Cells:   make([][]timeseries.Summary, s.Axis.Len()),
	}
	draws := make([]float64, s.NumDraws())
	for y := 0; y < s.Axis.Len(); y++ {
		st.Cells[y] = make([]timeseries.Summary, len(s.AreaIDs))
		for a := range s.AreaIDs {
			for d := range s.Data {
				draws[d] = s.Data[d][y][a]
			}
			st.Cells[y][a] = timeseries.Summarize(draws)
		}
	}
	return st
}

// Cell returns the summary for (year, area id), with ok false when either
// axis misses.
func (st *SummaryTable) Cell(year int, areaID string) (timeseries.Summary, bool) {
	y, ok := st.Axis.Index(year)
	if !ok {
		return timeseries.Summary{}, false
	}
	for i, a := range st.AreaIDs {
		if a == areaID {
			return st.Cells[y][i], true
		}
	}
	return timeseries.Summary{}, false
}
