// Package growth fits the stochastic Ricker growth model that yields each
// management area's carrying capacity.
//
// The model for one area is
//
//	N_t = X_{t-1} * exp(r*(1 - X_{t-1}/K) + c*z_t)
//
// with iid standard normal process noise z_t and a fixed, small lognormal
// observation penalty that makes the optimization well-posed. On the log
// scale both noise terms are Gaussian, so marginalizing the latent z_t is
// exact: the log residual has variance c^2 + sigma_obs^2 and the marginal
// likelihood is available in closed form, gradient included.
package growth

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/errors"
	"github.com/ninanor/villrein-go/internal/timeseries"
)

// Sentinel errors for per-unit fit failures. These are recoverable at the
// (area, draw) granularity and must never abort the whole pipeline.
var (
	ErrInsufficientData = errors.NewStd("growth: fewer paired observations than fit.minpairs")
	ErrNotConverged     = errors.NewStd("growth: optimizer did not converge")
	ErrNonPhysical      = errors.NewStd("growth: fitted carrying capacity is not positive")
	ErrImplausible      = errors.NewStd("growth: fitted carrying capacity below max observed abundance")
)

// Config are the estimator's tuning knobs. See conf.FitSettings for the
// corresponding configuration keys.
type Config struct {
	RInit             float64
	KInitFactor       float64
	LogCInit          float64
	SigmaObs          float64
	MaxIterations     int
	GradientTolerance float64
	MinPairs          int
	PlausibilityCheck bool
}

// ConfigFromSettings maps the loaded fit settings onto an estimator config.
func ConfigFromSettings(s conf.FitSettings) Config {
	return Config{
		RInit:             s.RInit,
		KInitFactor:       s.KInitFactor,
		LogCInit:          s.LogCInit,
		SigmaObs:          s.SigmaObs,
		MaxIterations:     s.MaxIterations,
		GradientTolerance: s.GradientTolerance,
		MinPairs:          s.MinPairs,
		PlausibilityCheck: s.PlausibilityCheck,
	}
}

// Fit is the result of one growth model estimation.
type Fit struct {
	R     float64 // intrinsic growth rate
	K     float64 // carrying capacity
	C     float64 // process noise scale
	SEK   float64 // standard error of K, missing when the Hessian is singular
	NLL   float64 // negative log likelihood at the optimum
	Pairs int     // paired observations used
}

// Pairs builds the pairwise-complete (N_t, X_{t-1}) series from aligned
// pre-harvest and post-harvest trajectories. Index t of ntot pairs with
// index t-1 of xtot; pairs where either side is missing or non-positive are
// dropped.
func Pairs(ntot, xtot []float64) (n, x []float64) {
	for t := 1; t < len(ntot) && t-1 < len(xtot); t++ {
		nv, xv := ntot[t], xtot[t-1]
		if timeseries.IsMissing(nv) || timeseries.IsMissing(xv) {
			continue
		}
		if nv <= 0 || xv <= 0 {
			continue
		}
		n = append(n, nv)
		x = append(x, xv)
	}
	return n, x
}

// Estimate fits the growth model to the paired series (n_t, x_{t-1}).
// Estimation failures come back as one of the sentinel errors wrapped with
// context; the caller records the absence of an estimate and moves on.
func Estimate(n, x []float64, cfg Config) (*Fit, error) {
	if len(n) != len(x) {
		return nil, errors.Newf("growth: paired series length mismatch %d vs %d", len(n), len(x)).
			Component("growth").
			Category(errors.CategoryModelFit).
			Build()
	}
	if len(n) < cfg.MinPairs {
		return nil, errors.New(ErrInsufficientData).
			Component("growth").
			Category(errors.CategoryInsufficientData).
			Context("pairs", len(n)).
			Context("minpairs", cfg.MinPairs).
			Build()
	}

	// precompute the log data once, the optimizer only sees residuals
	y := make([]float64, len(n))
	lx := make([]float64, len(n))
	var maxN float64
	for i := range n {
		y[i] = math.Log(n[i])
		lx[i] = math.Log(x[i])
		if n[i] > maxN {
			maxN = n[i]
		}
	}

	obsVar := cfg.SigmaObs * cfg.SigmaObs

	nll := func(theta []float64) float64 {
		r, k, logc := theta[0], theta[1], theta[2]
		if k == 0 || math.IsNaN(k) {
			return math.Inf(1)
		}
		c := math.Exp(logc)
		s2 := c*c + obsVar
		var sum float64
		for i := range y {
			e := y[i] - (lx[i] + r*(1-x[i]/k))
			sum += 0.5*math.Log(s2) + e*e/(2*s2)
		}
		return sum
	}

	grad := func(g, theta []float64) {
		r, k, logc := theta[0], theta[1], theta[2]
		c := math.Exp(logc)
		s2 := c*c + obsVar
		c2 := c * c
		g[0], g[1], g[2] = 0, 0, 0
		if k == 0 || math.IsNaN(k) {
			return
		}
		for i := range y {
			e := y[i] - (lx[i] + r*(1-x[i]/k))
			g[0] += -e * (1 - x[i]/k) / s2
			g[1] += -e * r * x[i] / (k * k) / s2
			g[2] += c2 * (1/s2 - e*e/(s2*s2))
		}
	}

	problem := optimize.Problem{Func: nll, Grad: grad}
	theta0 := []float64{cfg.RInit, cfg.KInitFactor * maxN, cfg.LogCInit}

	settings := &optimize.Settings{
		GradientThreshold: cfg.GradientTolerance,
		MajorIterations:   cfg.MaxIterations,
	}

	result, err := optimize.Minimize(problem, theta0, settings, &optimize.BFGS{})
	if err != nil {
		return nil, errors.New(errors.Join(ErrNotConverged, err)).
			Component("growth").
			Category(errors.CategoryModelFit).
			Build()
	}
	if !converged(result.Status) {
		return nil, errors.New(ErrNotConverged).
			Component("growth").
			Category(errors.CategoryModelFit).
			Context("status", result.Status.String()).
			Build()
	}

	r, k, logc := result.X[0], result.X[1], result.X[2]
	if math.IsNaN(k) || math.IsInf(k, 0) || k <= 0 {
		return nil, errors.New(ErrNonPhysical).
			Component("growth").
			Category(errors.CategoryModelFit).
			Context("k", k).
			Build()
	}
	if cfg.PlausibilityCheck && k < maxN {
		return nil, errors.New(ErrImplausible).
			Component("growth").
			Category(errors.CategoryModelFit).
			Context("k", k).
			Context("max_observed", maxN).
			Build()
	}

	fit := &Fit{
		R:     r,
		K:     k,
		C:     math.Exp(logc),
		SEK:   standardErrorK(nll, result.X),
		NLL:   result.F,
		Pairs: len(n),
	}
	return fit, nil
}

// converged reports whether an optimizer status counts as a successful fit.
// Hitting the iteration budget does not.
func converged(s optimize.Status) bool {
	switch s {
	case optimize.GradientThreshold,
		optimize.FunctionConvergence,
		optimize.StepConvergence,
		optimize.FunctionThreshold:
		return true
	default:
		return false
	}
}

// standardErrorK extracts se(K) from the inverse of the numeric Hessian at
// the optimum. A singular or non positive-definite Hessian yields missing.
func standardErrorK(nll func([]float64) float64, theta []float64) float64 {
	h := mat.NewSymDense(len(theta), nil)
	fd.Hessian(h, nll, theta, nil)

	var chol mat.Cholesky
	if ok := chol.Factorize(h); !ok {
		return timeseries.Missing()
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return timeseries.Missing()
	}
	v := inv.At(1, 1)
	if v <= 0 || math.IsNaN(v) {
		return timeseries.Missing()
	}
	return math.Sqrt(v)
}
