// validate.go: validation of loaded settings before any pipeline stage runs.
package conf

import (
	"fmt"

	"github.com/ninanor/villrein-go/internal/errors"
)

// ValidateSettings checks a loaded Settings value for configuration errors
// that would otherwise surface deep inside a pipeline stage.
func ValidateSettings(settings *Settings) error {
	var errs []error

	if settings.Years.Start >= settings.Years.End {
		errs = append(errs, fmt.Errorf("years.start (%d) must be before years.end (%d)",
			settings.Years.Start, settings.Years.End))
	}
	for _, y := range settings.Years.Assessment {
		if y < settings.Years.Start || y > settings.Years.End {
			errs = append(errs, fmt.Errorf("assessment year %d outside model horizon %d..%d",
				y, settings.Years.Start, settings.Years.End))
		}
	}

	if len(settings.Areas) == 0 {
		errs = append(errs, fmt.Errorf("no management areas configured"))
	}
	seen := make(map[string]bool, len(settings.Areas))
	for i := range settings.Areas {
		a := &settings.Areas[i]
		if a.ID == "" {
			errs = append(errs, fmt.Errorf("area %q has no canonical id", a.Name))
			continue
		}
		if seen[a.ID] {
			errs = append(errs, fmt.Errorf("duplicate area id %q", a.ID))
		}
		seen[a.ID] = true
		if a.AreaKm2 <= 0 {
			errs = append(errs, fmt.Errorf("area %q has non-positive habitat area %.1f km2", a.ID, a.AreaKm2))
		}
		for _, w := range a.Exclude {
			if w.From > w.To {
				errs = append(errs, fmt.Errorf("area %q exclusion window %d..%d is inverted", a.ID, w.From, w.To))
			}
		}
	}

	if settings.Sampler.Size <= 0 {
		errs = append(errs, fmt.Errorf("sampler.size must be positive, got %d", settings.Sampler.Size))
	}
	if settings.Sampler.Coverage < 0 || settings.Sampler.Coverage > 1 {
		errs = append(errs, fmt.Errorf("sampler.coverage must be in [0,1], got %g", settings.Sampler.Coverage))
	}

	if settings.Fit.SigmaObs <= 0 {
		errs = append(errs, fmt.Errorf("fit.sigmaobs must be positive, got %g", settings.Fit.SigmaObs))
	}
	if settings.Fit.MinPairs < 3 {
		errs = append(errs, fmt.Errorf("fit.minpairs must be at least 3, got %d", settings.Fit.MinPairs))
	}

	if settings.Reference.MinAreas < 3 {
		errs = append(errs, fmt.Errorf("reference.minareas must be at least 3, got %d", settings.Reference.MinAreas))
	}

	if settings.Survey.DetectabilityMean <= 0 || settings.Survey.DetectabilityMean > 1 {
		errs = append(errs, fmt.Errorf("survey.detectabilitymean must be in (0,1], got %g",
			settings.Survey.DetectabilityMean))
	}

	if len(errs) > 0 {
		return errors.New(errors.Join(errs...)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}
