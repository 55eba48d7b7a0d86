// Package pipeline orchestrates the indicator stages end to end. Every
// stage checkpoints its result as an artifact; a later invocation reuses
// the checkpoint unless forced to recompute, so a failed run resumes where
// it stopped instead of starting over.
package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/ninanor/villrein-go/internal/areas"
	"github.com/ninanor/villrein-go/internal/artifact"
	"github.com/ninanor/villrein-go/internal/capacity"
	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/datastore"
	"github.com/ninanor/villrein-go/internal/errors"
	"github.com/ninanor/villrein-go/internal/growth"
	"github.com/ninanor/villrein-go/internal/harvest"
	"github.com/ninanor/villrein-go/internal/indicator"
	"github.com/ninanor/villrein-go/internal/logging"
	"github.com/ninanor/villrein-go/internal/posterior"
	"github.com/ninanor/villrein-go/internal/refvalue"
	"github.com/ninanor/villrein-go/internal/survey"
	"github.com/ninanor/villrein-go/internal/timeseries"
)

// Pipeline wires the stages together over one artifact store.
type Pipeline struct {
	Settings *conf.Settings
	Registry *areas.Registry
	Axis     timeseries.Axis

	store *artifact.Store
	log   *slog.Logger
}

// New builds a pipeline from validated settings.
func New(settings *conf.Settings) (*Pipeline, error) {
	reg, err := areas.NewRegistry(settings.Areas)
	if err != nil {
		return nil, err
	}
	store, err := artifact.NewStore(settings.Output.ArtifactDir)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		Settings: settings,
		Registry: reg,
		Axis:     timeseries.Axis{Start: settings.Years.Start, End: settings.Years.End},
		store:    store,
		log:      logging.ForStage("pipeline"),
	}

	digest, err := configDigest(settings)
	if err != nil {
		return nil, err
	}
	changed, err := store.EnsureConfigDigest(digest)
	if err != nil {
		return nil, err
	}
	if changed {
		p.log.Warn("configuration changed since last run, existing checkpoints may be stale",
			"artifact_dir", settings.Output.ArtifactDir)
	}
	return p, nil
}

// configDigest fingerprints the settings that shape checkpoint contents.
func configDigest(settings *conf.Settings) (string, error) {
	raw, err := yaml.Marshal(settings)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sha256.Sum256(raw)), nil
}

// Store exposes the artifact store, mainly for run identity lookups.
func (p *Pipeline) Store() *artifact.Store {
	return p.store
}

// Sample produces the posterior abundance sample, reusing the checkpoint
// unless force is set.
func (p *Pipeline) Sample(force bool) (*posterior.Sample, error) {
	if !force && p.store.Exists(artifact.PosteriorSample) {
		var s posterior.Sample
		if err := p.store.Load(artifact.PosteriorSample, &s); err != nil {
			return nil, err
		}
		p.log.Info("reusing posterior sample checkpoint", "draws", s.NumDraws())
		return &s, nil
	}

	raw, err := posterior.LoadEnsembles(p.Settings.Input.PosteriorDir, p.Registry, p.Axis)
	if err != nil {
		return nil, err
	}
	intervals, err := posterior.LoadIntervals(p.Settings.Input.IntervalFile, p.Registry)
	if err != nil {
		return nil, err
	}
	s, err := posterior.Resample(raw, intervals, p.Registry, p.Axis, p.Settings.Sampler)
	if err != nil {
		return nil, err
	}
	if err := p.store.Save(artifact.PosteriorSample, s); err != nil {
		return nil, err
	}
	p.log.Info("posterior sample written", "draws", s.NumDraws(), "areas", len(s.AreaIDs))
	return s, nil
}

// Detectability estimates the survey detectability, reusing the checkpoint
// unless force is set. Estimation needs the posterior sample, which is
// produced on demand.
func (p *Pipeline) Detectability(force bool) (survey.Detectability, error) {
	if !force && p.store.Exists(artifact.Detectability) {
		var d survey.Detectability
		if err := p.store.Load(artifact.Detectability, &d); err != nil {
			return survey.Detectability{}, err
		}
		p.log.Info("reusing detectability checkpoint", "mean", d.Mean)
		return d, nil
	}

	sample, err := p.Sample(false)
	if err != nil {
		return survey.Detectability{}, err
	}
	counts, err := survey.Load(p.Settings.Input.SurveyFile, p.Registry)
	if err != nil {
		return survey.Detectability{}, err
	}
	summary := sample.Summarize()
	d := survey.EstimateDetectability(counts, func(areaID string, year int) (float64, bool) {
		cell, ok := summary.Cell(year, areaID)
		if !ok || timeseries.IsMissing(cell.Mean) {
			return 0, false
		}
		return cell.Mean, true
	}, p.Settings.Survey)

	if err := p.store.Save(artifact.Detectability, d); err != nil {
		return survey.Detectability{}, err
	}
	p.log.Info("detectability written", "mean", d.Mean, "sd", d.SD)
	return d, nil
}

// Capacity fits the growth model over the full (area, draw) grid, reusing
// the checkpoint unless force is set.
func (p *Pipeline) Capacity(ctx context.Context, force bool) (*capacity.Sample, error) {
	if !force && p.store.Exists(artifact.CapacitySample) {
		var s capacity.Sample
		if err := p.store.Load(artifact.CapacitySample, &s); err != nil {
			return nil, err
		}
		p.log.Info("reusing carrying capacity checkpoint", "areas", len(s.AreaIDs))
		return &s, nil
	}

	sample, err := p.Sample(false)
	if err != nil {
		return nil, err
	}
	harv, err := harvest.Load(p.Settings.Input.HarvestFile, p.Registry, p.Axis)
	if err != nil {
		return nil, err
	}
	cc, err := capacity.Propagate(ctx, sample, harv, p.Registry,
		growth.ConfigFromSettings(p.Settings.Fit), p.Settings.Fit.Workers)
	if err != nil {
		return nil, err
	}
	if err := p.store.Save(artifact.CapacitySample, cc); err != nil {
		return nil, err
	}
	for _, s := range cc.Summarize() {
		p.log.Info("carrying capacity fitted", "area", s.AreaID,
			"median_k", s.Median, "successes", s.Successes, "failures", s.Failures)
	}
	return cc, nil
}

// Reference computes the per-area reference values, reusing the checkpoint
// unless force is set.
func (p *Pipeline) Reference(ctx context.Context, force bool) (*refvalue.Table, error) {
	if !force && p.store.Exists(artifact.ReferenceTable) {
		var t refvalue.Table
		if err := p.store.Load(artifact.ReferenceTable, &t); err != nil {
			return nil, err
		}
		p.log.Info("reusing reference table checkpoint", "areas", len(t.References))
		return &t, nil
	}

	cc, err := p.Capacity(ctx, false)
	if err != nil {
		return nil, err
	}
	t, err := refvalue.Compute(cc, p.Registry, p.Settings.Reference.MinAreas)
	if err != nil {
		return nil, err
	}
	if err := p.store.Save(artifact.ReferenceTable, t); err != nil {
		return nil, err
	}
	p.log.Info("reference table written", "areas", len(t.References))
	return t, nil
}

// Indicator assembles the published indicator table, reusing the
// checkpoint unless force is set.
func (p *Pipeline) Indicator(ctx context.Context, force bool) ([]indicator.Record, error) {
	if !force && p.store.Exists(artifact.IndicatorTable) {
		var records []indicator.Record
		if err := p.store.Load(artifact.IndicatorTable, &records); err != nil {
			return nil, err
		}
		p.log.Info("reusing indicator table checkpoint", "records", len(records))
		return records, nil
	}

	sample, err := p.Sample(false)
	if err != nil {
		return nil, err
	}
	det, err := p.Detectability(false)
	if err != nil {
		return nil, err
	}
	refs, err := p.Reference(ctx, false)
	if err != nil {
		return nil, err
	}
	counts, err := survey.Load(p.Settings.Input.SurveyFile, p.Registry)
	if err != nil {
		return nil, err
	}

	records := indicator.Assemble(sample.Summarize(), counts, det, refs,
		p.Settings.Years.Assessment)
	if err := p.store.Save(artifact.IndicatorTable, records); err != nil {
		return nil, err
	}
	p.log.Info("indicator table written", "records", len(records))
	return records, nil
}

// Run executes every stage in dependency order. With force set, all
// checkpoints are recomputed from the inputs.
func (p *Pipeline) Run(ctx context.Context, force bool) ([]indicator.Record, error) {
	if _, err := p.Sample(force); err != nil {
		return nil, err
	}
	if _, err := p.Detectability(force); err != nil {
		return nil, err
	}
	if _, err := p.Capacity(ctx, force); err != nil {
		return nil, err
	}
	if _, err := p.Reference(ctx, force); err != nil {
		return nil, err
	}
	return p.Indicator(ctx, force)
}

// Export writes the assembled indicator table to the configured database.
// The write only happens when confirm is set; a dry run reports what would
// be written and leaves the database untouched.
func (p *Pipeline) Export(ctx context.Context, confirm bool) error {
	records, err := p.Indicator(ctx, false)
	if err != nil {
		return err
	}
	if !confirm {
		p.log.Info("dry run, pass --confirm to write the indicator database",
			"records", len(records))
		return nil
	}

	ds := datastore.New(p.Settings)
	if ds == nil {
		return errors.Newf("no database output enabled in configuration").
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := ds.Open(); err != nil {
		return err
	}
	defer func() {
		if cerr := ds.Close(); cerr != nil {
			p.log.Error("failed to close indicator database", "error", cerr)
		}
	}()

	manifest, err := p.store.Manifest()
	if err != nil {
		return err
	}
	if err := ds.SaveIndicator(manifest.RunID, records); err != nil {
		return err
	}
	p.log.Info("indicator table exported", "records", len(records), "run_id", manifest.RunID)
	return nil
}
