package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/vaccination-data-etl/internal/domain"
	"github.com/couchcryptid/vaccination-data-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Extractor reads every input table of a run.
type Extractor interface {
	Extract(ctx context.Context) (domain.Inputs, error)
}

// Loader publishes the transformed dataset to one destination.
type Loader interface {
	Name() string
	Load(ctx context.Context, ds domain.Dataset) error
}

// Pipeline orchestrates one extract-transform-load run.
type Pipeline struct {
	extractor Extractor
	loaders   []Loader
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	tracer    trace.Tracer
	workers   int
	ready     atomic.Bool
	status    atomic.Pointer[Status]
}

// Run states reported by Status.
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// Status summarizes the latest run for the status endpoint.
type Status struct {
	RunID      string     `json:"run_id,omitempty"`
	State      string     `json:"state"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Locations  int        `json:"locations,omitempty"`
	Series     int        `json:"series,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// New creates a Pipeline. Loaders run in the given order. workers bounds the
// number of locations transformed concurrently.
func New(e Extractor, loaders []Loader, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		extractor: e,
		loaders:   loaders,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		tracer:    otel.Tracer(observability.TracerName),
		workers:   workers,
	}
}

// CheckReadiness returns nil once the inputs of the current run were read.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not read its inputs yet")
	}
	return nil
}

// Status returns a snapshot of the latest run.
func (p *Pipeline) Status() Status {
	if st := p.status.Load(); st != nil {
		return *st
	}
	return Status{State: StateIdle}
}

// Run executes the pipeline once and returns the dataset handed to the loaders.
// Any schema, population, sanity or load error aborts the run.
func (p *Pipeline) Run(ctx context.Context) (domain.Dataset, error) {
	runID := uuid.NewString()
	now := p.clock.Now().UTC()
	today := domain.Truncate(now)
	logger := p.logger.With("run_id", runID)

	ctx, span := p.tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("today", today.Format(time.DateOnly)),
	))
	defer span.End()

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	p.status.Store(&Status{RunID: runID, State: StateRunning, StartedAt: &now})

	logger.Info("pipeline started", "today", today.Format(time.DateOnly), "workers", p.workers)

	ds, err := p.run(ctx, logger, runID, now, today)
	if err != nil {
		p.countFailure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("pipeline failed", "error", err)
		finished := p.clock.Now().UTC()
		p.status.Store(&Status{RunID: runID, State: StateFailed, StartedAt: &now, FinishedAt: &finished, Error: err.Error()})
		return domain.Dataset{}, err
	}

	finished := p.clock.Now().UTC()
	p.status.Store(&Status{
		RunID:      runID,
		State:      StateSucceeded,
		StartedAt:  &now,
		FinishedAt: &finished,
		Locations:  ds.Coverage.Locations,
		Series:     len(ds.Series),
	})
	p.metrics.LastSuccess.Set(float64(finished.Unix()))
	logger.Info("pipeline finished",
		"locations", ds.Coverage.Locations,
		"series", len(ds.Series),
		"world_population_share", ds.Coverage.WorldPopulationShare,
		"duration", p.clock.Since(now),
	)
	return ds, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, runID string, now, today time.Time) (domain.Dataset, error) {
	var in domain.Inputs
	err := p.stage(ctx, "extract", func(ctx context.Context) error {
		var err error
		in, err = p.extractor.Extract(ctx)
		return err
	})
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("extract: %w", err)
	}
	p.ready.Store(true)

	var (
		reported []domain.Series
		raw      map[string][]domain.Observation
	)
	err = p.stage(ctx, "transform", func(ctx context.Context) error {
		var err error
		reported, raw, err = p.buildLocations(ctx, logger, in, today)
		return err
	})
	if err != nil {
		return domain.Dataset{}, err
	}

	var (
		aggregates []domain.Series
		names      map[string]bool
	)
	err = p.stage(ctx, "aggregate", func(context.Context) error {
		var err error
		aggregates, names, err = p.buildAggregates(logger, in, reported, today)
		return err
	})
	if err != nil {
		return domain.Dataset{}, err
	}

	var (
		series   []domain.Series
		coverage domain.Coverage
	)
	err = p.stage(ctx, "per_capita", func(context.Context) error {
		var err error
		series, coverage, err = domain.DerivePerCapita(slices.Concat(reported, aggregates), in.Population, in.Geography, names)
		return err
	})
	if err != nil {
		return domain.Dataset{}, err
	}

	if err := p.stage(ctx, "sanity", func(context.Context) error { return domain.CheckSanity(series) }); err != nil {
		return domain.Dataset{}, err
	}

	ds := domain.Dataset{
		RunID:       runID,
		GeneratedAt: now,
		Metadata:    in.Metadata,
		Raw:         raw,
		Series:      series,
		ISOCodes:    in.ISOCodes,
		Aggregates:  names,
		Coverage:    coverage,
	}
	p.metrics.CoverageLocations.Set(float64(coverage.Locations))
	p.metrics.CoverageWorldShare.Set(coverage.WorldPopulationShare)
	for _, s := range series {
		p.metrics.RowsProduced.Add(float64(len(s.Rows)))
	}

	for _, l := range p.loaders {
		err := p.stage(ctx, "load_"+l.Name(), func(ctx context.Context) error { return l.Load(ctx, ds) })
		if err != nil {
			p.metrics.LoadErrors.WithLabelValues(l.Name()).Inc()
			return domain.Dataset{}, fmt.Errorf("load %s: %w", l.Name(), err)
		}
		logger.Info("dataset loaded", "sink", l.Name())
	}
	return ds, nil
}

// buildLocations validates and reconstructs every included location on a
// bounded worker pool, then collects the results in metadata order.
func (p *Pipeline) buildLocations(ctx context.Context, logger *slog.Logger, in domain.Inputs, today time.Time) ([]domain.Series, map[string][]domain.Observation, error) {
	var locations []string
	for _, m := range in.Metadata {
		if m.Include {
			locations = append(locations, m.Location)
		}
	}

	series := make([]domain.Series, len(locations))
	raws := make([][]domain.Observation, len(locations))
	errs := make([]error, len(locations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, loc := range locations {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			obs := in.Observations[loc]
			if err := domain.ValidateObservations(loc, obs, today); err != nil {
				errs[i] = err
				return nil
			}
			raws[i] = domain.CleanObservations(obs, today)
			series[i] = domain.BuildSeries(loc, obs, today)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := errors.Join(errs...); err != nil {
		return nil, nil, err
	}

	out := make([]domain.Series, 0, len(series))
	raw := make(map[string][]domain.Observation, len(series))
	for i, s := range series {
		if len(s.Rows) == 0 {
			logger.Warn("location has no reported counters, skipping", "location", locations[i])
			continue
		}
		out = append(out, s)
		raw[s.Location] = raws[i]
		p.metrics.LocationsProcessed.Inc()
		logger.Debug("location built", "location", s.Location, "rows", len(s.Rows))
	}
	return out, raw, nil
}

func (p *Pipeline) buildAggregates(logger *slog.Logger, in domain.Inputs, reported []domain.Series, today time.Time) ([]domain.Series, map[string]bool, error) {
	specs := domain.DefaultAggregates(in.Continents, in.EUMembers, in.Geography)
	names := domain.AggregateNames(specs)

	errs := []error{domain.ValidateAggregates(specs)}
	for _, s := range reported {
		if names[s.Location] {
			errs = append(errs, fmt.Errorf("%w %q: name is also a real location", domain.ErrInvalidAggregate, s.Location))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, nil, err
	}

	var out []domain.Series
	for _, spec := range specs {
		agg, ok := domain.BuildAggregate(spec, reported, names, today)
		if !ok {
			logger.Warn("aggregate has no members with data, skipping", "aggregate", spec.Name)
			delete(names, spec.Name)
			continue
		}
		out = append(out, agg)
		p.metrics.AggregatesBuilt.Inc()
	}
	return out, names, nil
}

// stage runs fn inside a span and records its duration.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, name)
	defer span.End()

	start := p.clock.Now()
	err := fn(ctx)
	p.metrics.StageDuration.WithLabelValues(name).Observe(p.clock.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Pipeline) countFailure(err error) {
	for kind, target := range map[string]error{
		"schema":     domain.ErrSchema,
		"population": domain.ErrMissingPopulation,
		"sanity":     domain.ErrSanity,
		"aggregate":  domain.ErrInvalidAggregate,
	} {
		if errors.Is(err, target) {
			p.metrics.ValidationErrors.WithLabelValues(kind).Inc()
		}
	}
}
