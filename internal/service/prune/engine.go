package prune

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/aarondfrancis/eventable/internal/model"
	"github.com/aarondfrancis/eventable/internal/registry"
	"github.com/aarondfrancis/eventable/internal/storage"
	"github.com/aarondfrancis/eventable/internal/telemetry"
)

// ErrNoPruneableTypes is returned when discovery finds nothing to prune.
var ErrNoPruneableTypes = errors.New("prune: no pruneable event types found")

// CaseResult is the outcome for one pruned case.
type CaseResult struct {
	Alias  string
	TypeID model.TypeID
	Case   string // case name, from String()
	Value  string // persisted type_value
	Count  int64  // deleted, or deletable on a dry run
}

// Report summarizes one engine run.
type Report struct {
	RunID     uuid.UUID
	DryRun    bool
	Cases     []CaseResult
	Skipped   []Skip
	Total     int64
	StartedAt time.Time
	Duration  time.Duration
}

// Engine applies each pruneable case's retention policy, one set-based
// statement per case. It is synchronous and does not guard against
// overlapping runs.
type Engine struct {
	db        *storage.DB
	discovery *Discovery
	logger    *slog.Logger
	tracer    trace.Tracer

	rows     metric.Int64Counter
	duration metric.Float64Histogram
}

// NewEngine creates an Engine pruning db according to reg.
func NewEngine(db *storage.DB, reg *registry.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	meter := telemetry.Meter("eventable/prune")
	rows, _ := meter.Int64Counter("eventable.prune.rows",
		metric.WithDescription("Event rows deleted, or counted on dry runs, by the prune engine"),
	)
	duration, _ := meter.Float64Histogram("eventable.prune.duration",
		metric.WithDescription("Time to prune one event case (ms)"),
		metric.WithUnit("ms"),
	)
	return &Engine{
		db:        db,
		discovery: NewDiscovery(reg, logger),
		logger:    logger,
		tracer:    telemetry.Tracer("eventable/prune"),
		rows:      rows,
		duration:  duration,
	}
}

// Run prunes every discovered case. A family whose cases cannot be loaded
// is skipped with a warning; store errors abort the run and are returned with
// the partial report. With no pruneable families Run returns
// ErrNoPruneableTypes.
func (e *Engine) Run(ctx context.Context, dryRun bool) (Report, error) {
	report := Report{RunID: uuid.New(), DryRun: dryRun, StartedAt: e.db.Now()}
	logger := e.logger.With("run_id", report.RunID.String(), "dry_run", dryRun)
	wall := time.Now()

	targets, skipped := e.discovery.Discover()
	report.Skipped = append(report.Skipped, skipped...)
	if len(targets) == 0 {
		report.Duration = time.Since(wall)
		return report, ErrNoPruneableTypes
	}

	for _, target := range targets {
		cases, err := target.Type.Cases()
		if err != nil {
			logger.Warn("prune: cannot load event cases, skipping", "alias", target.Alias, "type", string(target.Type.ID), "error", err)
			report.Skipped = append(report.Skipped, Skip{Alias: target.Alias, TypeID: target.Type.ID, Reason: "cases could not be loaded"})
			continue
		}

		for _, c := range cases {
			p, ok := c.(model.Pruneable)
			if !ok {
				continue
			}
			cfg := p.Prune()
			if cfg == nil {
				continue
			}
			value, err := model.CaseValue(c)
			if err != nil {
				logger.Warn("prune: unsupported event case, skipping", "alias", target.Alias, "case", c.String(), "error", err)
				report.Skipped = append(report.Skipped, Skip{Alias: target.Alias, TypeID: target.Type.ID, Reason: "case " + c.String() + " has no storable value"})
				continue
			}

			result := CaseResult{Alias: target.Alias, TypeID: target.Type.ID, Case: c.String(), Value: value}
			n, err := e.pruneCase(ctx, result, cfg, dryRun)
			if err != nil {
				report.Duration = time.Since(wall)
				return report, err
			}
			result.Count = n
			report.Cases = append(report.Cases, result)
			report.Total += n
			logger.Info("prune: case done", "alias", result.Alias, "case", result.Case, "count", n)
		}
	}

	report.Duration = time.Since(wall)
	e.record(ctx, logger, report)
	logger.Info("prune: run complete", "total", report.Total, "cases", len(report.Cases), "skipped", len(report.Skipped))
	return report, nil
}

func (e *Engine) pruneCase(ctx context.Context, r CaseResult, cfg *model.PruneConfig, dryRun bool) (int64, error) {
	attrs := []attribute.KeyValue{
		attribute.String("eventable.type_alias", r.Alias),
		attribute.String("eventable.case", r.Case),
		attribute.Bool("eventable.dry_run", dryRun),
	}
	ctx, span := e.tracer.Start(ctx, "prune.case", trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	n, err := e.db.PruneCase(ctx, model.EventKey{Alias: r.Alias, Value: r.Value}, cfg, dryRun)
	e.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("prune: event %s: %w", r.Case, err)
	}
	span.SetAttributes(attribute.Int64("eventable.rows", n))
	e.rows.Add(ctx, n, metric.WithAttributes(attrs...))
	return n, nil
}

// record appends the run to the prune log. The deletions have already
// happened, so a failure here is only logged.
func (e *Engine) record(ctx context.Context, logger *slog.Logger, r Report) {
	counts := make(map[string]int64, len(r.Cases))
	for _, c := range r.Cases {
		counts[model.EventKey{Alias: c.Alias, Value: c.Value}.String()] = c.Count
	}
	err := e.db.RecordPruneRun(ctx, storage.PruneRun{
		RunID:       r.RunID,
		DryRun:      r.DryRun,
		Counts:      counts,
		Total:       r.Total,
		StartedAt:   r.StartedAt,
		CompletedAt: r.StartedAt.Add(r.Duration),
	})
	if err != nil {
		logger.Warn("prune: cannot record run", "error", err)
	}
}
