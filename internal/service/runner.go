package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/factgraph/internal/config"
	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/producer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Per-source run statuses.
const (
	StatusIngested = "ingested"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// Inference statuses.
const (
	InferenceRebuilt = "rebuilt"
	InferenceFailed  = "failed"
	InferenceNotRun  = "not_run"
)

// BatchProducer produces the current batch of a pull source.
type BatchProducer interface {
	Produce(ctx context.Context, src config.Source) (*producer.Batch, error)
}

// SourceReport is the outcome of one source in a run.
type SourceReport struct {
	SourceID string        `json:"source_id"`
	Status   string        `json:"status"`
	Grounded int           `json:"grounded"`
	Rejected int           `json:"rejected"`
	Ingest   *IngestResult `json:"ingest,omitempty"`
	Error    string        `json:"error,omitempty"`

	err error
}

// Err returns the classified failure of the source, if any.
func (r SourceReport) Err() error {
	return r.err
}

type InferenceReport struct {
	Status string         `json:"status"`
	Result *RebuildResult `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// RunReport describes one run source by source. A run has no single
// success flag: sources succeed and fail independently.
type RunReport struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Sources    []SourceReport   `json:"sources"`
	Inference  *InferenceReport `json:"inference"`
}

// Committed counts sources whose ingestion committed.
func (r *RunReport) Committed() int {
	n := 0
	for _, s := range r.Sources {
		if s.Status == StatusIngested {
			n++
		}
	}
	return n
}

// SubmitResult is the outcome of a pushed batch.
type SubmitResult struct {
	Ingest    *IngestResult    `json:"ingest"`
	Inference *InferenceReport `json:"inference"`
}

// Runner drives a full cycle: produce every source, ingest each batch in its
// own transaction and rebuild the inferred layer once at the end.
type Runner struct {
	cfg            *config.Corroboration
	producers      BatchProducer
	ingest         *IngestService
	inference      *InferenceService
	logger         *zap.Logger
	produceWorkers int
	ingestWorkers  int
	now            func() time.Time
}

func NewRunner(cfg *config.Corroboration, producers BatchProducer, ingest *IngestService, inference *InferenceService, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:            cfg,
		producers:      producers,
		ingest:         ingest,
		inference:      inference,
		logger:         logger,
		produceWorkers: 4,
		ingestWorkers:  4,
		now:            time.Now,
	}
}

func (r *Runner) SetWorkers(produce, ingest int) {
	if produce > 0 {
		r.produceWorkers = produce
	}
	if ingest > 0 {
		r.ingestWorkers = ingest
	}
}

// Run pulls the given sources, or every configured pull source when none are
// named. Unknown ids fail the call before anything runs.
func (r *Runner) Run(ctx context.Context, sourceIDs []string) (*RunReport, error) {
	sources, err := r.resolve(sourceIDs)
	if err != nil {
		return nil, err
	}

	report := &RunReport{
		StartedAt: r.now().UTC(),
		Sources:   make([]SourceReport, len(sources)),
	}
	batches := make([]*producer.Batch, len(sources))

	// Produce. No store transaction is open while models and pages are slow.
	pg := new(errgroup.Group)
	pg.SetLimit(r.produceWorkers)
	for i, src := range sources {
		report.Sources[i] = SourceReport{SourceID: src.ID}
		if src.Kind == config.SourcePush {
			report.Sources[i].Status = StatusSkipped
			report.Sources[i].Error = "push sources are not pulled"
			continue
		}
		pg.Go(func() error {
			batch, err := r.producers.Produce(ctx, src)
			if err != nil {
				err = fmt.Errorf("%w: %w", ErrProducer, err)
				report.Sources[i].Status = StatusSkipped
				report.Sources[i].Error = err.Error()
				report.Sources[i].err = err
				r.logger.Warn("source skipped", zap.String("source_id", src.ID), zap.Error(err))
				return nil
			}
			batches[i] = batch
			report.Sources[i].Grounded = len(batch.Grounded)
			report.Sources[i].Rejected = len(batch.Rejected)
			return nil
		})
	}
	_ = pg.Wait()

	// Ingest. Each batch is its own transaction; one failing leaves the others.
	ig := new(errgroup.Group)
	ig.SetLimit(r.ingestWorkers)
	for i, batch := range batches {
		if batch == nil {
			continue
		}
		ig.Go(func() error {
			res, err := r.ingest.Ingest(ctx, batch.SourceID, batch.Grounded)
			if err != nil {
				report.Sources[i].Status = StatusFailed
				report.Sources[i].Error = err.Error()
				report.Sources[i].err = err
				return nil
			}
			report.Sources[i].Status = StatusIngested
			report.Sources[i].Ingest = res
			return nil
		})
	}
	_ = ig.Wait()

	report.Inference = r.rebuildAfter(ctx, report.Committed())
	report.FinishedAt = r.now().UTC()

	r.logger.Info("run finished",
		zap.Int("sources", len(report.Sources)),
		zap.Int("committed", report.Committed()),
		zap.String("inference", report.Inference.Status),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

// Submit ingests a pushed batch and rebuilds the inferred layer. The error
// is the ingestion failure; a rebuild failure is reported in the result only.
func (r *Runner) Submit(ctx context.Context, sourceID string, facts []domain.ProvableFact) (*SubmitResult, error) {
	res, err := r.ingest.Ingest(ctx, sourceID, facts)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Ingest: res, Inference: r.rebuildAfter(ctx, 1)}, nil
}

// Rebuild runs the inferred layer rebuild on its own.
func (r *Runner) Rebuild(ctx context.Context) (*RebuildResult, error) {
	return r.inference.Rebuild(ctx)
}

func (r *Runner) rebuildAfter(ctx context.Context, committed int) *InferenceReport {
	if committed == 0 || ctx.Err() != nil {
		return &InferenceReport{Status: InferenceNotRun}
	}
	res, err := r.inference.Rebuild(ctx)
	if err != nil {
		return &InferenceReport{Status: InferenceFailed, Error: err.Error()}
	}
	return &InferenceReport{Status: InferenceRebuilt, Result: res}
}

func (r *Runner) resolve(ids []string) ([]config.Source, error) {
	if len(ids) == 0 {
		var out []config.Source
		for _, s := range r.cfg.Sources {
			if s.Kind != config.SourcePush {
				out = append(out, s)
			}
		}
		return out, nil
	}

	out := make([]config.Source, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	var unknown []error
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		s, ok := r.cfg.Source(id)
		if !ok {
			unknown = append(unknown, fmt.Errorf("%w: %q", ErrUnknownSource, id))
			continue
		}
		out = append(out, s)
	}
	if len(unknown) > 0 {
		return nil, errors.Join(unknown...)
	}
	return out, nil
}
