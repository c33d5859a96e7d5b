package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Harshitk-cp/factgraph/internal/config"
	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/metrics"
	"github.com/Harshitk-cp/factgraph/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultIngestMaxRetries = 3
	retryBackoff            = 50 * time.Millisecond
)

// IngestResult summarises one committed ingestion transaction.
type IngestResult struct {
	SourceID    string             `json:"source_id"`
	Submitted   int                `json:"submitted"`
	Accepted    int                `json:"accepted"`
	Activated   int                `json:"activated"`
	Shadowed    int                `json:"shadowed"`
	Superseded  int                `json:"superseded"`
	Deactivated int                `json:"deactivated"`
	Unset       int                `json:"unset"`
	Attempts    int                `json:"attempts"`
	Rejections  []domain.Rejection `json:"rejections,omitempty"`
}

// IngestService runs the atomic ingestion transaction for one source batch.
type IngestService struct {
	store        domain.GraphStore
	cfg          *config.Corroboration
	corroborator Corroborator
	metrics      *metrics.Metrics
	logger       *zap.Logger
	maxRetries   int
}

func NewIngestService(gs domain.GraphStore, cfg *config.Corroboration, m *metrics.Metrics, logger *zap.Logger) *IngestService {
	return &IngestService{
		store:      gs,
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
		maxRetries: DefaultIngestMaxRetries,
	}
}

// SetMaxRetries bounds how often a transaction aborted by an isolation
// conflict is attempted again.
func (s *IngestService) SetMaxRetries(n int) {
	if n >= 0 {
		s.maxRetries = n
	}
}

// Ingest validates the batch and applies it as one serializable unit:
// staleness for the source, corroboration of every accepted fact, and the
// resulting writes. An empty batch still deactivates the source's claims.
// Nothing is visible unless the whole unit commits.
func (s *IngestService) Ingest(ctx context.Context, sourceID string, facts []domain.ProvableFact) (*IngestResult, error) {
	if sourceID == "" {
		return nil, ErrEmptySourceID
	}
	start := time.Now()

	accepted, rejections := s.partition(sourceID, facts)
	slots := groupBySlot(accepted)

	var (
		stats *IngestResult
		err   error
	)
	attempts := 0
	for {
		attempts++
		err = s.store.WithTx(ctx, func(tx domain.GraphTx) error {
			var applyErr error
			stats, applyErr = s.apply(ctx, tx, sourceID, slots)
			return applyErr
		})
		if err == nil || !errors.Is(err, store.ErrSerialization) || attempts > s.maxRetries || ctx.Err() != nil {
			break
		}
		s.metrics.IngestRetry()
		s.logger.Warn("ingest serialization conflict, retrying",
			zap.String("source_id", sourceID),
			zap.Int("attempt", attempts),
			zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(attempts) * retryBackoff):
		}
	}

	if err != nil {
		s.metrics.IngestDone("failed", time.Since(start))
		s.logger.Error("ingest failed",
			zap.String("source_id", sourceID),
			zap.Int("facts", len(accepted)),
			zap.Int("attempts", attempts),
			zap.Error(err))
		if errors.Is(err, ErrInvariantViolation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreTransaction, err)
	}

	stats.SourceID = sourceID
	stats.Submitted = len(facts)
	stats.Accepted = len(accepted)
	stats.Attempts = attempts
	stats.Rejections = rejections

	s.metrics.IngestDone("committed", time.Since(start))
	s.metrics.Facts("activated", stats.Activated)
	s.metrics.Facts("shadowed", stats.Shadowed)
	s.metrics.Facts("rejected", len(rejections))
	s.metrics.StaleDeactivated(stats.Deactivated)

	s.logger.Info("ingested batch",
		zap.String("source_id", sourceID),
		zap.Int("submitted", stats.Submitted),
		zap.Int("activated", stats.Activated),
		zap.Int("shadowed", stats.Shadowed),
		zap.Int("deactivated", stats.Deactivated),
		zap.Int("unset", stats.Unset),
		zap.Int("rejected", len(rejections)))
	return stats, nil
}

// partition validates facts at the engine boundary. Accepted facts get an id
// and the configured trust of the source.
func (s *IngestService) partition(sourceID string, facts []domain.ProvableFact) ([]domain.ProvableFact, []domain.Rejection) {
	trust := s.cfg.TrustFor(sourceID)

	var (
		accepted   []domain.ProvableFact
		rejections []domain.Rejection
	)
	for _, f := range facts {
		f = f.Normalized()
		if f.SourceID == "" {
			f.SourceID = sourceID
		}
		if f.SourceID != sourceID {
			rejections = append(rejections, domain.Rejection{Fact: f, Reason: ErrSourceMismatch.Error()})
			continue
		}
		f.SourceTrust = trust
		if err := f.Validate(); err != nil {
			rejections = append(rejections, domain.Rejection{Fact: f, Reason: err.Error()})
			continue
		}
		if !s.cfg.Eligible(f.EntityKind, f.Attribute) {
			rejections = append(rejections, domain.Rejection{
				Fact:   f,
				Reason: fmt.Sprintf("slot %s.%s is not eligible for corroboration", f.EntityKind, f.Attribute),
			})
			continue
		}
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		accepted = append(accepted, f)
	}
	return accepted, rejections
}

type slotFacts struct {
	slot  domain.Slot
	facts []domain.ProvableFact
}

// groupBySlot keeps arrival order within a slot and orders slots by key so
// concurrent transactions touch rows in the same order.
func groupBySlot(facts []domain.ProvableFact) []slotFacts {
	idx := make(map[domain.Slot]int)
	var groups []slotFacts
	for _, f := range facts {
		i, ok := idx[f.Slot()]
		if !ok {
			i = len(groups)
			idx[f.Slot()] = i
			groups = append(groups, slotFacts{slot: f.Slot()})
		}
		groups[i].facts = append(groups[i].facts, f)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].slot.String() < groups[j].slot.String()
	})
	return groups
}

func (s *IngestService) apply(ctx context.Context, tx domain.GraphTx, sourceID string, groups []slotFacts) (*IngestResult, error) {
	res := &IngestResult{}

	stale, err := Reconcile(ctx, tx, sourceID)
	if err != nil {
		return nil, err
	}
	res.Deactivated = len(stale)

	plans := make([]ActivationPlan, 0, len(groups))
	for _, g := range groups {
		var pending *ActivationPlan
		for _, f := range g.facts {
			plan, err := s.corroborator.Corroborate(ctx, tx, f, pending)
			if err != nil {
				return nil, err
			}
			pending = &plan
		}
		plans = append(plans, *pending)
	}

	planned := make(map[domain.Slot]bool, len(plans))
	for _, p := range plans {
		if err := p.Apply(ctx, tx); err != nil {
			return nil, err
		}
		planned[p.Slot] = true
		res.Superseded += len(p.Superseded)
		if p.Activates() {
			res.Activated++
		} else {
			res.Shadowed++
		}
	}

	// A slot the source owned and no longer asserts loses its value. Shadowed
	// claims of other sources are not promoted.
	for _, e := range stale {
		if planned[e.Slot()] {
			continue
		}
		if err := tx.SetAttribute(ctx, e.EntityKey, e.EntityKind, e.Attribute, nil); err != nil {
			return nil, fmt.Errorf("unset %s: %w", e.Slot(), err)
		}
		res.Unset++
	}
	return res, nil
}
