package service

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/factgraph/internal/domain"
)

// ActivationPlan is the resolved outcome for one slot of a batch.
type ActivationPlan struct {
	Slot domain.Slot
	// Candidate is the batch's best claim for the slot.
	Candidate domain.ProvableFact
	// Superseded holds the other claims of the batch for the same slot. They
	// are recorded in the fact log but never get an edge of their own.
	Superseded []domain.ProvableFact
	// Incumbent is the active claim of another source, if any.
	Incumbent *domain.ProvenanceEdge
	Decision  Decision
}

// Activates reports whether the candidate takes over the slot.
func (p ActivationPlan) Activates() bool {
	return p.Decision.ChallengerWins
}

// Corroborator resolves claims against the active state of the graph. It
// keeps no state between calls.
type Corroborator struct{}

// Corroborate resolves fact against the slot's incumbent. When pending is a
// plan for the same slot from earlier in the batch, fact is folded into it
// and the incumbent already read is reused.
func (c Corroborator) Corroborate(ctx context.Context, tx domain.GraphTx, fact domain.ProvableFact, pending *ActivationPlan) (ActivationPlan, error) {
	if pending != nil {
		if pending.Slot != fact.Slot() {
			return ActivationPlan{}, fmt.Errorf("fold %s into plan for %s", fact.Slot(), pending.Slot)
		}
		plan := *pending
		plan.Superseded = append([]domain.ProvableFact(nil), pending.Superseded...)
		if batchLess(plan.Candidate, fact) {
			plan.Superseded = append(plan.Superseded, plan.Candidate)
			plan.Candidate = fact
		} else {
			plan.Superseded = append(plan.Superseded, fact)
		}
		plan.Decision = Decide(incumbentFact(plan.Incumbent), plan.Candidate)
		return plan, nil
	}

	claims, err := tx.ActiveClaims(ctx, fact.Slot(), fact.SourceID)
	if err != nil {
		return ActivationPlan{}, fmt.Errorf("read active claims for %s: %w", fact.Slot(), err)
	}
	if len(claims) > 1 {
		return ActivationPlan{}, fmt.Errorf("%w: %d active claims for %s", ErrInvariantViolation, len(claims), fact.Slot())
	}

	plan := ActivationPlan{Slot: fact.Slot(), Candidate: fact}
	if len(claims) == 1 {
		incumbent := claims[0]
		plan.Incumbent = &incumbent
	}
	plan.Decision = Decide(incumbentFact(plan.Incumbent), fact)
	return plan, nil
}

func incumbentFact(e *domain.ProvenanceEdge) *domain.ProvableFact {
	if e == nil {
		return nil
	}
	f := e.Fact()
	return &f
}

// Apply writes the plan: the fact log rows, the edge flags and the entity
// attribute. The incumbent is deactivated before the candidate is activated
// so the slot never holds two active claims.
func (p ActivationPlan) Apply(ctx context.Context, tx domain.GraphTx) error {
	for i := range p.Superseded {
		if err := tx.RecordFact(ctx, &p.Superseded[i]); err != nil {
			return fmt.Errorf("record fact %s: %w", p.Superseded[i].ID, err)
		}
	}
	candidate := p.Candidate
	if err := tx.RecordFact(ctx, &candidate); err != nil {
		return fmt.Errorf("record fact %s: %w", candidate.ID, err)
	}

	if !p.Activates() {
		edge := domain.EdgeFromFact(candidate, false)
		if err := tx.UpsertEdge(ctx, &edge); err != nil {
			return fmt.Errorf("record shadowed claim for %s: %w", p.Slot, err)
		}
		return nil
	}

	if p.Incumbent != nil {
		if err := tx.SetEdgeActive(ctx, p.Incumbent.ID, false); err != nil {
			return fmt.Errorf("deactivate incumbent of %s: %w", p.Slot, err)
		}
	}
	edge := domain.EdgeFromFact(candidate, true)
	if err := tx.UpsertEdge(ctx, &edge); err != nil {
		return fmt.Errorf("activate claim for %s: %w", p.Slot, err)
	}
	value := candidate.Value
	if err := tx.SetAttribute(ctx, candidate.EntityKey, candidate.EntityKind, candidate.Attribute, &value); err != nil {
		return fmt.Errorf("set %s: %w", p.Slot, err)
	}
	return nil
}
