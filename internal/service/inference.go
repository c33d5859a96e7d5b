package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/Harshitk-cp/factgraph/internal/config"
	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/metrics"
	"go.uber.org/zap"
)

// InferenceService regenerates derived relationships from the active claim
// set. Every rebuild starts from scratch.
type InferenceService struct {
	store   domain.GraphStore
	rules   []config.InferenceRule
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewInferenceService(gs domain.GraphStore, rules []config.InferenceRule, m *metrics.Metrics, logger *zap.Logger) *InferenceService {
	return &InferenceService{store: gs, rules: rules, metrics: m, logger: logger}
}

// RebuildResult reports one rebuild.
type RebuildResult struct {
	Deleted int64 `json:"deleted"`
	Created int   `json:"created"`
}

// Rebuild deletes every inferred relationship and derives the set again in
// the same transaction, so readers never see a half-built layer.
func (s *InferenceService) Rebuild(ctx context.Context) (*RebuildResult, error) {
	res := &RebuildResult{}
	err := s.store.WithTx(ctx, func(tx domain.GraphTx) error {
		deleted, err := tx.DeleteInferred(ctx)
		if err != nil {
			return fmt.Errorf("delete inferred: %w", err)
		}
		active, err := tx.ActiveEdges(ctx)
		if err != nil {
			return fmt.Errorf("read active claims: %w", err)
		}
		rels := Derive(s.rules, active)
		if err := tx.CreateInferred(ctx, rels); err != nil {
			return fmt.Errorf("create inferred: %w", err)
		}
		res.Deleted = deleted
		res.Created = len(rels)
		return nil
	})
	if err != nil {
		s.metrics.RebuildDone("failed", 0)
		s.logger.Error("inference rebuild failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInferenceRebuild, err)
	}

	s.metrics.RebuildDone("ok", res.Created)
	s.logger.Info("inference rebuilt",
		zap.Int64("deleted", res.Deleted),
		zap.Int("created", res.Created))
	return res, nil
}

// activeEntity is an entity as seen through its active claims only.
type activeEntity struct {
	key   string
	kind  domain.EntityKind
	attrs map[string]string
}

func activeEntities(edges []domain.ProvenanceEdge) map[string]*activeEntity {
	out := make(map[string]*activeEntity)
	for _, e := range edges {
		if !e.IsActive {
			continue
		}
		ent, ok := out[e.EntityKey]
		if !ok {
			ent = &activeEntity{key: e.EntityKey, kind: e.EntityKind, attrs: map[string]string{}}
			out[e.EntityKey] = ent
		}
		ent.attrs[e.Attribute] = e.Value
	}
	return out
}

func (e *activeEntity) matches(sel config.Selector) bool {
	if e.kind != sel.Kind {
		return false
	}
	if sel.Attribute == "" {
		return true
	}
	v, ok := e.attrs[sel.Attribute]
	if !ok {
		return false
	}
	return sel.Equals == "" || v == sel.Equals
}

func selectEntities(entities map[string]*activeEntity, sel config.Selector) []*activeEntity {
	var out []*activeEntity
	for _, e := range entities {
		if e.matches(sel) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// Derive computes the relationships implied by the rules over the active
// claims. It is pure and returns the relationships sorted by relation,
// subject and object; a triple produced by several rules is kept once.
func Derive(rules []config.InferenceRule, active []domain.ProvenanceEdge) []domain.InferredRelationship {
	entities := activeEntities(active)

	type triple struct{ relation, subject, object string }
	seen := make(map[triple]bool)
	var rels []domain.InferredRelationship
	add := func(rule config.InferenceRule, subject, object string) {
		t := triple{rule.Relation, subject, object}
		if subject == object || seen[t] {
			return
		}
		seen[t] = true
		rels = append(rels, domain.InferredRelationship{
			Rule:       rule.Name,
			Relation:   rule.Relation,
			SubjectKey: subject,
			ObjectKey:  object,
		})
	}

	for _, rule := range rules {
		subjects := selectEntities(entities, rule.Subject)
		if rule.LinkAttribute != "" {
			for _, subj := range subjects {
				obj, ok := entities[domain.NormalizeKey(subj.attrs[rule.LinkAttribute])]
				if ok && obj.matches(rule.Object) {
					add(rule, subj.key, obj.key)
				}
			}
			continue
		}
		objects := selectEntities(entities, rule.Object)
		for _, subj := range subjects {
			for _, obj := range objects {
				add(rule, subj.key, obj.key)
			}
		}
	}

	sort.Slice(rels, func(i, j int) bool {
		a, b := rels[i], rels[j]
		if a.Relation != b.Relation {
			return a.Relation < b.Relation
		}
		if a.SubjectKey != b.SubjectKey {
			return a.SubjectKey < b.SubjectKey
		}
		return a.ObjectKey < b.ObjectKey
	})
	return rels
}
