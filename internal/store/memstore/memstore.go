// Package memstore is an in-memory graph and client store. A transaction
// works on a private clone of the state and swaps it in on commit, so a
// failed unit of work leaves nothing behind.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/store"
	"github.com/google/uuid"
)

type edgeKey struct {
	entity    string
	attribute string
	source    string
}

func keyOf(e domain.ProvenanceEdge) edgeKey {
	return edgeKey{entity: e.EntityKey, attribute: e.Attribute, source: e.SourceID}
}

type state struct {
	entities map[string]domain.Entity
	facts    map[uuid.UUID]domain.ProvableFact
	edges    map[edgeKey]domain.ProvenanceEdge
	inferred []domain.InferredRelationship
}

func newState() state {
	return state{
		entities: map[string]domain.Entity{},
		facts:    map[uuid.UUID]domain.ProvableFact{},
		edges:    map[edgeKey]domain.ProvenanceEdge{},
	}
}

func cloneEntity(e domain.Entity) domain.Entity {
	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	e.Attributes = attrs
	return e
}

func (s state) clone() state {
	c := state{
		entities: make(map[string]domain.Entity, len(s.entities)),
		facts:    make(map[uuid.UUID]domain.ProvableFact, len(s.facts)),
		edges:    make(map[edgeKey]domain.ProvenanceEdge, len(s.edges)),
		inferred: append([]domain.InferredRelationship(nil), s.inferred...),
	}
	for k, v := range s.entities {
		c.entities[k] = cloneEntity(v)
	}
	for k, v := range s.facts {
		c.facts[k] = v
	}
	for k, v := range s.edges {
		c.edges[k] = v
	}
	return c
}

// Store implements domain.GraphStore and domain.ClientStore.
type Store struct {
	mu      sync.RWMutex
	state   state
	clients map[string]domain.Client
	nowFn   func() time.Time
}

var (
	_ domain.GraphStore  = (*Store)(nil)
	_ domain.ClientStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		state:   newState(),
		clients: map[string]domain.Client{},
		nowFn:   time.Now,
	}
}

// SetNow overrides the clock used for timestamps.
func (s *Store) SetNow(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// WithTx runs fn under the write lock, which makes every unit of work
// trivially serializable.
func (s *Store) WithTx(ctx context.Context, fn func(tx domain.GraphTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{state: s.state.clone(), now: s.nowFn()}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = t.state
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) GetEntity(_ context.Context, key string) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.entities[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := cloneEntity(e)
	return &c, nil
}

func (s *Store) ListEntities(_ context.Context, filter domain.EntityFilter) ([]domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Entity
	for _, e := range s.state.entities {
		if len(e.Attributes) == 0 {
			continue
		}
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		if !matches(e, filter.Equals) {
			continue
		}
		out = append(out, cloneEntity(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(e domain.Entity, equals map[string]string) bool {
	for k, v := range equals {
		if e.Attributes[k] != v {
			return false
		}
	}
	return true
}

func (s *Store) EdgesForEntity(_ context.Context, key string) ([]domain.ProvenanceEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ProvenanceEdge
	for _, e := range s.state.edges {
		if e.EntityKey == key {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Attribute != b.Attribute {
			return a.Attribute < b.Attribute
		}
		if a.IsActive != b.IsActive {
			return a.IsActive
		}
		if !a.ObservedAt.Equal(b.ObservedAt) {
			return a.ObservedAt.After(b.ObservedAt)
		}
		return a.SourceID < b.SourceID
	})
	return out, nil
}

func (s *Store) EdgesForSource(_ context.Context, sourceID string) ([]domain.ProvenanceEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ProvenanceEdge
	for _, e := range s.state.edges {
		if e.SourceID == sourceID {
			out = append(out, e)
		}
	}
	sortBySlot(out)
	return out, nil
}

func (s *Store) ListInferred(_ context.Context, relation string) ([]domain.InferredRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.InferredRelationship
	for _, r := range s.state.inferred {
		if relation == "" || r.Relation == relation {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Relation != b.Relation {
			return a.Relation < b.Relation
		}
		if a.SubjectKey != b.SubjectKey {
			return a.SubjectKey < b.SubjectKey
		}
		return a.ObjectKey < b.ObjectKey
	})
	return out, nil
}

// Facts returns the fact log ordered by observation time. Used by tests.
func (s *Store) Facts() []domain.ProvableFact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ProvableFact, 0, len(s.state.facts))
	for _, f := range s.state.facts {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ObservedAt.Equal(out[j].ObservedAt) {
			return out[i].ObservedAt.Before(out[j].ObservedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func sortBySlot(edges []domain.ProvenanceEdge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.EntityKey != b.EntityKey {
			return a.EntityKey < b.EntityKey
		}
		if a.Attribute != b.Attribute {
			return a.Attribute < b.Attribute
		}
		return a.SourceID < b.SourceID
	})
}
