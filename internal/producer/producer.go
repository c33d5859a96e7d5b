// Package producer turns configured sources into batches of grounded facts.
// Producers never touch the graph store.
package producer

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/factgraph/internal/config"
	"github.com/Harshitk-cp/factgraph/internal/domain"
)

var ErrNoProducer = errors.New("no producer for source kind")

// Batch is everything one source currently asserts. Only Grounded is handed
// to ingestion; Rejected is kept for reporting.
type Batch struct {
	SourceID string                `json:"source_id"`
	Grounded []domain.ProvableFact `json:"grounded"`
	Rejected []domain.Rejection    `json:"rejected,omitempty"`
}

type Producer interface {
	Produce(ctx context.Context, src config.Source) (*Batch, error)
}

// Registry dispatches to a producer by source kind.
type Registry struct {
	producers map[string]Producer
}

func NewRegistry() *Registry {
	return &Registry{producers: make(map[string]Producer)}
}

func (r *Registry) Register(kind string, p Producer) {
	r.producers[kind] = p
}

// Produce runs the producer registered for src.Kind.
func (r *Registry) Produce(ctx context.Context, src config.Source) (*Batch, error) {
	p, ok := r.producers[src.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoProducer, src.Kind)
	}
	return p.Produce(ctx, src)
}

// Has reports whether sources of kind can be pulled.
func (r *Registry) Has(kind string) bool {
	_, ok := r.producers[kind]
	return ok
}

// Statement renders a fact as the sentence handed to the grounder.
func Statement(kind domain.EntityKind, entityKey, attribute, value string) string {
	return fmt.Sprintf("The %s %q has %s %q.", kind, entityKey, attribute, value)
}

// screen applies the checks every producer shares. It returns an empty reason
// for acceptable facts.
func screen(cfg *config.Corroboration, f domain.ProvableFact) string {
	if !cfg.Eligible(f.EntityKind, f.Attribute) {
		return fmt.Sprintf("slot %s.%s is not eligible", f.EntityKind, f.Attribute)
	}
	if err := f.Validate(); err != nil {
		return err.Error()
	}
	return ""
}
