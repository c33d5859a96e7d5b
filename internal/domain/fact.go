package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProvableFact is a single extracted claim about one entity attribute together
// with the provenance needed to corroborate it. Facts are values: once built
// they are never changed, only superseded by newer facts.
type ProvableFact struct {
	ID          uuid.UUID  `json:"id"`
	EntityKey   string     `json:"entity_key"`
	EntityKind  EntityKind `json:"entity_kind"`
	Attribute   string     `json:"attribute"`
	Value       string     `json:"value"`
	SourceID    string     `json:"source_id"`
	SourceTrust float64    `json:"source_trust"`
	ObservedAt  time.Time  `json:"observed_at"`
	EvidenceRef string     `json:"evidence_ref,omitempty"`
	Evidence    string     `json:"evidence,omitempty"`
}

// Slot is the (entity, attribute) pair a fact claims a value for.
type Slot struct {
	EntityKey string `json:"entity_key"`
	Attribute string `json:"attribute"`
}

func (s Slot) String() string {
	return s.EntityKey + "." + s.Attribute
}

func (f ProvableFact) Slot() Slot {
	return Slot{EntityKey: f.EntityKey, Attribute: f.Attribute}
}

// NormalizeKey folds an entity key to its canonical form. Keys compare
// case-insensitively, so every path into the graph goes through here.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Normalized returns f with a canonical entity key and trimmed slot fields.
func (f ProvableFact) Normalized() ProvableFact {
	f.EntityKey = NormalizeKey(f.EntityKey)
	f.EntityKind = EntityKind(strings.TrimSpace(string(f.EntityKind)))
	f.Attribute = strings.TrimSpace(f.Attribute)
	return f
}

var (
	errFactEntityKey = errors.New("entity_key is required")
	errFactAttribute = errors.New("attribute is required")
	errFactValue     = errors.New("value is required")
	errFactSource    = errors.New("source_id is required")
	errFactObserved  = errors.New("observed_at is required")
	errFactTrust     = errors.New("source_trust must not be negative")
)

// Validate checks the shape of a fact. It does not know about configured
// slots; eligibility is checked by the caller.
func (f ProvableFact) Validate() error {
	if strings.TrimSpace(f.EntityKey) == "" {
		return errFactEntityKey
	}
	if !ValidEntityKind(string(f.EntityKind)) {
		return fmt.Errorf("invalid entity_kind %q", f.EntityKind)
	}
	if strings.TrimSpace(f.Attribute) == "" {
		return errFactAttribute
	}
	if strings.TrimSpace(f.Value) == "" {
		return errFactValue
	}
	if strings.TrimSpace(f.SourceID) == "" {
		return errFactSource
	}
	if f.ObservedAt.IsZero() {
		return errFactObserved
	}
	if f.SourceTrust < 0 {
		return errFactTrust
	}
	if !ValidAttributeValue(f.EntityKind, f.Attribute, f.Value) {
		return fmt.Errorf("invalid value %q for %s.%s", f.Value, f.EntityKind, f.Attribute)
	}
	return nil
}

// Rejection records a candidate fact that did not make it into a batch.
type Rejection struct {
	Fact   ProvableFact `json:"fact"`
	Reason string       `json:"reason"`
}
