package neo4jstore

import (
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/store"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
)

func TestEntityFromProps(t *testing.T) {
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	e := entityFromProps(map[string]any{
		"key":                "sparbrief",
		"kind":               "product",
		"created_at":         created,
		"attr_interest_rate": "2.5",
		"attr_product_type":  "InterestProduct",
		"_lock":              true,
	})

	assert.Equal(t, "sparbrief", e.Key)
	assert.Equal(t, domain.EntityProduct, e.Kind)
	assert.Equal(t, created, e.CreatedAt)
	assert.Equal(t, map[string]string{
		"interest_rate": "2.5",
		"product_type":  "InterestProduct",
	}, e.Attributes)
}

func TestEdgeFromRecord(t *testing.T) {
	observed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	r := &neo4j.Record{
		Keys:   []string{"id", "entity_key", "attribute", "source_id", "value", "source_trust", "observed_at", "is_active"},
		Values: []any{"4f1c7a62-8f39-4cde-9a3f-0c2d6b7f6a10", "sparbrief", "interest_rate", "internal-feed", "2.5", int64(9), observed, true},
	}
	e := edgeFromRecord(r)

	assert.Equal(t, "4f1c7a62-8f39-4cde-9a3f-0c2d6b7f6a10", e.ID.String())
	assert.Equal(t, "internal-feed", e.SourceID)
	assert.Equal(t, 9.0, e.SourceTrust)
	assert.Equal(t, observed, e.ObservedAt)
	assert.True(t, e.IsActive)
	assert.Empty(t, e.EvidenceRef)
}

func TestClassify(t *testing.T) {
	transient := &neo4j.Neo4jError{Code: "Neo.TransientError.Transaction.DeadlockDetected"}
	assert.ErrorIs(t, classify(transient), store.ErrSerialization)

	constraint := &neo4j.Neo4jError{Code: "Neo.ClientError.Schema.ConstraintValidationFailed"}
	assert.ErrorIs(t, classify(constraint), store.ErrConflict)

	other := errors.New("boom")
	assert.Equal(t, other, classify(other))
	assert.NoError(t, classify(nil))
}
