package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Client is a push producer allowed to submit batches for exactly one source.
type Client struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	SourceID   string    `json:"source_id"`
	APIKeyHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HashAPIKey returns the stored form of a client API key.
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
