package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/factgraph/internal/domain"
)

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parseCandidates(raw string) ([]domain.Candidate, error) {
	raw = stripFences(raw)
	var candidates []domain.Candidate
	if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
		return nil, fmt.Errorf("parse extraction result: %w (raw: %s)", err, raw)
	}
	for i := range candidates {
		candidates[i].EntityKey = strings.TrimSpace(candidates[i].EntityKey)
		candidates[i].Attribute = strings.TrimSpace(candidates[i].Attribute)
		candidates[i].Value = strings.TrimSpace(candidates[i].Value)
	}
	return candidates, nil
}

// parseGrounded treats anything but an explicit yes as not grounded.
func parseGrounded(raw string) bool {
	raw = stripFences(raw)
	var resp struct {
		IsGrounded bool `json:"is_grounded"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return strings.EqualFold(raw, "true")
	}
	return resp.IsGrounded
}
