package llm

import (
	"context"
	"sync"

	"github.com/Harshitk-cp/factgraph/internal/domain"
)

// MockClient is a configurable LLM client for testing.
// Set the response fields to control what each method returns.
type MockClient struct {
	ExtractResponse []domain.Candidate
	ExtractError    error
	// GroundResponse is the default verdict; GroundByValue overrides it per fact.
	GroundResponse bool
	GroundByValue  map[string]bool
	GroundError    error

	mu sync.Mutex
	// Call tracking for assertions
	ExtractCalls []domain.ExtractRequest
	GroundCalls  []struct{ Fact, Evidence string }
}

func NewMockClient() *MockClient {
	return &MockClient{
		ExtractResponse: []domain.Candidate{},
		GroundResponse:  true,
	}
}

func (c *MockClient) Extract(ctx context.Context, req domain.ExtractRequest) ([]domain.Candidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ExtractCalls = append(c.ExtractCalls, req)
	if c.ExtractError != nil {
		return nil, c.ExtractError
	}
	return append([]domain.Candidate(nil), c.ExtractResponse...), nil
}

func (c *MockClient) Ground(ctx context.Context, fact, evidence string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GroundCalls = append(c.GroundCalls, struct{ Fact, Evidence string }{fact, evidence})
	if c.GroundError != nil {
		return false, c.GroundError
	}
	if v, ok := c.GroundByValue[fact]; ok {
		return v, nil
	}
	return c.GroundResponse, nil
}
