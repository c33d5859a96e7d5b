// Seed script that replays the Sparbrief rate change against the configured
// store and registers a client for the first push source.
// Run with: go run ./scripts/seed.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Harshitk-cp/factgraph/internal/bootstrap"
	"github.com/Harshitk-cp/factgraph/internal/config"
	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/service"
	"go.uber.org/zap"
)

// Source ids from corroboration.yaml; trust is taken from the config at ingest.
const (
	publicSite   = "https://www.vblh.de/sparen/sparbrief"
	internalFeed = "internal-feed"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	engine, err := bootstrap.Open(ctx, logger)
	if err != nil {
		log.Fatalf("Failed to open engine: %v", err)
	}
	defer engine.Close()

	fmt.Printf("Connected to %s store\n", config.StoreBackend())

	t1 := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Second)
	t2 := t1.Add(24 * time.Hour)

	// The public site is scraped first and still shows the old rate.
	submit(ctx, engine, publicSite, []domain.ProvableFact{
		fact("sparbrief", domain.EntityProduct, "interest_rate", "2.0", publicSite, t1),
		fact("sparbrief", domain.EntityProduct, "product_type", domain.ProductTypeInterest, publicSite, t1),
		fact("anna.berger", domain.EntityEmployee, "role_type", domain.RoleAdvisor, publicSite, t1),
	})

	// A day later the internal feed publishes the new rate. Newer wins.
	submit(ctx, engine, internalFeed, []domain.ProvableFact{
		fact("sparbrief", domain.EntityProduct, "interest_rate", "2.5", internalFeed, t2),
	})

	ent, err := engine.Query.GetEntity(ctx, "sparbrief")
	if err != nil {
		log.Fatalf("Failed to read sparbrief: %v", err)
	}
	fmt.Printf("Active interest_rate for sparbrief: %s\n", ent.Attributes["interest_rate"])

	rels, err := engine.Query.Relationships(ctx, "ADVISES_ON")
	if err != nil {
		log.Fatalf("Failed to list relationships: %v", err)
	}
	for _, r := range rels {
		fmt.Printf("Inferred: %s -[%s]-> %s\n", r.SubjectKey, r.Relation, r.ObjectKey)
	}

	registerPushClient(ctx, engine)

	fmt.Println("\n=== Seed Complete ===")
	fmt.Println("\nTo inspect the result, use:")
	fmt.Println("go run ./cmd/factctl provenance sparbrief")
}

func submit(ctx context.Context, e *bootstrap.Engine, sourceID string, facts []domain.ProvableFact) {
	res, err := e.Runner.Submit(ctx, sourceID, facts)
	if err != nil {
		log.Fatalf("Failed to ingest %s: %v", sourceID, err)
	}
	fmt.Printf("Ingested %s: accepted=%d activated=%d shadowed=%d superseded=%d\n",
		sourceID, res.Ingest.Accepted, res.Ingest.Activated, res.Ingest.Shadowed, res.Ingest.Superseded)
}

func registerPushClient(ctx context.Context, e *bootstrap.Engine) {
	for _, s := range e.Config.Sources {
		if s.Kind != config.SourcePush {
			continue
		}
		client, apiKey, err := e.ClientSvc.Register(ctx, "Seed client", s.ID)
		if errors.Is(err, service.ErrClientConflict) {
			fmt.Printf("Client for %s already exists\n", s.ID)
			return
		}
		if err != nil {
			log.Fatalf("Failed to register client: %v", err)
		}
		fmt.Printf("Created client %s for source %s\n", client.ID, s.ID)
		fmt.Printf("API Key: %s\n", apiKey)
		fmt.Println("(Save this API key - it cannot be retrieved later)")
		return
	}
	fmt.Println("No push source configured; skipping client registration")
}

func fact(key string, kind domain.EntityKind, attr, value, source string, at time.Time) domain.ProvableFact {
	return domain.ProvableFact{
		EntityKey:  key,
		EntityKind: kind,
		Attribute:  attr,
		Value:      value,
		SourceID:   source,
		ObservedAt: at,
		Evidence:   fmt.Sprintf("%s %s %s", key, attr, value),
	}
}
