package producer

import (
	"context"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/factgraph/internal/config"
	"github.com/Harshitk-cp/factgraph/internal/crawler"
	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PageFetcher is the part of the crawler the web producer needs.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*crawler.Page, error)
}

// WebProducer fetches a page, extracts candidate facts with the LLM and
// keeps the ones the grounder confirms against their evidence.
type WebProducer struct {
	fetcher  PageFetcher
	extract  domain.Extractor
	ground   domain.Grounder
	cfg      *config.Corroboration
	logger   *zap.Logger
	parallel int
}

func NewWebProducer(fetcher PageFetcher, extract domain.Extractor, ground domain.Grounder, cfg *config.Corroboration, logger *zap.Logger) *WebProducer {
	return &WebProducer{
		fetcher:  fetcher,
		extract:  extract,
		ground:   ground,
		cfg:      cfg,
		logger:   logger,
		parallel: 4,
	}
}

// SetGroundParallelism bounds concurrent grounding calls per page.
func (p *WebProducer) SetGroundParallelism(n int) {
	if n > 0 {
		p.parallel = n
	}
}

func (p *WebProducer) Produce(ctx context.Context, src config.Source) (*Batch, error) {
	page, err := p.fetcher.Fetch(ctx, src.URL())
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src.URL(), err)
	}

	text := crawler.VisibleText(page.HTML)
	batch := &Batch{SourceID: src.ID}
	if text == "" {
		p.logger.Warn("page has no visible text", zap.String("source_id", src.ID))
		return batch, nil
	}

	candidates, err := p.extract.Extract(ctx, domain.ExtractRequest{
		SourceID: src.ID,
		Text:     text,
		Slots:    p.cfg.SlotMap(),
	})
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", src.ID, err)
	}

	trust := p.cfg.TrustFor(src.ID)
	var toGround []domain.ProvableFact
	for _, c := range candidates {
		f := domain.ProvableFact{
			ID:          uuid.New(),
			EntityKey:   domain.NormalizeKey(c.EntityKey),
			EntityKind:  domain.EntityKind(strings.TrimSpace(string(c.EntityKind))),
			Attribute:   strings.TrimSpace(c.Attribute),
			Value:       strings.TrimSpace(c.Value),
			SourceID:    src.ID,
			SourceTrust: trust,
			ObservedAt:  page.FetchedAt,
			EvidenceRef: page.FinalURL,
			Evidence:    strings.TrimSpace(c.Evidence),
		}
		if f.Value == "" || f.Evidence == "" {
			batch.Rejected = append(batch.Rejected, domain.Rejection{Fact: f, Reason: "missing value or evidence"})
			continue
		}
		if reason := screen(p.cfg, f); reason != "" {
			batch.Rejected = append(batch.Rejected, domain.Rejection{Fact: f, Reason: reason})
			continue
		}
		toGround = append(toGround, f)
	}

	verdicts := make([]bool, len(toGround))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)
	for i, f := range toGround {
		g.Go(func() error {
			ok, err := p.ground.Ground(gctx, Statement(f.EntityKind, f.EntityKey, f.Attribute, f.Value), f.Evidence)
			if err != nil {
				return fmt.Errorf("ground %s: %w", f.Slot(), err)
			}
			verdicts[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, f := range toGround {
		if verdicts[i] {
			batch.Grounded = append(batch.Grounded, f)
		} else {
			batch.Rejected = append(batch.Rejected, domain.Rejection{Fact: f, Reason: "not grounded in evidence"})
		}
	}

	p.logger.Info("produced batch",
		zap.String("source_id", src.ID),
		zap.Int("candidates", len(candidates)),
		zap.Int("grounded", len(batch.Grounded)),
		zap.Int("rejected", len(batch.Rejected)))
	return batch, nil
}
