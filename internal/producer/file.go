package producer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Harshitk-cp/factgraph/internal/config"
	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// feedFile is the on-disk layout of a file source. JSON files parse too.
type feedFile struct {
	ObservedAt string      `yaml:"observed_at"`
	Facts      []feedEntry `yaml:"facts"`
}

type feedEntry struct {
	EntityKey   string `yaml:"entity_key"`
	EntityKind  string `yaml:"entity_kind"`
	Attribute   string `yaml:"attribute"`
	Value       string `yaml:"value"`
	Evidence    string `yaml:"evidence"`
	EvidenceRef string `yaml:"evidence_ref"`
	ObservedAt  string `yaml:"observed_at"`
}

// FileProducer reads facts from a curated feed file. The feed is trusted
// to be grounded; facts only go through the shape and eligibility checks.
type FileProducer struct {
	cfg    *config.Corroboration
	logger *zap.Logger
	now    func() time.Time
}

func NewFileProducer(cfg *config.Corroboration, logger *zap.Logger) *FileProducer {
	return &FileProducer{cfg: cfg, logger: logger, now: time.Now}
}

func (p *FileProducer) Produce(ctx context.Context, src config.Source) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(src.Location)
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", src.Location, err)
	}
	return p.parse(src, raw)
}

func (p *FileProducer) parse(src config.Source, raw []byte) (*Batch, error) {
	var feed feedFile
	if err := yaml.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.Location, err)
	}

	observed := p.now().UTC()
	if feed.ObservedAt != "" {
		t, err := time.Parse(time.RFC3339, feed.ObservedAt)
		if err != nil {
			return nil, fmt.Errorf("parse feed %s: observed_at: %w", src.Location, err)
		}
		observed = t.UTC()
	}
	trust := p.cfg.TrustFor(src.ID)

	batch := &Batch{SourceID: src.ID}
	for _, e := range feed.Facts {
		f := domain.ProvableFact{
			ID:          uuid.New(),
			EntityKey:   domain.NormalizeKey(e.EntityKey),
			EntityKind:  domain.EntityKind(strings.TrimSpace(e.EntityKind)),
			Attribute:   strings.TrimSpace(e.Attribute),
			Value:       strings.TrimSpace(e.Value),
			SourceID:    src.ID,
			SourceTrust: trust,
			ObservedAt:  observed,
			EvidenceRef: e.EvidenceRef,
			Evidence:    strings.TrimSpace(e.Evidence),
		}
		if e.ObservedAt != "" {
			t, err := time.Parse(time.RFC3339, e.ObservedAt)
			if err != nil {
				batch.Rejected = append(batch.Rejected, domain.Rejection{Fact: f, Reason: "invalid observed_at: " + err.Error()})
				continue
			}
			f.ObservedAt = t.UTC()
		}
		if f.EvidenceRef == "" {
			f.EvidenceRef = src.Location
		}
		if reason := screen(p.cfg, f); reason != "" {
			batch.Rejected = append(batch.Rejected, domain.Rejection{Fact: f, Reason: reason})
			continue
		}
		batch.Grounded = append(batch.Grounded, f)
	}

	p.logger.Info("read feed",
		zap.String("source_id", src.ID),
		zap.String("location", src.Location),
		zap.Int("grounded", len(batch.Grounded)),
		zap.Int("rejected", len(batch.Rejected)))
	return batch, nil
}
