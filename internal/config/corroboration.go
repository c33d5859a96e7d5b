package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultTrust is used for sources that match no explicit score or prefix.
const DefaultTrust = 0.5

// Source kinds
const (
	SourceWeb  = "web"
	SourceFile = "file"
	SourcePush = "push"
)

// Source is one configured producer of facts.
type Source struct {
	ID       string   `yaml:"id"`
	Kind     string   `yaml:"kind"`
	Location string   `yaml:"location,omitempty"`
	Trust    *float64 `yaml:"trust,omitempty"`
}

// URL returns where the source is read from; web sources default to their id.
func (s Source) URL() string {
	if s.Location != "" {
		return s.Location
	}
	return s.ID
}

type TrustPrefix struct {
	Prefix string  `yaml:"prefix"`
	Score  float64 `yaml:"score"`
}

// Selector matches active entities of a kind, optionally requiring an active
// attribute value.
type Selector struct {
	Kind      domain.EntityKind `yaml:"kind"`
	Attribute string            `yaml:"attribute,omitempty"`
	Equals    string            `yaml:"equals,omitempty"`
}

// InferenceRule derives Relation between every subject and object matching
// the selectors. With LinkAttribute set, the subject's active value for that
// attribute must equal the object's key.
type InferenceRule struct {
	Name          string   `yaml:"name"`
	Relation      string   `yaml:"relation"`
	Subject       Selector `yaml:"subject"`
	Object        Selector `yaml:"object"`
	LinkAttribute string   `yaml:"link_attribute,omitempty"`
}

// Corroboration is the static engine configuration: per-source trust, the
// slots eligible for corroboration and the inference rules.
type Corroboration struct {
	DefaultTrust   *float64                       `yaml:"default_trust,omitempty"`
	Trust          []TrustPrefix                  `yaml:"trust"`
	Sources        []Source                       `yaml:"sources"`
	Slots          map[domain.EntityKind][]string `yaml:"slots"`
	InferenceRules []InferenceRule                `yaml:"inference_rules"`

	eligible map[domain.EntityKind]map[string]bool
}

var relationPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// LoadCorroboration reads and validates the YAML file at path.
func LoadCorroboration(path string) (*Corroboration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corroboration config: %w", err)
	}
	return ParseCorroboration(raw)
}

func ParseCorroboration(raw []byte) (*Corroboration, error) {
	var c Corroboration
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse corroboration config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Corroboration) Validate() error {
	if c.DefaultTrust != nil && !validTrust(*c.DefaultTrust) {
		return fmt.Errorf("default_trust %v must not be negative", *c.DefaultTrust)
	}
	for _, p := range c.Trust {
		if p.Prefix == "" {
			return errors.New("trust entry without prefix")
		}
		if !validTrust(p.Score) {
			return fmt.Errorf("trust score %v for %q must not be negative", p.Score, p.Prefix)
		}
	}

	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if s.ID == "" {
			return errors.New("source without id")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate source %q", s.ID)
		}
		seen[s.ID] = true
		switch s.Kind {
		case SourceWeb, SourceFile, SourcePush:
		default:
			return fmt.Errorf("source %q: unknown kind %q", s.ID, s.Kind)
		}
		if s.Kind == SourceFile && s.Location == "" {
			return fmt.Errorf("source %q: file sources need a location", s.ID)
		}
		if s.Trust != nil && !validTrust(*s.Trust) {
			return fmt.Errorf("source %q: trust %v must not be negative", s.ID, *s.Trust)
		}
	}

	c.eligible = make(map[domain.EntityKind]map[string]bool, len(c.Slots))
	for kind, attrs := range c.Slots {
		if !domain.ValidEntityKind(string(kind)) {
			return fmt.Errorf("slots: unknown entity kind %q", kind)
		}
		set := make(map[string]bool, len(attrs))
		for _, a := range attrs {
			set[a] = true
		}
		c.eligible[kind] = set
	}

	names := make(map[string]bool, len(c.InferenceRules))
	for _, r := range c.InferenceRules {
		if r.Name == "" {
			return errors.New("inference rule without name")
		}
		if names[r.Name] {
			return fmt.Errorf("duplicate inference rule %q", r.Name)
		}
		names[r.Name] = true
		if !relationPattern.MatchString(r.Relation) {
			return fmt.Errorf("rule %q: relation %q must be upper snake case", r.Name, r.Relation)
		}
		for _, sel := range []Selector{r.Subject, r.Object} {
			if !domain.ValidEntityKind(string(sel.Kind)) {
				return fmt.Errorf("rule %q: unknown entity kind %q", r.Name, sel.Kind)
			}
			if sel.Equals != "" && sel.Attribute == "" {
				return fmt.Errorf("rule %q: equals without attribute", r.Name)
			}
		}
	}
	return nil
}

// TrustFor resolves the trust of a source: an explicit source score wins,
// then the longest matching prefix, then the default.
func (c *Corroboration) TrustFor(sourceID string) float64 {
	for _, s := range c.Sources {
		if s.ID == sourceID && s.Trust != nil {
			return *s.Trust
		}
	}

	best, bestLen := -1.0, -1
	for _, p := range c.Trust {
		if strings.HasPrefix(sourceID, p.Prefix) && len(p.Prefix) > bestLen {
			best, bestLen = p.Score, len(p.Prefix)
		}
	}
	if bestLen >= 0 {
		return best
	}
	if c.DefaultTrust != nil {
		return *c.DefaultTrust
	}
	return DefaultTrust
}

// Eligible reports whether the slot kind.attribute takes part in corroboration.
func (c *Corroboration) Eligible(kind domain.EntityKind, attribute string) bool {
	if c.eligible == nil {
		return false
	}
	return c.eligible[kind][attribute]
}

// SlotMap returns a sorted copy of the eligible slots.
func (c *Corroboration) SlotMap() map[domain.EntityKind][]string {
	out := make(map[domain.EntityKind][]string, len(c.Slots))
	for kind, attrs := range c.Slots {
		cp := append([]string(nil), attrs...)
		sort.Strings(cp)
		out[kind] = cp
	}
	return out
}

func (c *Corroboration) Source(id string) (Source, bool) {
	for _, s := range c.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

func validTrust(v float64) bool {
	return v >= 0
}
