package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mentorsim.ai/internal/sim/model"
)

type Catalogs struct {
	Traits     TraitCatalog
	Narratives NarrativeCatalog
}

type TraitCategory string

const (
	CategoryMain TraitCategory = "main"
	CategorySub  TraitCategory = "sub"
)

type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
	PolarityNeutral  Polarity = "neutral"
)

// Band is the plausible [Min,Max] range of an attribute for a trait holder.
type Band struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type TraitDef struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Category    TraitCategory            `json:"category"`
	Polarity    Polarity                 `json:"polarity"`
	Description string                   `json:"description,omitempty"`
	Conflicts   []string                 `json:"conflicts,omitempty"`
	Bands       map[model.Attribute]Band `json:"bands,omitempty"`
}

type TraitCatalog struct {
	// Defs keeps file order; fallbacks walk it.
	Defs   []TraitDef
	ByID   map[string]TraitDef
	Digest string

	conflicts map[string]map[string]bool
}

// Conflicts reports whether a and b may not be held together. The relation
// is symmetric regardless of which side the file declares it on.
func (c TraitCatalog) Conflicts(a, b string) bool {
	return c.conflicts[a][b]
}

// InCategory returns the defs of cat in catalog order.
func (c TraitCatalog) InCategory(cat TraitCategory) []TraitDef {
	var out []TraitDef
	for _, d := range c.Defs {
		if d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}

func (c TraitCatalog) Is(id string, cat TraitCategory) bool {
	d, ok := c.ByID[id]
	return ok && d.Category == cat
}

// NarrativeTemplate is a canned decision used when the narrative service
// is unavailable or returns something unusable.
type NarrativeTemplate struct {
	Tag     string                 `json:"tag"`
	Title   string                 `json:"title"`
	Prompt  string                 `json:"prompt"`
	Options []model.DecisionOption `json:"options"`
}

type NarrativeCatalog struct {
	ByTag  map[string][]NarrativeTemplate
	Digest string
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadTraits(filepath.Join(configDir, "traits.json"), &c.Traits); err != nil {
		return nil, err
	}
	if err := loadNarratives(filepath.Join(configDir, "narratives.json"), &c.Narratives); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadTraits(path string, out *TraitCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var file struct {
		Traits []TraitDef `json:"traits"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("traits.json: %w", err)
	}
	return out.build(file.Traits)
}

// NewTraitCatalog builds a catalog from defs, as if they had been loaded.
func NewTraitCatalog(defs []TraitDef) (TraitCatalog, error) {
	var c TraitCatalog
	raw, _ := json.Marshal(defs)
	c.Digest = sha256Hex(raw)
	err := c.build(defs)
	return c, err
}

func (c *TraitCatalog) build(defs []TraitDef) error {
	c.Defs = defs
	c.ByID = make(map[string]TraitDef, len(defs))
	for _, d := range defs {
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("traits.json: empty id")
		}
		if _, dup := c.ByID[d.ID]; dup {
			return fmt.Errorf("traits.json: duplicate id %q", d.ID)
		}
		switch d.Category {
		case CategoryMain, CategorySub:
		default:
			return fmt.Errorf("traits.json: %s: bad category %q", d.ID, d.Category)
		}
		switch d.Polarity {
		case PolarityPositive, PolarityNegative, PolarityNeutral:
		default:
			return fmt.Errorf("traits.json: %s: bad polarity %q", d.ID, d.Polarity)
		}
		for a, b := range d.Bands {
			if !knownAttribute(a) {
				return fmt.Errorf("traits.json: %s: unknown attribute %q", d.ID, a)
			}
			if b.Min > b.Max {
				return fmt.Errorf("traits.json: %s: band %s min > max", d.ID, a)
			}
		}
		c.ByID[d.ID] = d
	}

	c.conflicts = map[string]map[string]bool{}
	link := func(a, b string) {
		if c.conflicts[a] == nil {
			c.conflicts[a] = map[string]bool{}
		}
		c.conflicts[a][b] = true
	}
	for _, d := range defs {
		for _, other := range d.Conflicts {
			if _, ok := c.ByID[other]; !ok {
				return fmt.Errorf("traits.json: %s conflicts with unknown trait %q", d.ID, other)
			}
			if other == d.ID {
				return fmt.Errorf("traits.json: %s conflicts with itself", d.ID)
			}
			link(d.ID, other)
			link(other, d.ID)
		}
	}
	return nil
}

func knownAttribute(a model.Attribute) bool {
	for _, k := range model.Attributes {
		if k == a {
			return true
		}
	}
	return false
}

func loadNarratives(path string, out *NarrativeCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var file struct {
		Templates []NarrativeTemplate `json:"templates"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("narratives.json: %w", err)
	}
	out.ByTag = map[string][]NarrativeTemplate{}
	for i, t := range file.Templates {
		if t.Tag == "" {
			return fmt.Errorf("narratives.json: template %d: empty tag", i)
		}
		if n := len(t.Options); n < 2 || n > 3 {
			return fmt.Errorf("narratives.json: template %d (%s): %d options", i, t.Tag, n)
		}
		for _, o := range t.Options {
			if strings.TrimSpace(o.Label) == "" {
				return fmt.Errorf("narratives.json: template %d (%s): option without label", i, t.Tag)
			}
		}
		out.ByTag[t.Tag] = append(out.ByTag[t.Tag], t)
	}
	return nil
}
