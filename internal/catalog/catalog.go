// Package catalog serves the play catalog: a static table compiled into the
// binary, merged at read time with per-code overlay rows from the datastore.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/unclebandit/campaign-portal/internal/model"
)

//go:embed plays.yaml
var playsYAML []byte

type document struct {
	Plays []model.PlayTemplate `yaml:"plays"`
}

// Parse decodes a catalog document and checks every entry.
func Parse(data []byte) ([]model.PlayTemplate, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("catalog: document is empty")
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}

	seen := map[string]bool{}
	for i, p := range doc.Plays {
		if p.Code == "" || p.Name == "" {
			return nil, fmt.Errorf("catalog: entry %d needs code and name", i)
		}
		if seen[p.Code] {
			return nil, fmt.Errorf("catalog: duplicate code %s", p.Code)
		}
		switch p.Category {
		case model.CategoryOutbound, model.CategoryNurture, model.CategoryAllbound:
		default:
			return nil, fmt.Errorf("catalog: %s has unknown category %q", p.Code, p.Category)
		}
		seen[p.Code] = true
	}
	sort.Slice(doc.Plays, func(i, j int) bool { return doc.Plays[i].Code < doc.Plays[j].Code })
	return doc.Plays, nil
}

// OverlaySource is the datastore side of the catalog.
type OverlaySource interface {
	ListOverlays(ctx context.Context) (map[string]model.TemplateOverlay, error)
	EnsureOverlay(ctx context.Context, code string) (bool, error)
}

type Catalog struct {
	static   []model.PlayTemplate
	overlays OverlaySource
}

// New uses the embedded table. overlays may be nil, in which case every
// unblocked play is active with default settings.
func New(overlays OverlaySource) (*Catalog, error) {
	static, err := Parse(playsYAML)
	if err != nil {
		return nil, err
	}
	return &Catalog{static: static, overlays: overlays}, nil
}

// List returns unblocked plays, optionally filtered by category. Inactive
// plays are only included when includeInactive is set.
func (c *Catalog) List(ctx context.Context, category string, includeInactive bool) ([]model.PlayTemplate, error) {
	overlays, err := c.loadOverlays(ctx)
	if err != nil {
		return nil, err
	}

	out := []model.PlayTemplate{}
	for _, p := range c.static {
		if p.Blocked || (category != "" && p.Category != category) {
			continue
		}
		merged := merge(p, overlays)
		if !merged.IsActive && !includeInactive {
			continue
		}
		out = append(out, merged)
	}
	return out, nil
}

// Get returns the merged entry for code, or false when the code is unknown
// or blocked.
func (c *Catalog) Get(ctx context.Context, code string) (model.PlayTemplate, bool, error) {
	for _, p := range c.static {
		if p.Code != code || p.Blocked {
			continue
		}
		overlays, err := c.loadOverlays(ctx)
		if err != nil {
			return model.PlayTemplate{}, false, err
		}
		return merge(p, overlays), true, nil
	}
	return model.PlayTemplate{}, false, nil
}

// Seed makes sure every static play has an overlay row and reports how many
// rows were created.
func (c *Catalog) Seed(ctx context.Context) (int, error) {
	if c.overlays == nil {
		return 0, fmt.Errorf("catalog: no overlay store configured")
	}
	created := 0
	for _, p := range c.static {
		ok, err := c.overlays.EnsureOverlay(ctx, p.Code)
		if err != nil {
			return created, fmt.Errorf("catalog: seed %s: %w", p.Code, err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func (c *Catalog) loadOverlays(ctx context.Context) (map[string]model.TemplateOverlay, error) {
	if c.overlays == nil {
		return nil, nil
	}
	overlays, err := c.overlays.ListOverlays(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load overlays: %w", err)
	}
	return overlays, nil
}

func merge(p model.PlayTemplate, overlays map[string]model.TemplateOverlay) model.PlayTemplate {
	p.IsActive = true
	p.AgentNamePattern = p.Code
	o, ok := overlays[p.Code]
	if !ok {
		return p
	}
	p.IsActive = o.IsActive
	if o.AgentNamePattern != "" {
		p.AgentNamePattern = o.AgentNamePattern
	}
	p.PromptOverride = o.PromptOverride
	return p
}

// MatchAgent picks the agent for a play from the workspace's agent names.
// A name that starts with the pattern followed by "_" or a space wins over one
// that merely contains it. It returns -1 when nothing matches.
func MatchAgent(names []string, pattern string) int {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return -1
	}
	for i, n := range names {
		n = strings.ToLower(n)
		if strings.HasPrefix(n, pattern+"_") || strings.HasPrefix(n, pattern+" ") {
			return i
		}
	}
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), pattern) {
			return i
		}
	}
	return -1
}
