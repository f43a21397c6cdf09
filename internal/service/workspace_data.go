package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/campaign-portal/internal/agent"
	"github.com/unclebandit/campaign-portal/internal/highlight"
	"github.com/unclebandit/campaign-portal/internal/model"
)

// strategicKinds are fetched together for content generation.
var strategicKinds = []string{
	model.ElementPersonas,
	model.ElementUseCases,
	model.ElementReferences,
	model.ElementSegments,
	model.ElementPlaybooks,
	model.ElementCompetitors,
	model.ElementProofPoints,
	"products",
}

const strategicListLimit = 50

// StrategicElements holds every kind, empty when its fetch failed.
type StrategicElements struct {
	Elements map[string][]agent.Object `json:"elements"`
	Errors   map[string]string         `json:"errors,omitempty"`
}

func (s StrategicElements) Of(kind string) []agent.Object { return s.Elements[kind] }

// FetchStrategicElements lists every kind concurrently. A failed kind never
// cancels the others.
func FetchStrategicElements(ctx context.Context, platform Platform, credential string, logger *slog.Logger) StrategicElements {
	out := StrategicElements{Elements: map[string][]agent.Object{}, Errors: map[string]string{}}
	var mu sync.Mutex
	var g errgroup.Group

	for _, kind := range strategicKinds {
		kind := kind
		g.Go(func() error {
			objs, err := platform.ListElements(ctx, credential, kind, strategicListLimit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("strategic element fetch failed", slog.String("kind", kind), slog.String("error", err.Error()))
				out.Errors[kind] = err.Error()
				objs = nil
			}
			if objs == nil {
				objs = []agent.Object{}
			}
			out.Elements[kind] = objs
			return nil
		})
	}
	g.Wait()
	return out
}

// HighlightElements builds the tagging context from fetched elements, or
// from the stored workspace record when a kind came back empty.
func (s StrategicElements) HighlightElements(ws *model.Workspace) highlight.Elements {
	pick := func(kind string) model.ElementSet {
		if objs := s.Elements[kind]; len(objs) > 0 {
			return toSet(objs)
		}
		if ws != nil {
			return ws.Elements(kind)
		}
		return nil
	}
	return highlight.FromSets(pick(model.ElementPersonas), pick(model.ElementUseCases), pick(model.ElementReferences))
}

func sortedKeys(set model.ElementSet) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
