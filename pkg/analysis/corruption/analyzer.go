// Package corruption recommends where a data sanitizer would best limit the
// propagation of corrupted data through an activity diagram.
package corruption

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dubhe-dev/dubhe/pkg/analysis/paths"
	"github.com/dubhe-dev/dubhe/pkg/graph"
	"github.com/dubhe-dev/dubhe/pkg/models"
)

// Analyzer runs the three placement heuristics and the path enumeration.
type Analyzer struct {
	logger *zap.Logger
	config *Config
}

// Config holds configuration for propagation analysis.
type Config struct {
	// MaxPaths caps path enumeration. Zero means no cap.
	MaxPaths int
}

// Result is the outcome of one propagation analysis.
type Result struct {
	// AlreadyProtected is set when the diagram already contains a
	// DataSanitizer group. No recommendation is computed in that case.
	AlreadyProtected bool

	ProtectStores []models.PlacementPoint
	ProtectEntry  []models.PlacementPoint
	ProtectWhole  []models.PlacementPoint

	Paths   []models.Path
	Longest models.Path
	CPP     models.CPPSummary
}

// NewAnalyzer creates a new propagation analyzer
func NewAnalyzer(logger *zap.Logger, config *Config) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config == nil {
		config = &Config{}
	}
	return &Analyzer{logger: logger, config: config}
}

// Analyze computes the placement recommendations for g. The store, entry and
// whole-system heuristics and the path enumeration run concurrently; the CPP
// is computed once all of them are done.
func (a *Analyzer) Analyze(ctx context.Context, g *graph.Graph) (*Result, error) {
	if HasSanitizer(g) {
		a.logger.Info("Diagram already contains a data sanitizer, skipping placement analysis")
		return &Result{AlreadyProtected: true}, nil
	}

	res := &Result{}
	opts := paths.Options{MaxPaths: a.config.MaxPaths}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		res.ProtectStores = ProtectStores(g)
		return nil
	})
	eg.Go(func() error {
		res.ProtectEntry = ProtectEntry(g)
		return nil
	})
	eg.Go(func() error {
		var err error
		res.ProtectWhole, err = ProtectWhole(egCtx, g, opts)
		return err
	})
	eg.Go(func() error {
		all, err := paths.Enumerate(egCtx, g, opts)
		if err != nil {
			return fmt.Errorf("failed to enumerate paths: %w", err)
		}
		res.Paths = all
		res.Longest = paths.Longest(all)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res.CPP = CPP(res.Paths)
	a.logger.Debug("Propagation analysis complete",
		zap.Int("paths", len(res.Paths)),
		zap.Int("longest", len(res.Longest)),
		zap.Int("store_recommendation", len(res.ProtectStores)),
		zap.Int("entry_recommendation", len(res.ProtectEntry)),
		zap.Int("whole_recommendation", len(res.ProtectWhole)))
	return res, nil
}

// HasSanitizer reports whether any element sits inside a DataSanitizer group.
func HasSanitizer(g *graph.Graph) bool {
	for _, e := range g.Elements() {
		if e.Sanitized() {
			return true
		}
	}
	return false
}

// ProtectStores recommends a sanitizer in front of the data stores.
//
// With a single store the sanitizer goes between the store and its
// predecessor. With several, each store is walked back to a root along its
// first source; the element visited by the most walks (earliest in walk order
// on ties) becomes the anchor and the sanitizer goes in front of it.
func ProtectStores(g *graph.Graph) []models.PlacementPoint {
	stores := g.OfType(models.DataStoreNodeType)
	switch len(stores) {
	case 0:
		return nil
	case 1:
		return inFrontOf(g, stores[0], firstSource)
	}

	tally := make(map[string]int)
	var order []*models.Element
	for _, store := range stores {
		for _, e := range walkBack(g, store) {
			if tally[e.ID] == 0 {
				order = append(order, e)
			}
			tally[e.ID]++
		}
	}

	var anchor *models.Element
	for _, e := range order {
		if anchor == nil || tally[e.ID] > tally[anchor.ID] {
			anchor = e
		}
	}
	return inFrontOf(g, anchor, firstSource)
}

// walkBack follows the first source of each element from start until it
// reaches a root or an element it has already seen.
func walkBack(g *graph.Graph, start *models.Element) []*models.Element {
	seen := make(map[string]bool)
	var walk []*models.Element
	for e := start; e != nil && !seen[e.ID]; e = firstSource(g, e) {
		seen[e.ID] = true
		walk = append(walk, e)
	}
	return walk
}

// ProtectEntry recommends a sanitizer directly after the first InitialNode.
func ProtectEntry(g *graph.Graph) []models.PlacementPoint {
	initial := g.OfType(models.InitialNodeType)
	if len(initial) == 0 {
		return nil
	}
	entry := initial[0]
	next := g.Successors(entry)
	if len(next) == 0 {
		return nil
	}
	return models.Between(entry, next[0])
}

// ProtectWhole recommends a sanitizer in front of the midpoint of the longest
// path. For an even length the midpoint is element length/2-1, otherwise
// length/2.
func ProtectWhole(ctx context.Context, g *graph.Graph, opts paths.Options) ([]models.PlacementPoint, error) {
	all, err := paths.Enumerate(ctx, g, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate paths: %w", err)
	}
	longest := paths.Longest(all)
	if len(longest) == 0 {
		return nil, nil
	}

	mid := Midpoint(len(longest))
	midpoint := longest[mid]
	if prev := lastSource(g, midpoint); prev != nil {
		return models.Between(prev, midpoint), nil
	}
	if mid+1 < len(longest) {
		return models.Between(midpoint, longest[mid+1]), nil
	}
	return nil, nil
}

// Midpoint returns the index of the midpoint element of a path of length n.
func Midpoint(n int) int {
	if n%2 == 0 {
		return n/2 - 1
	}
	return n / 2
}

type predecessorFunc func(*graph.Graph, *models.Element) *models.Element

// inFrontOf places the sanitizer between anchor and the predecessor chosen by
// pick. An anchor without a predecessor gets the sanitizer directly after it.
func inFrontOf(g *graph.Graph, anchor *models.Element, pick predecessorFunc) []models.PlacementPoint {
	if prev := pick(g, anchor); prev != nil {
		return models.Between(prev, anchor)
	}
	if next := g.Successors(anchor); len(next) > 0 {
		return models.Between(anchor, next[0])
	}
	return nil
}

func firstSource(g *graph.Graph, e *models.Element) *models.Element {
	prev := g.Predecessors(e)
	if len(prev) == 0 {
		return nil
	}
	return prev[0]
}

func lastSource(g *graph.Graph, e *models.Element) *models.Element {
	prev := g.Predecessors(e)
	if len(prev) == 0 {
		return nil
	}
	return prev[len(prev)-1]
}
