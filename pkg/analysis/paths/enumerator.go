// Package paths enumerates directed root-to-sink paths through an activity
// graph.
//
// Traversal is bounded: following an edge back onto the path being built is
// a fatal ErrCycleDetected, and the number of produced paths can be capped
// with Options.MaxPaths. Cyclic diagrams are therefore rejected instead of
// looping forever.
package paths

import (
	"context"
	"errors"
	"fmt"

	"github.com/dubhe-dev/dubhe/pkg/graph"
	"github.com/dubhe-dev/dubhe/pkg/models"
)

var (
	// ErrCycleDetected means a path ran back into one of its own elements.
	ErrCycleDetected = errors.New("cycle detected")
	// ErrPathLimit means enumeration produced more paths than allowed.
	ErrPathLimit = errors.New("path limit exceeded")
)

// Options bounds path enumeration.
type Options struct {
	// MaxPaths caps the number of paths produced. Zero means no cap.
	MaxPaths int
}

func (o Options) exceeded(n int) bool {
	return o.MaxPaths > 0 && n > o.MaxPaths
}

// Enumerate returns every path from a root (no sources) to a sink (no
// destinations).
//
// Each in-progress path is extended along its last element's destinations.
// At a branch every destination but the last gets its own copy of the path so
// far; the current path continues with the last destination. Paths are returned
// seeds first, then branches in the order they were split off.
func Enumerate(ctx context.Context, g *graph.Graph, opts Options) ([]models.Path, error) {
	var all []models.Path
	for _, root := range g.Roots() {
		all = append(all, models.Path{root})
	}
	if opts.exceeded(len(all)) {
		return nil, fmt.Errorf("%w: %d roots", ErrPathLimit, len(all))
	}

	for i := 0; i < len(all); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for {
			last := all[i][len(all[i])-1]
			next := g.Successors(last)
			if len(next) == 0 {
				break
			}

			for _, dest := range next[:len(next)-1] {
				if all[i].Contains(dest.ID) {
					return nil, cycleError(last, dest)
				}
				branch := append(all[i].Clone(), dest)
				all = append(all, branch)
				if opts.exceeded(len(all)) {
					return nil, fmt.Errorf("%w: more than %d paths", ErrPathLimit, opts.MaxPaths)
				}
			}

			dest := next[len(next)-1]
			if all[i].Contains(dest.ID) {
				return nil, cycleError(last, dest)
			}
			all[i] = append(all[i], dest)
		}
	}
	return all, nil
}

// Longest returns the longest path, the earliest one on ties.
func Longest(all []models.Path) models.Path {
	var longest models.Path
	for _, p := range all {
		if len(p) > len(longest) {
			longest = p
		}
	}
	return longest
}

// From returns every maximal forward path that starts at start, depth-first
// in destination order.
func From(ctx context.Context, g *graph.Graph, start *models.Element, opts Options) ([]models.Path, error) {
	var out []models.Path

	var walk func(p models.Path) error
	walk = func(p models.Path) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		last := p[len(p)-1]
		next := g.Successors(last)
		if len(next) == 0 {
			out = append(out, p.Clone())
			if opts.exceeded(len(out)) {
				return fmt.Errorf("%w: more than %d paths from %s", ErrPathLimit, opts.MaxPaths, start.ID)
			}
			return nil
		}
		for _, dest := range next {
			if p.Contains(dest.ID) {
				return cycleError(last, dest)
			}
			if err := walk(append(p, dest)); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(models.Path{start}); err != nil {
		return nil, err
	}
	return out, nil
}

func cycleError(from, to *models.Element) error {
	return fmt.Errorf("%w: edge %s -> %s returns to an element already on the path", ErrCycleDetected, from.ID, to.ID)
}
