// Package threat detects STRIDE threat signatures along activity paths,
// classifies the evidence of their mitigation, and accumulates the
// statistics behind the Critical Element Risk Index.
package threat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dubhe-dev/dubhe/pkg/analysis/matching"
	"github.com/dubhe-dev/dubhe/pkg/analysis/paths"
	"github.com/dubhe-dev/dubhe/pkg/graph"
	"github.com/dubhe-dev/dubhe/pkg/models"
)

// Classifier evaluates threat definitions against one graph. A Classifier is
// safe for concurrent use: the graph and matcher are only read, and all
// per-call state lives in the returned Outcome.
type Classifier struct {
	graph   *graph.Graph
	matcher *matching.Matcher
	logger  *zap.Logger
	opts    paths.Options
}

// Outcome is the result of classifying the threats of one classification.
// The three detection sets are disjoint.
type Outcome struct {
	Classification models.Classification

	Unmitigated []models.Detection
	Potential   []models.Detection
	Confirmed   []models.Detection

	// Buffer holds the risk statistics gathered by this call only.
	Buffer *Buffer
}

// NewClassifier creates a classifier over g.
func NewClassifier(g *graph.Graph, matcher *matching.Matcher, logger *zap.Logger, opts paths.Options) *Classifier {
	if matcher == nil {
		matcher = matching.NewMatcher(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{graph: g, matcher: matcher, logger: logger, opts: opts}
}

// Classify evaluates threats, in order, for classification c.
func (c *Classifier) Classify(ctx context.Context, class models.Classification, threats []models.ThreatInfo) (*Outcome, error) {
	out := &Outcome{Classification: class, Buffer: NewBuffer()}
	subs := &subPaths{classifier: c, cache: make(map[string][]models.Path)}

	for _, threat := range threats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(threat.DetectPattern) == 0 {
			c.logger.Warn("Skipping threat with empty detect pattern",
				zap.String("classification", class.String()),
				zap.String("technique_id", threat.TechniqueID))
			continue
		}

		detected, err := c.detect(ctx, subs, threat)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate %s: %w", threat.TechniqueID, err)
		}
		if detected == nil {
			continue
		}
		for _, e := range detected {
			out.Buffer.Hit(e)
		}

		status, err := c.mitigation(ctx, subs, threat, detected)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate mitigation of %s: %w", threat.TechniqueID, err)
		}

		d := models.Detection{Classification: class, Threat: threat}
		switch status {
		case models.ConfirmedMitigated:
			out.Confirmed = append(out.Confirmed, d)
			for _, e := range detected {
				out.Buffer.Mitigated(e)
			}
		case models.PotentiallyMitigated:
			out.Potential = append(out.Potential, d)
			for _, e := range detected {
				out.Buffer.Potential(e)
			}
		default:
			out.Unmitigated = append(out.Unmitigated, d)
		}

		c.logger.Debug("Threat detected",
			zap.String("classification", class.String()),
			zap.String("technique_id", threat.TechniqueID),
			zap.Strings("path", detected.IDs()),
			zap.Stringer("status", status))
	}
	return out, nil
}

// detect returns the matched span of the first sub-path, in element order
// then depth-first order, that matches the detect pattern. It returns nil
// when the threat is not present.
func (c *Classifier) detect(ctx context.Context, subs *subPaths, threat models.ThreatInfo) (models.Path, error) {
	for _, e := range c.graph.Elements() {
		candidates, err := subs.from(ctx, e)
		if err != nil {
			return nil, err
		}
		for _, p := range candidates {
			start, end, ok := c.matcher.Span(matching.StepsOf(p), threat.DetectPattern, true)
			if ok && end > start {
				return p[start:end].Clone(), nil
			}
		}
	}
	return nil, nil
}

// mitigation checks the sub-paths leaving the mitigation anchor against the
// threat's mitigation patterns.
func (c *Classifier) mitigation(ctx context.Context, subs *subPaths, threat models.ThreatInfo, detected models.Path) (models.MitigationStatus, error) {
	var candidates [][]matching.Step
	for _, start := range c.anchorStarts(detected, threat.MitigationAnchor) {
		ps, err := subs.from(ctx, start)
		if err != nil {
			return models.Unmitigated, err
		}
		for _, p := range ps {
			candidates = append(candidates, matching.StepsOf(p))
		}
	}

	if c.anyMatch(candidates, threat.MitigationPatterns, true) {
		return models.ConfirmedMitigated, nil
	}
	if c.anyMatch(candidates, threat.MitigationPatterns, false) {
		return models.PotentiallyMitigated, nil
	}
	return models.Unmitigated, nil
}

func (c *Classifier) anyMatch(candidates [][]matching.Step, patterns [][]models.Token, requireSemantic bool) bool {
	for _, seq := range candidates {
		for _, pattern := range patterns {
			if c.matcher.Matches(seq, pattern, requireSemantic) {
				return true
			}
		}
	}
	return false
}

// anchorStarts resolves a mitigation anchor to the elements mitigation
// sub-paths start from. Anchor 0 is in front of the detected path: the
// predecessors of its first element, or that element when it is a root.
// AnchorAfterPath, or any index past the end, is behind it: the successors
// of its last element. Any other index names an element of the path.
func (c *Classifier) anchorStarts(detected models.Path, anchor int) []*models.Element {
	switch {
	case anchor == 0:
		if prev := c.graph.Predecessors(detected[0]); len(prev) > 0 {
			return prev
		}
		return []*models.Element{detected[0]}
	case anchor < 0 || anchor >= len(detected):
		return c.graph.Successors(detected[len(detected)-1])
	default:
		return []*models.Element{detected[anchor]}
	}
}

// subPaths memoises forward sub-paths per start element for one Classify
// call.
type subPaths struct {
	classifier *Classifier
	cache      map[string][]models.Path
}

func (s *subPaths) from(ctx context.Context, e *models.Element) ([]models.Path, error) {
	if ps, ok := s.cache[e.ID]; ok {
		return ps, nil
	}
	ps, err := paths.From(ctx, s.classifier.graph, e, s.classifier.opts)
	if err != nil {
		return nil, err
	}
	s.cache[e.ID] = ps
	return ps, nil
}
