// Package matching implements the ordered-subsequence matcher used to find
// threat and mitigation signatures along activity paths.
package matching

import (
	"github.com/dubhe-dev/dubhe/pkg/models"
)

// SimilarityThreshold is the minimum name similarity for a semantic token to
// match when semantic matching is required.
const SimilarityThreshold = 0.7

// Step is the (uml type, name) view of one path element.
type Step struct {
	UMLType string
	Name    string
}

// StepsOf projects a path onto the steps the matcher works with.
func StepsOf(path models.Path) []Step {
	steps := make([]Step, len(path))
	for i, e := range path {
		steps[i] = Step{UMLType: e.UMLType, Name: e.Name}
	}
	return steps
}

// Matcher matches token patterns against step sequences. It is safe for
// concurrent use as long as its Scorer is.
type Matcher struct {
	scorer Scorer
}

// NewMatcher creates a matcher that uses scorer for semantic tokens.
func NewMatcher(scorer Scorer) *Matcher {
	if scorer == nil {
		scorer = NewLexicalScorer()
	}
	return &Matcher{scorer: scorer}
}

// Matches reports whether pattern occurs, in order, within seq.
func (m *Matcher) Matches(seq []Step, pattern []models.Token, requireSemantic bool) bool {
	_, _, ok := m.Span(seq, pattern, requireSemantic)
	return ok
}

// Span matches pattern against seq and returns the half-open range
// [start, end) between the first and last consumed step.
//
// The walk is greedy with a single pass and no backtracking:
//   - a token that accepts the current step consumes it and both pointers move;
//   - a token that does not accept it moves only the sequence pointer;
//   - a wildcard moves the sequence pointer to the first step the following
//     token accepts, failing when the sequence runs out.
//
// A trailing wildcard, or an empty pattern, matches trivially. Steps after the
// last consumed one are ignored. When nothing is consumed start == end.
func (m *Matcher) Span(seq []Step, pattern []models.Token, requireSemantic bool) (start, end int, ok bool) {
	i, j := 0, 0
	start = -1

	for j < len(pattern) {
		tok := pattern[j]

		if tok.Kind == models.WildcardKind {
			j++
			if j == len(pattern) {
				break
			}
			next := pattern[j]
			if next.Kind == models.WildcardKind {
				continue
			}
			for i < len(seq) && !m.accepts(seq[i], next, requireSemantic) {
				i++
			}
			if i == len(seq) {
				return 0, 0, false
			}
			continue
		}

		if i >= len(seq) {
			return 0, 0, false
		}
		if m.accepts(seq[i], tok, requireSemantic) {
			if start < 0 {
				start = i
			}
			i++
			j++
			end = i
			continue
		}
		i++
	}

	if start < 0 {
		start = end
	}
	return start, end, true
}

func (m *Matcher) accepts(step Step, tok models.Token, requireSemantic bool) bool {
	if step.UMLType != tok.UMLType {
		return false
	}
	if tok.Kind == models.SemanticKind && requireSemantic {
		return m.scorer.Similarity(step.Name, tok.Name) >= SimilarityThreshold
	}
	return true
}
