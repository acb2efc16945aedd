package matching

import (
	"strings"
	"unicode"
)

// Scorer rates how close two element names are, from 0 (unrelated) to 1
// (equivalent). One instance is built per run and shared by every worker, so
// implementations must be safe for concurrent use.
type Scorer interface {
	Similarity(a, b string) float64
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(a, b string) float64

// Similarity calls f(a, b).
func (f ScorerFunc) Similarity(a, b string) float64 {
	return f(a, b)
}

// LexicalScorer compares names by their words and character bigrams.
//
// Names are split on case changes, digits and punctuation and lower-cased, so
// "ValidateInput", "validate_input" and "Validate input" are equivalent. The
// score is the larger of the word-set Jaccard index and the bigram Dice
// coefficient, which tolerates spelling variants such as sanitize/sanitise.
type LexicalScorer struct{}

// NewLexicalScorer returns the default scorer.
func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{}
}

// Similarity implements Scorer.
func (s *LexicalScorer) Similarity(a, b string) float64 {
	wordsA := words(a)
	wordsB := words(b)

	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1.0
	}
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0.0
	}

	joinedA := strings.Join(wordsA, "")
	joinedB := strings.Join(wordsB, "")
	if joinedA == joinedB {
		return 1.0
	}

	jaccard := jaccardSimilarity(wordsA, wordsB)
	dice := diceCoefficient(joinedA, joinedB)
	if dice > jaccard {
		return dice
	}
	return jaccard
}

// words splits a name into lower-case words.
func words(s string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r):
			// split "validateInput" and "HTTPServer" before the new word
			if unicode.IsUpper(r) && len(cur) > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					flush()
				}
			}
			cur = append(cur, r)
		case unicode.IsDigit(r):
			cur = append(cur, r)
		default:
			flush()
		}
	}
	flush()
	return out
}

func jaccardSimilarity(a, b []string) float64 {
	setA := make(map[string]bool, len(a))
	for _, w := range a {
		setA[w] = true
	}
	setB := make(map[string]bool, len(b))
	for _, w := range b {
		setB[w] = true
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func diceCoefficient(a, b string) float64 {
	bigramsA := bigrams(a)
	bigramsB := bigrams(b)
	if len(bigramsA) == 0 || len(bigramsB) == 0 {
		return 0.0
	}

	counts := make(map[string]int, len(bigramsA))
	for _, bg := range bigramsA {
		counts[bg]++
	}
	shared := 0
	for _, bg := range bigramsB {
		if counts[bg] > 0 {
			counts[bg]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(bigramsA)+len(bigramsB))
}

func bigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	out := make([]string, 0, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		out = append(out, string(runes[i:i+2]))
	}
	return out
}
