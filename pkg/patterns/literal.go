package patterns

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/dubhe-dev/dubhe/pkg/models"
)

// ErrInvalidLiteral is returned for pattern fields that are not well-formed
// structured literals.
var ErrInvalidLiteral = errors.New("invalid pattern literal")

// Value is a parsed structured literal: a string, an int64, nil, or a
// []Value for lists and tuples.
type Value interface{}

// ParseLiteral parses the data-only literal syntax used in pattern files:
// lists [a, b], tuples (a, b), single or double quoted strings, integers and
// None. Nothing is evaluated; any other syntax is rejected.
func ParseLiteral(src string) (Value, error) {
	p := &literalParser{src: []rune(src)}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q after value", p.peek())
	}
	return v, nil
}

type literalParser struct {
	src []rune
	pos int
}

func (p *literalParser) eof() bool  { return p.pos >= len(p.src) }
func (p *literalParser) peek() rune { return p.src[p.pos] }

func (p *literalParser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w at offset %d: %s", ErrInvalidLiteral, p.pos, fmt.Sprintf(format, args...))
}

func (p *literalParser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.peek()) {
		p.pos++
	}
}

func (p *literalParser) value() (Value, error) {
	if p.eof() {
		return nil, p.errorf("unexpected end of input")
	}
	switch r := p.peek(); {
	case r == '[':
		return p.sequence('[', ']')
	case r == '(':
		return p.sequence('(', ')')
	case r == '\'' || r == '"':
		return p.str(r)
	case r == '-' || r == '+' || unicode.IsDigit(r):
		return p.integer()
	case unicode.IsLetter(r):
		word := p.word()
		if word == "None" {
			return nil, nil
		}
		return nil, p.errorf("bare identifier %q is not a literal", word)
	default:
		return nil, p.errorf("unexpected %q", r)
	}
}

func (p *literalParser) sequence(open, closing rune) (Value, error) {
	p.pos++
	items := []Value{}
	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("unterminated %c", open)
		}
		if p.peek() == closing {
			p.pos++
			return items, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, v)

		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("unterminated %c", open)
		}
		switch p.peek() {
		case ',':
			p.pos++
		case closing:
			p.pos++
			return items, nil
		default:
			return nil, p.errorf("expected ',' or %q, got %q", closing, p.peek())
		}
	}
}

func (p *literalParser) str(quote rune) (Value, error) {
	p.pos++
	var b strings.Builder
	for !p.eof() {
		r := p.peek()
		p.pos++
		switch r {
		case quote:
			return b.String(), nil
		case '\\':
			if p.eof() {
				return nil, p.errorf("unterminated escape")
			}
			esc := p.peek()
			p.pos++
			switch esc {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			default:
				b.WriteRune(esc)
			}
		default:
			b.WriteRune(r)
		}
	}
	return nil, p.errorf("unterminated string")
}

func (p *literalParser) integer() (Value, error) {
	start := p.pos
	if r := p.peek(); r == '-' || r == '+' {
		p.pos++
	}
	for !p.eof() && unicode.IsDigit(p.peek()) {
		p.pos++
	}
	n, err := strconv.ParseInt(string(p.src[start:p.pos]), 10, 64)
	if err != nil {
		return nil, p.errorf("bad integer %q", string(p.src[start:p.pos]))
	}
	return n, nil
}

func (p *literalParser) word() string {
	start := p.pos
	for !p.eof() && (unicode.IsLetter(p.peek()) || unicode.IsDigit(p.peek()) || p.peek() == '_') {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

// tokensFromValue converts a parsed literal list into pattern tokens.
// A string is a literal type (or the wildcard marker) and a pair of strings
// is a semantic (type, name) token.
func tokensFromValue(v Value) ([]models.Token, error) {
	items, ok := v.([]Value)
	if !ok {
		return nil, fmt.Errorf("%w: pattern must be a list, got %T", ErrInvalidLiteral, v)
	}
	tokens := make([]models.Token, 0, len(items))
	for i, item := range items {
		tok, err := tokenFromValue(item)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i, err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func tokenFromValue(v Value) (models.Token, error) {
	switch t := v.(type) {
	case string:
		return models.TokenFromString(t), nil
	case []Value:
		if len(t) != 2 {
			return models.Token{}, fmt.Errorf("%w: semantic token needs (type, name), got %d items", ErrInvalidLiteral, len(t))
		}
		umlType, ok1 := t[0].(string)
		name, ok2 := t[1].(string)
		if !ok1 || !ok2 {
			return models.Token{}, fmt.Errorf("%w: semantic token items must be strings", ErrInvalidLiteral)
		}
		return models.SemanticToken(umlType, name), nil
	default:
		return models.Token{}, fmt.Errorf("%w: unsupported token %v (%T)", ErrInvalidLiteral, v, v)
	}
}

// mitigationPatternsFromValue converts a list of patterns.
func mitigationPatternsFromValue(v Value) ([][]models.Token, error) {
	items, ok := v.([]Value)
	if !ok {
		return nil, fmt.Errorf("%w: mitigation patterns must be a list of patterns, got %T", ErrInvalidLiteral, v)
	}
	out := make([][]models.Token, 0, len(items))
	for i, item := range items {
		tokens, err := tokensFromValue(item)
		if err != nil {
			return nil, fmt.Errorf("mitigation pattern %d: %w", i, err)
		}
		out = append(out, tokens)
	}
	return out, nil
}

func anchorFromValue(v Value) (int, error) {
	switch t := v.(type) {
	case int64:
		return int(t), nil
	case nil:
		return models.AnchorAfterPath, nil
	default:
		return 0, fmt.Errorf("%w: mitigation anchor must be an integer, got %T", ErrInvalidLiteral, v)
	}
}
