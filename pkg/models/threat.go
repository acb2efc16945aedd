package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Classification is a STRIDE threat category.
type Classification int

const (
	Spoofing Classification = iota
	Tampering
	Repudiation
	InformationDisclosure
	DenialOfService
	ElevationOfPrivilege
)

var classificationNames = [...]string{
	Spoofing:              "spoofing",
	Tampering:             "tampering",
	Repudiation:           "repudiation",
	InformationDisclosure: "information_disclosure",
	DenialOfService:       "denial_of_service",
	ElevationOfPrivilege:  "elevation_of_privilege",
}

// Classifications returns every STRIDE category in reporting order.
func Classifications() []Classification {
	return []Classification{
		Spoofing,
		Tampering,
		Repudiation,
		InformationDisclosure,
		DenialOfService,
		ElevationOfPrivilege,
	}
}

// String returns the pattern file stem for the classification.
func (c Classification) String() string {
	if c < 0 || int(c) >= len(classificationNames) {
		return fmt.Sprintf("classification(%d)", int(c))
	}
	return classificationNames[c]
}

// Title is the human readable label, e.g. "Information Disclosure".
func (c Classification) Title() string {
	words := strings.Split(c.String(), "_")
	for i, w := range words {
		if w == "of" {
			continue
		}
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// ParseClassification maps a pattern file stem back to its classification.
func ParseClassification(s string) (Classification, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for i, name := range classificationNames {
		if name == norm {
			return Classification(i), nil
		}
	}
	return 0, fmt.Errorf("unknown STRIDE classification %q", s)
}

// MarshalText encodes the classification by its stem.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a classification stem.
func (c *Classification) UnmarshalText(text []byte) error {
	parsed, err := ParseClassification(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TokenKind discriminates pattern tokens.
type TokenKind int

const (
	// LiteralKind matches on uml type only.
	LiteralKind TokenKind = iota
	// SemanticKind matches on uml type and, when required, name similarity.
	SemanticKind
	// WildcardKind skips any number of elements until the next token matches.
	WildcardKind
)

// WildcardMarker is how a wildcard token is written in pattern literals.
const WildcardMarker = "..."

// Token is one element of a detection or mitigation pattern.
type Token struct {
	Kind    TokenKind
	UMLType string
	Name    string
}

// LiteralToken matches any element of the given type.
func LiteralToken(umlType string) Token {
	return Token{Kind: LiteralKind, UMLType: umlType}
}

// SemanticToken matches an element of the given type whose name is
// semantically close to name.
func SemanticToken(umlType, name string) Token {
	return Token{Kind: SemanticKind, UMLType: umlType, Name: name}
}

// WildcardToken skips ahead to the next token.
func WildcardToken() Token {
	return Token{Kind: WildcardKind}
}

// String renders the token in pattern literal syntax.
func (t Token) String() string {
	switch t.Kind {
	case WildcardKind:
		return fmt.Sprintf("%q", WildcardMarker)
	case SemanticKind:
		return fmt.Sprintf("(%q, %q)", t.UMLType, t.Name)
	default:
		return fmt.Sprintf("%q", t.UMLType)
	}
}

// MarshalJSON keeps report output in the same shape as the pattern files.
func (t Token) MarshalJSON() ([]byte, error) {
	switch t.Kind {
	case WildcardKind:
		return json.Marshal(WildcardMarker)
	case SemanticKind:
		return json.Marshal([]string{t.UMLType, t.Name})
	default:
		return json.Marshal(t.UMLType)
	}
}

// UnmarshalJSON accepts a type string, the wildcard marker or a
// [type, name] pair.
func (t *Token) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []string
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("failed to decode semantic token: %w", err)
		}
		return t.fromPair(pair)
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to decode token: %w", err)
	}
	*t = TokenFromString(s)
	return nil
}

// MarshalYAML mirrors MarshalJSON.
func (t Token) MarshalYAML() (interface{}, error) {
	switch t.Kind {
	case WildcardKind:
		return WildcardMarker, nil
	case SemanticKind:
		return []string{t.UMLType, t.Name}, nil
	default:
		return t.UMLType, nil
	}
}

// UnmarshalYAML mirrors UnmarshalJSON.
func (t *Token) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var pair []string
		if err := value.Decode(&pair); err != nil {
			return fmt.Errorf("failed to decode semantic token: %w", err)
		}
		return t.fromPair(pair)
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("failed to decode token: %w", err)
	}
	*t = TokenFromString(s)
	return nil
}

var errTokenPair = errors.New("semantic token needs a [type, name] pair")

func (t *Token) fromPair(pair []string) error {
	if len(pair) != 2 {
		return fmt.Errorf("%w, got %d items", errTokenPair, len(pair))
	}
	*t = SemanticToken(pair[0], pair[1])
	return nil
}

// TokenFromString returns the wildcard for the wildcard marker and a literal
// token for any other type name.
func TokenFromString(s string) Token {
	if s == WildcardMarker {
		return WildcardToken()
	}
	return LiteralToken(s)
}

// FormatPattern renders a token sequence in pattern literal syntax.
func FormatPattern(tokens []Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// AnchorAfterPath places the mitigation anchor immediately after the
// detected path.
const AnchorAfterPath = -1

// ThreatInfo is one STRIDE threat definition with its mitigation evidence.
type ThreatInfo struct {
	Technique          string    `json:"technique" yaml:"technique"`
	TechniqueID        string    `json:"technique_id" yaml:"technique_id"`
	Mitigation         string    `json:"mitigation" yaml:"mitigation"`
	MitigationID       string    `json:"mitigation_id" yaml:"mitigation_id"`
	DetectPattern      []Token   `json:"detect_pattern" yaml:"detect_pattern"`
	MitigationPatterns [][]Token `json:"mitigation_patterns" yaml:"mitigation_patterns"`
	MitigationAnchor   int       `json:"mitigation_anchor" yaml:"mitigation_anchor"`
}

// String returns "technique - id", the form used in listings.
func (t ThreatInfo) String() string {
	return fmt.Sprintf("%s - %s", t.Technique, t.TechniqueID)
}

// Detection records a threat found under a classification.
type Detection struct {
	Classification Classification `json:"classification" yaml:"classification"`
	Threat         ThreatInfo     `json:"threat" yaml:"threat"`
}

// MitigationStatus is the outcome of the mitigation check for a detection.
type MitigationStatus int

const (
	Unmitigated MitigationStatus = iota
	PotentiallyMitigated
	ConfirmedMitigated
)

func (s MitigationStatus) String() string {
	switch s {
	case PotentiallyMitigated:
		return "potentially mitigated"
	case ConfirmedMitigated:
		return "confirmed mitigated"
	default:
		return "unmitigated"
	}
}
