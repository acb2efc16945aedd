package patterns

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/dubhe-dev/dubhe/pkg/models"
)

// yamlLibrary is the YAML form of a pattern file. Tokens are written as a
// plain string (uml type or "...") or a two item [type, name] list.
type yamlLibrary struct {
	Version string       `yaml:"version"`
	Threats []yamlThreat `yaml:"threats"`
}

type yamlThreat struct {
	Technique          string        `yaml:"technique"`
	TechniqueID        string        `yaml:"technique_id"`
	Mitigation         string        `yaml:"mitigation"`
	MitigationID       string        `yaml:"mitigation_id"`
	DetectPattern      []interface{} `yaml:"detect_pattern"`
	MitigationPatterns []interface{} `yaml:"mitigation_patterns"`
	MitigationAnchor   *int          `yaml:"mitigation_anchor"`
}

// ParseYAML reads a YAML pattern file.
func ParseYAML(r io.Reader) (*Library, error) {
	var raw yamlLibrary
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return &Library{}, nil
		}
		return nil, fmt.Errorf("failed to parse YAML patterns: %w", err)
	}

	lib := &Library{Version: raw.Version}
	for i, t := range raw.Threats {
		threat := models.ThreatInfo{
			Technique:        t.Technique,
			TechniqueID:      t.TechniqueID,
			Mitigation:       t.Mitigation,
			MitigationID:     t.MitigationID,
			MitigationAnchor: models.AnchorAfterPath,
		}
		if t.MitigationAnchor != nil {
			threat.MitigationAnchor = *t.MitigationAnchor
		}

		var err error
		if threat.DetectPattern, err = tokensFromValue(fromYAML(t.DetectPattern)); err != nil {
			return nil, fmt.Errorf("threat %d (%s): detect pattern: %w", i, t.TechniqueID, err)
		}
		if threat.MitigationPatterns, err = mitigationPatternsFromValue(fromYAML(t.MitigationPatterns)); err != nil {
			return nil, fmt.Errorf("threat %d (%s): %w", i, t.TechniqueID, err)
		}
		lib.Threats = append(lib.Threats, threat)
	}
	return lib, nil
}

// fromYAML maps decoded YAML values onto literal Values.
func fromYAML(v interface{}) Value {
	switch t := v.(type) {
	case []interface{}:
		out := make([]Value, len(t))
		for i, item := range t {
			out[i] = fromYAML(item)
		}
		return out
	case int:
		return int64(t)
	default:
		return t
	}
}
