package models

// RiskStats accumulates detection evidence for one critical element.
type RiskStats struct {
	Complexity int `json:"complexity" yaml:"complexity"`
	Mitigated  int `json:"mitigated" yaml:"mitigated"`
	Potential  int `json:"potential" yaml:"potential"`
	Hits       int `json:"hits" yaml:"hits"`
}

// Worst is the residual risk counting only confirmed mitigations.
func (s RiskStats) Worst() float64 {
	if s.Hits == 0 {
		return 0
	}
	return float64(s.Complexity) * (1 - float64(s.Mitigated)/float64(s.Hits))
}

// Best is the residual risk counting confirmed and potential mitigations.
func (s RiskStats) Best() float64 {
	if s.Hits == 0 {
		return 0
	}
	return float64(s.Complexity) * (1 - float64(s.Mitigated+s.Potential)/float64(s.Hits))
}

// Add merges other into s. Complexity is a property of the element and is
// kept from the first observation.
func (s *RiskStats) Add(other RiskStats) {
	if s.Complexity == 0 {
		s.Complexity = other.Complexity
	}
	s.Mitigated += other.Mitigated
	s.Potential += other.Potential
	s.Hits += other.Hits
}

// RiskEntry is one row of the Critical Element Risk Index (CERI).
type RiskEntry struct {
	ElementID string    `json:"element_id" yaml:"element_id"`
	UMLType   string    `json:"uml_type" yaml:"uml_type"`
	Name      string    `json:"name" yaml:"name"`
	Worst     float64   `json:"worst" yaml:"worst"`
	Best      float64   `json:"best" yaml:"best"`
	Stats     RiskStats `json:"stats" yaml:"stats"`
	Flagged   bool      `json:"flagged,omitempty" yaml:"flagged,omitempty"`
}

// RiskAverage summarises the index. It is nil on a report when there are no
// critical elements, which is distinct from an average of zero.
type RiskAverage struct {
	Worst float64 `json:"worst" yaml:"worst"`
	Best  float64 `json:"best" yaml:"best"`
}

// PathPotential is the Corruption Propagation Potential of a single path.
type PathPotential struct {
	Path      []string `json:"path" yaml:"path"`
	Length    int      `json:"length" yaml:"length"`
	Sanitized int      `json:"sanitized" yaml:"sanitized"`
	Adjusted  int      `json:"adjusted" yaml:"adjusted"`
}

// CPPSummary aggregates the per-path potentials. Aggregate is nil when the
// diagram has no paths.
type CPPSummary struct {
	Paths     []PathPotential `json:"paths" yaml:"paths"`
	Aggregate *float64        `json:"aggregate" yaml:"aggregate"`
}
