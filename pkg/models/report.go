package models

import "time"

// Report is everything one analysis run exposes to the presentation layer.
type Report struct {
	RunInfo RunInfo `json:"run_info" yaml:"run_info"`

	DetectedThreats             []Detection `json:"detected_threats" yaml:"detected_threats"`
	PotentiallyMitigatedThreats []Detection `json:"potentially_mitigated_threats" yaml:"potentially_mitigated_threats"`
	ConfirmedMitigatedThreats   []Detection `json:"confirmed_mitigated_threats" yaml:"confirmed_mitigated_threats"`

	RiskIndex   []RiskEntry  `json:"risk_index" yaml:"risk_index"`
	RiskAverage *RiskAverage `json:"risk_average" yaml:"risk_average"`

	AlreadyProtected bool             `json:"already_protected" yaml:"already_protected"`
	ProtectStores    []PlacementPoint `json:"protect_stores" yaml:"protect_stores"`
	ProtectEntry     []PlacementPoint `json:"protect_entry" yaml:"protect_entry"`
	ProtectWhole     []PlacementPoint `json:"protect_whole" yaml:"protect_whole"`

	LongestPath []ElementRef   `json:"longest_path" yaml:"longest_path"`
	AllPaths    [][]ElementRef `json:"all_paths" yaml:"all_paths"`
	CPP         CPPSummary     `json:"cpp" yaml:"cpp"`
}

// RunInfo records provenance of a report.
type RunInfo struct {
	RunID           string    `json:"run_id" yaml:"run_id"`
	ToolVersion     string    `json:"tool_version" yaml:"tool_version"`
	Source          string    `json:"source,omitempty" yaml:"source,omitempty"`
	StartedAt       time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt      time.Time `json:"finished_at" yaml:"finished_at"`
	ElementCount    int       `json:"element_count" yaml:"element_count"`
	DroppedEdges    int       `json:"dropped_edges" yaml:"dropped_edges"`
	PatternsLoaded  int       `json:"patterns_loaded" yaml:"patterns_loaded"`
	Classifications []string  `json:"classifications" yaml:"classifications"`
}
