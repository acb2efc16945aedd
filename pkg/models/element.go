package models

// UML element kinds the analyzers key on.
const (
	InitialNodeType      = "InitialNode"
	DataStoreNodeType    = "DataStoreNode"
	ActivityFinalType    = "ActivityFinalNode"
	DataSanitizerType    = "DataSanitizer"
	SanitizerGroupParent = "DataSanitizer"
)

// Element is one node of a UML Activity Diagram.
//
// Sources and Destinations are ordered sets of element ids. They only grow,
// and only while the graph is being built.
type Element struct {
	ID           string   `json:"id" yaml:"id"`
	UMLType      string   `json:"uml_type" yaml:"uml_type"`
	Name         string   `json:"name" yaml:"name"`
	Parent       string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	Sources      []string `json:"sources,omitempty" yaml:"sources,omitempty"`
	Destinations []string `json:"destinations,omitempty" yaml:"destinations,omitempty"`
}

// IsRoot reports whether the element has no incoming edges.
func (e *Element) IsRoot() bool {
	return len(e.Sources) == 0
}

// IsSink reports whether the element has no outgoing edges.
func (e *Element) IsSink() bool {
	return len(e.Destinations) == 0
}

// Sanitized reports whether the element sits inside a designer-placed
// DataSanitizer group.
func (e *Element) Sanitized() bool {
	return e.Parent == SanitizerGroupParent
}

// Complexity is the base multiplier used by the risk index.
func (e *Element) Complexity() int {
	return 1 + len(e.Sources)
}

// AddSource appends id to Sources unless it is already present.
func (e *Element) AddSource(id string) bool {
	if containsID(e.Sources, id) {
		return false
	}
	e.Sources = append(e.Sources, id)
	return true
}

// AddDestination appends id to Destinations unless it is already present.
func (e *Element) AddDestination(id string) bool {
	if containsID(e.Destinations, id) {
		return false
	}
	e.Destinations = append(e.Destinations, id)
	return true
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

// Path is an ordered walk along Destinations. It is never stored on the
// graph; analyzers rebuild it on demand.
type Path []*Element

// IDs returns the element ids along the path.
func (p Path) IDs() []string {
	ids := make([]string, len(p))
	for i, e := range p {
		ids[i] = e.ID
	}
	return ids
}

// Contains reports whether an element with the given id is on the path.
func (p Path) Contains(id string) bool {
	for _, e := range p {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a copy of the path that can be extended independently.
func (p Path) Clone() Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return out
}

// Refs converts the path into serialisable element references.
func (p Path) Refs() []ElementRef {
	refs := make([]ElementRef, len(p))
	for i, e := range p {
		refs[i] = ElementRef{ID: e.ID, UMLType: e.UMLType, Name: e.Name}
	}
	return refs
}

// ElementRef is the reduced form of an element used in reports.
type ElementRef struct {
	ID      string `json:"id" yaml:"id"`
	UMLType string `json:"uml_type" yaml:"uml_type"`
	Name    string `json:"name" yaml:"name"`
}

// PlacementPoint is one side of a sanitizer placement recommendation.
type PlacementPoint struct {
	UMLType string `json:"uml_type" yaml:"uml_type"`
	Name    string `json:"name" yaml:"name"`
	Parent  string `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// PointOf builds the placement point describing e.
func PointOf(e *Element) PlacementPoint {
	return PlacementPoint{UMLType: e.UMLType, Name: e.Name, Parent: e.Parent}
}

// Between returns the two-element recommendation for inserting a sanitizer
// between before and after.
func Between(before, after *Element) []PlacementPoint {
	return []PlacementPoint{PointOf(before), PointOf(after)}
}
