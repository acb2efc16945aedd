// Package graph holds the in-memory model of an activity diagram: elements
// in discovery order, indexed by id, wired by directed edges.
package graph

import (
	"errors"
	"fmt"

	"github.com/dubhe-dev/dubhe/pkg/models"
)

// ErrDuplicateID is returned when an element id is added twice.
var ErrDuplicateID = errors.New("duplicate element id")

// Graph is the element collection of one diagram.
//
// It is mutated only while being built. Once analysis starts it is treated as
// read-only and shared between workers without locking.
type Graph struct {
	elements     []*models.Element
	index        map[string]*models.Element
	droppedEdges int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{index: make(map[string]*models.Element)}
}

// AddElement appends e to the collection.
func (g *Graph) AddElement(e *models.Element) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("element must have an id")
	}
	if _, exists := g.index[e.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
	}
	g.elements = append(g.elements, e)
	g.index[e.ID] = e
	return nil
}

// AddEdge wires source -> target. Both ends must already be in the graph;
// otherwise the edge is dropped and false is returned. Dropped edges are not
// retried when the missing element shows up later.
func (g *Graph) AddEdge(source, target string) bool {
	src, okSrc := g.index[source]
	dst, okDst := g.index[target]
	if !okSrc || !okDst {
		g.droppedEdges++
		return false
	}
	src.AddDestination(dst.ID)
	dst.AddSource(src.ID)
	return true
}

// Lookup returns the element with the given id. A miss means the id does not
// exist in this diagram.
func (g *Graph) Lookup(id string) (*models.Element, bool) {
	e, ok := g.index[id]
	return e, ok
}

// Elements returns the elements in discovery order.
func (g *Graph) Elements() []*models.Element {
	return g.elements
}

// Len returns the number of elements.
func (g *Graph) Len() int {
	return len(g.elements)
}

// DroppedEdges returns how many edges referenced a missing element.
func (g *Graph) DroppedEdges() int {
	return g.droppedEdges
}

// Roots returns the elements with no incoming edges, in discovery order.
func (g *Graph) Roots() []*models.Element {
	var roots []*models.Element
	for _, e := range g.elements {
		if e.IsRoot() {
			roots = append(roots, e)
		}
	}
	return roots
}

// OfType returns the elements of the given uml type, in discovery order.
func (g *Graph) OfType(umlType string) []*models.Element {
	var out []*models.Element
	for _, e := range g.elements {
		if e.UMLType == umlType {
			out = append(out, e)
		}
	}
	return out
}

// Successors resolves the destinations of e, skipping ids that are not in
// the graph.
func (g *Graph) Successors(e *models.Element) []*models.Element {
	return g.resolve(e.Destinations)
}

// Predecessors resolves the sources of e, skipping ids that are not in the
// graph.
func (g *Graph) Predecessors(e *models.Element) []*models.Element {
	return g.resolve(e.Sources)
}

func (g *Graph) resolve(ids []string) []*models.Element {
	out := make([]*models.Element, 0, len(ids))
	for _, id := range ids {
		if e, ok := g.index[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Edge is a directed connection between two element ids.
type Edge struct {
	Source string
	Target string
}

// Build assembles a graph from elements and edges, in order. Edges follow
// the same drop rule as AddEdge.
func Build(elements []*models.Element, edges []Edge) (*Graph, error) {
	g := New()
	for _, e := range elements {
		if err := g.AddElement(e); err != nil {
			return nil, err
		}
	}
	for _, edge := range edges {
		g.AddEdge(edge.Source, edge.Target)
	}
	return g, nil
}
