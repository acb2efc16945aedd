package diagram

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dubhe-dev/dubhe/pkg/graph"
	"github.com/dubhe-dev/dubhe/pkg/models"
)

// Document is the JSON diagram form.
type Document struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is one activity element of a Document.
type Node struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
}

// Edge is a directed control or object flow of a Document.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// ReadJSON reads a Document. Nodes and edges are applied in array order
// with the same drop rule as XMI.
func (r *Reader) ReadJSON(src io.Reader) (*graph.Graph, error) {
	var doc Document
	if err := json.NewDecoder(src).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}

	b := newBuilder(r.logger)
	for _, n := range doc.Nodes {
		e := &models.Element{
			ID:      n.ID,
			UMLType: umlType(n.Type),
			Name:    cleanName(n.Name),
			Parent:  n.Parent,
		}
		if err := b.element(e); err != nil {
			return nil, err
		}
	}
	for _, e := range doc.Edges {
		b.edge(e.Source, e.Target)
	}
	return b.done(), nil
}
