package diagram

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/dubhe-dev/dubhe/pkg/graph"
	"github.com/dubhe-dev/dubhe/pkg/models"
)

const (
	groupTag = "groups"
	nodeTag  = "node"
	edgeTag  = "edge"
)

// ReadXMI streams an XMI document.
//
// A groups tag sets the parent for every node that follows it in document
// order. A node tag becomes an element. An edge tag wires its source to its
// target when both were declared before it; otherwise it is dropped.
func (r *Reader) ReadXMI(src io.Reader) (*graph.Graph, error) {
	b := newBuilder(r.logger)
	dec := xml.NewDecoder(src)
	parent := ""
	sawRoot := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true

		switch start.Name.Local {
		case groupTag:
			parent = cleanName(attr(start, "name"))
		case nodeTag:
			e := &models.Element{
				ID:      attr(start, "id"),
				UMLType: umlType(attr(start, "type")),
				Name:    cleanName(attr(start, "name")),
				Parent:  parent,
			}
			if err := b.element(e); err != nil {
				return nil, err
			}
		case edgeTag:
			target := attr(start, "target")
			if target == "" {
				target = attr(start, "destination")
			}
			b.edge(attr(start, "source"), target)
		}
	}

	if !sawRoot {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedInput)
	}
	return b.done(), nil
}

// attr returns the value of the attribute with the given local name,
// ignoring its namespace, so xmi:id and id are both found.
func attr(start xml.StartElement, local string) string {
	for _, a := range start.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
