// Package diagram reads activity diagrams into a graph.Graph. UML XMI 2.x
// exports and a plain JSON node/edge document are supported.
package diagram

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dubhe-dev/dubhe/pkg/graph"
	"github.com/dubhe-dev/dubhe/pkg/models"
)

// ErrMalformedInput is returned when a diagram cannot be parsed. No partial
// graph is returned with it.
var ErrMalformedInput = errors.New("malformed diagram input")

// Format names a diagram encoding.
type Format string

const (
	FormatXMI  Format = "xmi"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from a file extension. Anything that is
// not .json is read as XMI.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatXMI
}

// FormatFromContentType picks the format from an HTTP Content-Type.
func FormatFromContentType(contentType string) Format {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return FormatJSON
	}
	return FormatXMI
}

// Reader builds graphs from diagram documents.
type Reader struct {
	logger *zap.Logger
}

// NewReader creates a new diagram reader
func NewReader(logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{logger: logger}
}

// Load reads the diagram file at path.
func (r *Reader) Load(path string) (*graph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open diagram %s: %w", path, err)
	}
	defer f.Close()

	g, err := r.Read(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read diagram %s: %w", path, err)
	}
	return g, nil
}

// Read parses src in the given format.
func (r *Reader) Read(src io.Reader, format Format) (*graph.Graph, error) {
	switch format {
	case FormatJSON:
		return r.ReadJSON(src)
	case FormatXMI:
		return r.ReadXMI(src)
	default:
		return nil, fmt.Errorf("unsupported diagram format %q", format)
	}
}

// builder adds elements and edges in document order and logs the edges that
// have to be dropped.
type builder struct {
	g      *graph.Graph
	logger *zap.Logger
}

func newBuilder(logger *zap.Logger) *builder {
	return &builder{g: graph.New(), logger: logger}
}

func (b *builder) element(e *models.Element) error {
	if err := b.g.AddElement(e); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return nil
}

func (b *builder) edge(source, target string) {
	if !b.g.AddEdge(source, target) {
		b.logger.Debug("Dropping edge with unknown endpoint",
			zap.String("source", source),
			zap.String("target", target))
	}
}

func (b *builder) done() *graph.Graph {
	b.logger.Debug("Diagram read",
		zap.Int("elements", b.g.Len()),
		zap.Int("dropped_edges", b.g.DroppedEdges()))
	return b.g
}

// umlType strips the "uml:" namespace prefix from a type name.
func umlType(t string) string {
	return strings.TrimPrefix(strings.TrimSpace(t), "uml:")
}

var nameEscapes = strings.NewReplacer("%20", " ", "%A0", " ", "%a0", " ")

// cleanName decodes the blank and newline escapes modelling tools write into
// names and collapses runs of whitespace.
func cleanName(name string) string {
	return strings.Join(strings.Fields(nameEscapes.Replace(name)), " ")
}
