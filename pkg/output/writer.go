// Package output renders analysis reports as JSON, YAML or text.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dubhe-dev/dubhe/pkg/models"
	"github.com/dubhe-dev/dubhe/pkg/utils"
)

// Format is a report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatText:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want json, yaml or text)", s)
	}
}

// Write encodes report to w.
func Write(w io.Writer, report *models.Report, format Format) error {
	switch format {
	case FormatJSON, "":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(report); err != nil {
			return err
		}
		return encoder.Close()
	case FormatText:
		return writeText(w, report)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// Generator writes reports to a file or to a fallback writer.
type Generator struct {
	logger *zap.Logger
	format Format
}

// NewGenerator creates a report generator for format
func NewGenerator(logger *zap.Logger, format Format) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger, format: format}
}

// Generate writes report to outputFile, or to stdout when outputFile is
// empty.
func (g *Generator) Generate(report *models.Report, outputFile string, stdout io.Writer) error {
	if outputFile == "" {
		return Write(stdout, report, g.format)
	}

	file, err := utils.SafeCreateFile(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", outputFile, err)
	}
	defer file.Close()

	if err := Write(file, report, g.format); err != nil {
		return fmt.Errorf("failed to write report to file %s: %w", outputFile, err)
	}

	g.logger.Info("Report written", zap.String("file", outputFile), zap.String("format", string(g.format)))
	return nil
}
